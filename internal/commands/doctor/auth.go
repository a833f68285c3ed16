package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hay-kot/parley/internal/core/auth"
)

// expiryWarning is how close to expiry a credential is reported as a warning.
const expiryWarning = 24 * time.Hour

// ClaimsReader returns the claims of the stored credential.
type ClaimsReader interface {
	Claims(ctx context.Context) (auth.Claims, error)
}

// AuthCheck reports on the stored credential without contacting the backend.
type AuthCheck struct {
	claims ClaimsReader
	now    func() time.Time
}

// NewAuthCheck creates a new credential check.
func NewAuthCheck(claims ClaimsReader) *AuthCheck {
	return &AuthCheck{claims: claims, now: time.Now}
}

func (c *AuthCheck) Name() string {
	return "Session"
}

func (c *AuthCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	claims, err := c.claims.Claims(ctx)
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		result.Items = append(result.Items, warn("Credential", "not signed in, run 'parley login'"))
		return result
	case err != nil:
		result.Items = append(result.Items, fail("Credential", err.Error()))
		return result
	}

	who := claims.Subject
	if who == "" {
		who = "unknown subject"
	}

	now := c.now()
	switch {
	case claims.ExpiresAt.IsZero():
		result.Items = append(result.Items, fail("Credential", who+", token carries no expiry and is treated as signed out"))
	case !claims.Valid(now):
		result.Items = append(result.Items, fail("Credential", fmt.Sprintf("%s, expired %s ago", who, now.Sub(claims.ExpiresAt).Round(time.Minute))))
	case claims.Remaining(now) < expiryWarning:
		result.Items = append(result.Items, warn("Credential", fmt.Sprintf("%s, expires in %s", who, claims.Remaining(now).Round(time.Minute))))
	default:
		result.Items = append(result.Items, pass("Credential", fmt.Sprintf("%s, expires %s", who, claims.ExpiresAt.Local().Format(time.DateTime))))
	}

	return result
}
