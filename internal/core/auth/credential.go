// Package auth owns the bearer credential: where it is persisted, how its
// claims are read, and whether it still represents an authenticated session.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when no credential is stored.
var ErrNoCredential = errors.New("no credential stored")

// Claims is the subset of the credential payload parley cares about. The
// signature is never verified client side; the backend remains the authority.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	Raw       map[string]any
}

// Valid reports whether the claims expire strictly after now.
func (c Claims) Valid(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.After(now)
}

// Remaining returns the time left before expiry, or zero once expired.
func (c Claims) Remaining(now time.Time) time.Duration {
	if !c.Valid(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode reads the claims segment of a signed token without verifying the
// signature. Only the claims segment has to be well formed: the header and
// signature are opaque to the client. Malformed or truncated tokens return an
// error.
func Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrNoCredential
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return Claims{}, fmt.Errorf("decode credential: %w", jwt.ErrTokenMalformed)
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("decode credential: %w", err)
	}

	mc := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &mc); err != nil {
		return Claims{}, fmt.Errorf("decode credential claims: %w", err)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("decode credential exp: %w", err)
	}

	sub, _ := mc.GetSubject()

	claims := Claims{Subject: sub, Raw: map[string]any(mc)}
	if exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

// decodeSegment accepts both the base64url alphabet JWTs use and the standard
// alphabet some backends emit.
func decodeSegment(seg string) ([]byte, error) {
	if seg == "" {
		return nil, jwt.ErrTokenMalformed
	}

	data, err := parser.DecodeSegment(seg)
	if err == nil {
		return data, nil
	}

	if l := len(seg) % 4; l > 0 {
		seg += strings.Repeat("=", 4-l)
	}
	if data, stdErr := base64.StdEncoding.DecodeString(seg); stdErr == nil {
		return data, nil
	}

	return nil, err
}
