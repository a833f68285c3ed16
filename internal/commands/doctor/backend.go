package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hay-kot/parley/internal/api"
)

// Requester issues authenticated requests against the backend.
type Requester interface {
	Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error)
	BaseURL() string
}

// BackendCheck verifies the backend answers and accepts the credential.
type BackendCheck struct {
	client  Requester
	timeout time.Duration
}

// NewBackendCheck creates a new backend reachability check.
func NewBackendCheck(client Requester, timeout time.Duration) *BackendCheck {
	return &BackendCheck{client: client, timeout: timeout}
}

func (c *BackendCheck) Name() string {
	return "Backend"
}

func (c *BackendCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.Do(ctx, http.MethodGet, "/user/me", nil, "")
	elapsed := time.Since(start).Round(time.Millisecond)

	var (
		netErr  *api.NetworkError
		httpErr *api.HTTPError
	)

	switch {
	case err == nil:
		_ = resp.Body.Close()
		result.Items = append(result.Items,
			pass("Reachable", fmt.Sprintf("%s in %s", c.client.BaseURL(), elapsed)),
			pass("Credential accepted", ""),
		)
	case errors.As(err, &netErr):
		result.Items = append(result.Items, fail("Reachable", fmt.Sprintf("%s: %v", c.client.BaseURL(), netErr.Err)))
	case errors.As(err, &httpErr) && httpErr.Status == http.StatusUnauthorized:
		result.Items = append(result.Items,
			pass("Reachable", fmt.Sprintf("%s in %s", c.client.BaseURL(), elapsed)),
			warn("Credential accepted", "backend rejected the request, run 'parley login'"),
		)
	case errors.As(err, &httpErr):
		result.Items = append(result.Items, fail("Reachable", fmt.Sprintf("%s answered %d: %s", c.client.BaseURL(), httpErr.Status, httpErr.Detail)))
	default:
		result.Items = append(result.Items, fail("Reachable", err.Error()))
	}

	return result
}
