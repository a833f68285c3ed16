package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/internal/api"
	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/config"
)

type fakeClaims struct {
	claims auth.Claims
	err    error
}

func (f fakeClaims) Claims(context.Context) (auth.Claims, error) { return f.claims, f.err }

func statuses(r Result) []Status {
	out := make([]Status, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Status
	}
	return out
}

func TestAuthCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		claims fakeClaims
		want   Status
		detail string
	}{
		{
			name:   "no credential",
			claims: fakeClaims{err: auth.ErrNoCredential},
			want:   StatusWarn,
			detail: "parley login",
		},
		{
			name:   "undecodable",
			claims: fakeClaims{err: errors.New("decode credential: token is malformed")},
			want:   StatusFail,
			detail: "malformed",
		},
		{
			name:   "expired",
			claims: fakeClaims{claims: auth.Claims{Subject: "alice", ExpiresAt: now.Add(-2 * time.Hour)}},
			want:   StatusFail,
			detail: "expired 2h0m0s ago",
		},
		{
			name:   "expiring soon",
			claims: fakeClaims{claims: auth.Claims{Subject: "alice", ExpiresAt: now.Add(30 * time.Minute)}},
			want:   StatusWarn,
			detail: "expires in 30m0s",
		},
		{
			name:   "valid",
			claims: fakeClaims{claims: auth.Claims{Subject: "alice", ExpiresAt: now.Add(72 * time.Hour)}},
			want:   StatusPass,
			detail: "alice",
		},
		{
			name:   "no expiry",
			claims: fakeClaims{claims: auth.Claims{Subject: "alice"}},
			want:   StatusFail,
			detail: "no expiry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewAuthCheck(tt.claims)
			check.now = func() time.Time { return now }

			result := check.Run(context.Background())

			assert.Equal(t, "Session", result.Name)
			require.Len(t, result.Items, 1)
			assert.Equal(t, tt.want, result.Items[0].Status)
			assert.Contains(t, result.Items[0].Detail, tt.detail)
		})
	}
}

type fakeRequester struct {
	status int
	err    error
}

func (f fakeRequester) BaseURL() string { return "http://coach.test" }

func (f fakeRequester) Do(context.Context, string, string, io.Reader, string) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func TestBackendCheck(t *testing.T) {
	tests := []struct {
		name string
		req  fakeRequester
		want []Status
	}{
		{
			name: "accepted",
			req:  fakeRequester{status: http.StatusOK},
			want: []Status{StatusPass, StatusPass},
		},
		{
			name: "rejected credential",
			req:  fakeRequester{err: &api.HTTPError{Status: http.StatusUnauthorized, Detail: "Invalid token"}},
			want: []Status{StatusPass, StatusWarn},
		},
		{
			name: "unreachable",
			req:  fakeRequester{err: &api.NetworkError{Method: "GET", Path: "/user/me", Err: errors.New("connection refused")}},
			want: []Status{StatusFail},
		},
		{
			name: "server error",
			req:  fakeRequester{err: &api.HTTPError{Status: http.StatusInternalServerError, Detail: "boom"}},
			want: []Status{StatusFail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewBackendCheck(tt.req, time.Second).Run(context.Background())
			assert.Equal(t, tt.want, statuses(result))
		})
	}
}

func TestCaptureCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Capture.Command = []string{"sh", "-c", "cat /dev/null > {{ .Output | shq }}"}

	result := NewCaptureCheck(&cfg).Run(context.Background())

	assert.Equal(t, []Status{StatusPass, StatusPass}, statuses(result))
	assert.DirExists(t, filepath.Join(cfg.DataDir, "captures"))
}

func TestCaptureCheck_Failures(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Capture.Command = []string{"parley-no-such-recorder", "out.webm"}

	result := NewCaptureCheck(&cfg).Run(context.Background())

	assert.Equal(t, []Status{StatusFail, StatusFail, StatusPass}, statuses(result))
}

func TestRunAllAndSummary(t *testing.T) {
	checks := []Check{
		NewAuthCheck(fakeClaims{err: auth.ErrNoCredential}),
		NewBackendCheck(fakeRequester{status: http.StatusOK}, 0),
	}

	results := RunAll(context.Background(), checks)
	require.Len(t, results, 2)
	assert.Equal(t, StatusWarn, results[0].Items[0].Status)

	counts := Summary(results)
	assert.Equal(t, Counts{Passed: 2, Warned: 1}, counts)
	assert.True(t, counts.Healthy())

	data, err := json.Marshal(results[0].Items[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestRunAll_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunAll(ctx, []Check{NewAuthCheck(fakeClaims{err: auth.ErrNoCredential})})
	assert.Empty(t, results)
}
