// Package api is the HTTP client for the speech-coaching backend. Every
// request carries the stored bearer credential; a 401 from any endpoint
// clears it and triggers the configured reload.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	pathpkg "path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/speech"
)

const maxErrorBody = 64 << 10

// Credentials is the part of the token store the client needs.
type Credentials interface {
	Read(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	LivePath string
	// HTTPClient overrides the default client. Its Timeout is left as is.
	HTTPClient *http.Client
}

// Client calls the backend REST API.
type Client struct {
	log      zerolog.Logger
	base     *url.URL
	livePath string
	http     *http.Client
	creds    Credentials

	mu     sync.Mutex
	reload func()
}

// New creates a Client for opts.BaseURL.
func New(log zerolog.Logger, creds Credentials, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", base.Scheme)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	livePath := opts.LivePath
	if livePath == "" {
		livePath = "/speech/live"
	}

	return &Client{
		log:      log,
		base:     base,
		livePath: livePath,
		http:     hc,
		creds:    creds,
	}, nil
}

// SetReload sets the function invoked after a 401 has cleared the
// credential. The terminal UI uses it to return to the login view.
func (c *Client) SetReload(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload = fn
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Do sends a request to path and returns the response for any status below
// 400. Failure statuses are returned as *HTTPError with the body consumed.
// The caller closes the response body.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, ok := c.creds.Read(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 400 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	herr := newHTTPError(resp.StatusCode, data)

	if herr.Status == http.StatusUnauthorized {
		c.unauthorized(ctx, path)
	}

	return nil, herr
}

func (c *Client) unauthorized(ctx context.Context, path string) {
	c.log.Warn().Str("path", path).Msg("credential rejected, clearing session")

	if err := c.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Error().Err(err).Msg("failed to clear credential")
	}

	c.mu.Lock()
	reload := c.reload
	c.mu.Unlock()

	if reload != nil {
		reload()
	}
}

func (c *Client) resolve(path string) string {
	u := *c.base
	u.Path = joinPath(u.Path, path)
	return u.String()
}

func joinPath(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

// ResolveURL turns a backend-relative reference such as a corrected audio
// URL into an absolute URL. Absolute references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return c.resolve(ref)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.Do(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return err
	}
	return decodeJSON(resp, path, out)
}

// decodeJSON decodes the body into out and closes it. A nil out drains the
// body.
func decodeJSON(resp *http.Response, path string, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// Login exchanges a username and password for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (speech.AuthTokens, error) {
	const path = "/auth/login"

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := c.Do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return speech.AuthTokens{}, err
	}

	var tokens speech.AuthTokens
	if err := decodeJSON(resp, path, &tokens); err != nil {
		return speech.AuthTokens{}, err
	}
	if tokens.AccessToken == "" {
		return speech.AuthTokens{}, &DecodeError{Path: path, Err: errors.New("missing access_token")}
	}
	return tokens, nil
}

// RegisterRequest is the body of /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. The backend answers 201 with no meaningful
// body.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.postJSON(ctx, "/auth/register", req, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (speech.User, error) {
	var u speech.User
	err := c.getJSON(ctx, "/user/me", &u)
	return u, err
}

// Dashboard returns the aggregate summary for the authenticated user.
func (c *Client) Dashboard(ctx context.Context) (speech.Dashboard, error) {
	var d speech.Dashboard
	err := c.getJSON(ctx, "/user/dashboard", &d)
	return d, err
}

// History returns every recorded session, newest first.
func (c *Client) History(ctx context.Context) ([]speech.Session, error) {
	var sessions []speech.Session
	if err := c.getJSON(ctx, "/user/history", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// StartSpeech asks the backend for a new recording session id.
func (c *Client) StartSpeech(ctx context.Context) (string, error) {
	const path = "/speech/start"

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.postJSON(ctx, path, nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", &DecodeError{Path: path, Err: errors.New("missing session_id")}
	}
	return out.SessionID, nil
}

// StopSpeech uploads the recorded audio for sessionID and returns the
// analysis.
func (c *Client) StopSpeech(ctx context.Context, sessionID, filename string, audio io.Reader) (speech.AnalysisResult, error) {
	const path = "/speech/stop"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return speech.AnalysisResult{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return speech.AnalysisResult{}, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return speech.AnalysisResult{}, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return speech.AnalysisResult{}, fmt.Errorf("build upload: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return speech.AnalysisResult{}, err
	}

	var result speech.AnalysisResult
	if err := decodeJSON(resp, path, &result); err != nil {
		return speech.AnalysisResult{}, err
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return result, nil
}

func audioPath(filename string) string {
	return "/speech/audio/" + pathpkg.Base("/"+filename)
}

// AudioURL returns the absolute URL of a generated audio file.
func (c *Client) AudioURL(filename string) string {
	return c.resolve(audioPath(filename))
}

// Audio downloads a generated audio file.
func (c *Client) Audio(ctx context.Context, filename string) ([]byte, error) {
	path := audioPath(filename)

	resp, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodGet, Path: path, Err: err}
	}
	return data, nil
}
