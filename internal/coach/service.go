// Package coach wires the session, cache, client and recording layers into
// the operations exposed by the CLI and the terminal UI.
package coach

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/api"
	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/cache"
	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/core/recording"
	"github.com/hay-kot/parley/internal/core/speech"
	"github.com/hay-kot/parley/pkg/executil"
)

// ErrInvalidCredential is returned when login succeeds but the issued
// credential does not pass the session check.
var ErrInvalidCredential = errors.New("server issued a credential that is not valid")

// Service owns the process-wide session and cache singletons.
type Service struct {
	config   *config.Config
	tokens   *auth.Tokens
	gate     *auth.Gate
	cache    *cache.Cache
	client   *api.Client
	executor executil.Executor
	log      zerolog.Logger
}

// New creates a Service. Credentials are persisted in store.
func New(cfg *config.Config, store auth.Storage, exec executil.Executor, log zerolog.Logger) (*Service, error) {
	tokens := auth.NewTokens(store, log.With().Str("component", "auth").Logger())

	client, err := api.New(log.With().Str("component", "api").Logger(), tokens, api.Options{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		LivePath: cfg.API.LivePath,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	c := cache.New(log.With().Str("component", "cache").Logger(), cache.Options{
		Retry:       cfg.Cache.Retry,
		StaleTime:   cfg.Cache.StaleTime,
		ShouldRetry: Retryable,
	})

	s := &Service{
		config:   cfg,
		tokens:   tokens,
		gate:     auth.NewGate(tokens, c, log.With().Str("component", "gate").Logger()),
		cache:    c,
		client:   client,
		executor: exec,
		log:      log,
	}
	s.registerQueries()

	return s, nil
}

// Retryable reports whether a failed fetch may succeed on a second attempt:
// transport failures and server errors, never rejections or bad payloads.
func Retryable(err error) bool {
	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500
	}
	return false
}

func (s *Service) registerQueries() {
	s.cache.Register(cache.KeyUser, func(ctx context.Context) (any, error) {
		return s.client.Me(ctx)
	}, cache.WithRetry(0))

	s.cache.Register(cache.KeyDashboard, func(ctx context.Context) (any, error) {
		return s.client.Dashboard(ctx)
	})

	s.cache.Register(cache.KeyHistory, func(ctx context.Context) (any, error) {
		return s.client.History(ctx)
	})
}

func (s *Service) Config() *config.Config { return s.config }
func (s *Service) Gate() *auth.Gate       { return s.gate }
func (s *Service) Tokens() *auth.Tokens   { return s.tokens }
func (s *Service) Cache() *cache.Cache    { return s.cache }
func (s *Service) Client() *api.Client    { return s.client }

// Start evaluates the session and keeps it in sync with the credential
// until stop is called or ctx ends.
func (s *Service) Start(ctx context.Context) (stop func()) {
	return s.gate.Start(ctx)
}

// Login exchanges credentials for a token, stores it and returns its claims.
// Any failure leaves the session logged out.
func (s *Service) Login(ctx context.Context, username, password string) (auth.Claims, error) {
	s.log.Info().Str("username", username).Msg("logging in")

	tokens, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.dropCredential(ctx)
		return auth.Claims{}, fmt.Errorf("login: %w", err)
	}

	if err := s.tokens.Save(ctx, tokens.AccessToken); err != nil {
		return auth.Claims{}, err
	}

	state := s.gate.Evaluate(ctx)
	if !state.Authenticated {
		return auth.Claims{}, ErrInvalidCredential
	}

	s.cache.Invalidate(cache.KeyUser)

	s.log.Info().
		Str("subject", state.Claims.Subject).
		Time("expires_at", state.Claims.ExpiresAt).
		Msg("logged in")

	return state.Claims, nil
}

func (s *Service) dropCredential(ctx context.Context) {
	if _, ok := s.tokens.Read(ctx); !ok {
		return
	}
	if err := s.tokens.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear credential")
	}
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate checks the input before it is sent.
func (in RegisterInput) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(in.Username) == "" {
		errs = errs.Append("username", fmt.Errorf("is required"))
	}

	if strings.TrimSpace(in.Email) == "" {
		errs = errs.Append("email", fmt.Errorf("is required"))
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		errs = errs.Append("email", fmt.Errorf("%q is not a valid address", in.Email))
	}

	if in.Password == "" {
		errs = errs.Append("password", fmt.Errorf("is required"))
	} else if in.Password != in.ConfirmPassword {
		errs = errs.Append("confirm_password", fmt.Errorf("passwords do not match"))
	}

	return errs.ToError()
}

// Register creates an account. It does not log in.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	if err := s.client.Register(ctx, api.RegisterRequest{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
	}); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("username", in.Username).Msg("registered")
	return nil
}

// Logout clears the credential and all cached server state.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return err
	}
	s.cache.Clear()
	s.log.Info().Msg("logged out")
	return nil
}

// Me returns the authenticated user.
func (s *Service) Me(ctx context.Context) (speech.User, error) {
	return cache.Get[speech.User](ctx, s.cache, cache.KeyUser)
}

// Dashboard returns the aggregate summary.
func (s *Service) Dashboard(ctx context.Context) (speech.Dashboard, error) {
	return cache.Get[speech.Dashboard](ctx, s.cache, cache.KeyDashboard)
}

// History returns every recorded session, newest first.
func (s *Service) History(ctx context.Context) ([]speech.Session, error) {
	return cache.Get[[]speech.Session](ctx, s.cache, cache.KeyHistory)
}

// Analytics derives trends from the session history.
func (s *Service) Analytics(ctx context.Context) (speech.Analytics, error) {
	history, err := s.History(ctx)
	if err != nil {
		return speech.Analytics{}, err
	}
	return speech.Analyze(history), nil
}

// CaptureDevice returns the configured microphone capture device.
func (s *Service) CaptureDevice() recording.Device {
	return &recording.CommandDevice{
		Exec:    s.executor,
		Command: s.config.Capture.Command,
		Format:  s.config.Capture.Format,
		Dir:     s.config.CaptureDir(),
		Grace:   s.config.Capture.Grace,
		Startup: s.config.Capture.Startup,
		Log:     s.log.With().Str("component", "capture").Logger(),
	}
}

// NewPipeline returns a recording pipeline that captures from device.
func (s *Service) NewPipeline(device recording.Device) *recording.Pipeline {
	return recording.NewPipeline(
		s.log.With().Str("component", "recording").Logger(),
		device,
		s.client,
		s.cache,
	)
}

// AnalyzeFile submits an existing audio file through the recording pipeline.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (speech.AnalysisResult, error) {
	p := s.NewPipeline(&recording.FileDevice{Path: path})

	if err := p.Start(ctx); err != nil {
		return speech.AnalysisResult{}, err
	}
	if err := p.Stop(ctx); err != nil {
		return speech.AnalysisResult{}, err
	}
	return p.Submit(ctx)
}

// Live opens the streaming analysis channel.
func (s *Service) Live(ctx context.Context) (*api.LiveSession, error) {
	return s.client.Live(ctx)
}

// Audio downloads a generated audio file.
func (s *Service) Audio(ctx context.Context, filename string) ([]byte, error) {
	return s.client.Audio(ctx, filename)
}

// Refresh picks up credential changes made by another parley process.
func (s *Service) Refresh(ctx context.Context) bool {
	return s.tokens.Refresh(ctx)
}
