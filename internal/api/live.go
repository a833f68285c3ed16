package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/speech"
)

// LiveSession is an open streaming channel: raw audio goes up, incremental
// analysis results come down.
type LiveSession struct {
	log    zerolog.Logger
	conn   *websocket.Conn
	cancel context.CancelFunc
	out    chan speech.AnalysisResult

	once    sync.Once
	closing atomic.Bool
	mu      sync.Mutex
	err     error
}

// Live opens the streaming channel. The credential is passed as a query
// parameter. ctx bounds the whole session, not just the handshake.
func (c *Client) Live(ctx context.Context) (*LiveSession, error) {
	token, ok := c.creds.Read(ctx)
	if !ok {
		return nil, fmt.Errorf("open live channel: %w", auth.ErrNoCredential)
	}

	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = joinPath(u.Path, c.livePath)
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + token}},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized(ctx, c.livePath)
			return nil, &HTTPError{Status: resp.StatusCode}
		}
		return nil, &NetworkError{Method: http.MethodGet, Path: c.livePath, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	ls := &LiveSession{
		log:    c.log.With().Str("component", "live").Logger(),
		conn:   conn,
		cancel: cancel,
		out:    make(chan speech.AnalysisResult, 8),
	}
	go ls.readLoop(ctx)

	return ls, nil
}

// Messages delivers decoded results. It is closed when the channel ends.
func (ls *LiveSession) Messages() <-chan speech.AnalysisResult {
	return ls.out
}

// SendAudio sends one chunk of raw audio.
func (ls *LiveSession) SendAudio(ctx context.Context, chunk []byte) error {
	if err := ls.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Err returns the error that ended the read loop, if any. A normal closure
// is not an error.
func (ls *LiveSession) Err() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.err
}

// Close ends the session.
func (ls *LiveSession) Close() error {
	var err error
	ls.once.Do(func() {
		ls.closing.Store(true)
		err = ls.conn.Close(websocket.StatusNormalClosure, "bye")
		ls.cancel()
	})
	return err
}

func (ls *LiveSession) readLoop(ctx context.Context) {
	defer close(ls.out)

	for {
		mt, data, err := ls.conn.Read(ctx)
		if err != nil {
			if !ls.closing.Load() && ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				ls.setErr(err)
			}
			return
		}

		if mt != websocket.MessageText && mt != websocket.MessageBinary {
			continue
		}

		var msg speech.AnalysisResult
		if err := json.Unmarshal(data, &msg); err != nil {
			ls.log.Warn().Err(err).Int("bytes", len(data)).Msg("skipping malformed live message")
			continue
		}

		select {
		case ls.out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (ls *LiveSession) setErr(err error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.err == nil && !errors.Is(err, context.Canceled) {
		ls.err = err
	}
}
