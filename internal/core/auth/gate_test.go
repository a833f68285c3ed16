package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T, now time.Time) (*Gate, *Tokens, *purgeCounter) {
	t.Helper()
	tokens := NewTokens(newMemStore(), zerolog.Nop())
	purger := &purgeCounter{}
	gate := NewGate(tokens, purger, zerolog.Nop())
	gate.SetClock(func() time.Time { return now })
	return gate, tokens, purger
}

func TestGate_IsAuthenticated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", tokenExpiringAt(now.Add(time.Hour)), true},
		{"expires exactly now", tokenExpiringAt(now), false},
		{"expired", tokenExpiringAt(now.Add(-time.Hour)), false},
		{"no exp claim", signedToken(map[string]any{"sub": "alice"}), false},
		{"malformed", "not-a-token", false},
		{"garbage claims", "abc.def.ghi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, tokens, _ := newTestGate(t, now)
			require.NoError(t, tokens.Save(context.Background(), tt.token))

			assert.Equal(t, tt.want, gate.IsAuthenticated(context.Background()))
		})
	}
}

func TestGate_NoCredential(t *testing.T) {
	gate, _, _ := newTestGate(t, time.Now())
	assert.False(t, gate.IsAuthenticated(context.Background()))
}

func TestGate_LoadingUntilFirstEvaluation(t *testing.T) {
	gate, _, _ := newTestGate(t, time.Now())
	assert.True(t, gate.State().Loading)

	stop := gate.Start(context.Background())
	defer stop()

	assert.False(t, gate.State().Loading)
}

func TestGate_ReevaluatesOnCredentialChange(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate, tokens, purger := newTestGate(t, now)
	ctx := context.Background()

	var seen []bool
	gate.Subscribe(func(s SessionState) { seen = append(seen, s.Authenticated) })

	stop := gate.Start(ctx)
	defer stop()

	assert.False(t, gate.State().Authenticated)

	require.NoError(t, tokens.Save(ctx, tokenExpiringAt(now.Add(time.Hour))))
	assert.True(t, gate.State().Authenticated)
	assert.Equal(t, "alice", gate.State().Claims.Subject)

	purgesBefore := purger.Count()
	require.NoError(t, tokens.Clear(ctx))
	assert.False(t, gate.State().Authenticated)
	assert.Greater(t, purger.Count(), purgesBefore, "cache purged on becoming unauthenticated")

	assert.Equal(t, []bool{false, true, false}, seen)
}

func TestGate_ExpiredCredentialIsClearedOnEvaluation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate, tokens, purger := newTestGate(t, now)
	ctx := context.Background()

	require.NoError(t, tokens.Save(ctx, tokenExpiringAt(now.Add(-time.Minute))))

	state := gate.Evaluate(ctx)
	assert.False(t, state.Authenticated)

	_, present := tokens.Read(ctx)
	assert.False(t, present, "expired credential must be cleared")
	assert.GreaterOrEqual(t, purger.Count(), 1)
}

func TestGate_StopUnsubscribes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate, tokens, _ := newTestGate(t, now)
	ctx := context.Background()

	stop := gate.Start(ctx)
	stop()

	require.NoError(t, tokens.Save(ctx, tokenExpiringAt(now.Add(time.Hour))))
	assert.False(t, gate.State().Authenticated, "stopped gate does not re-evaluate")
}

func TestGate_Claims(t *testing.T) {
	now := time.Now()
	gate, tokens, _ := newTestGate(t, now)
	ctx := context.Background()

	_, err := gate.Claims(ctx)
	require.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, tokens.Save(ctx, tokenExpiringAt(now.Add(time.Hour))))
	claims, err := gate.Claims(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}
