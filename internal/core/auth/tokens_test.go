package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_SaveReadClear(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokens(newMemStore(), zerolog.Nop())

	_, ok := tokens.Read(ctx)
	assert.False(t, ok, "empty store has no credential")

	require.NoError(t, tokens.Save(ctx, "abc.def.ghi"))

	got, ok := tokens.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc.def.ghi", got)

	require.NoError(t, tokens.Clear(ctx))

	_, ok = tokens.Read(ctx)
	assert.False(t, ok)
}

func TestTokens_BroadcastsEveryMutation(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokens(newMemStore(), zerolog.Nop())

	var kinds []EventKind
	unsub := tokens.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	})

	require.NoError(t, tokens.Save(ctx, "one"))
	require.NoError(t, tokens.Save(ctx, "two"))
	require.NoError(t, tokens.Clear(ctx))
	require.NoError(t, tokens.Clear(ctx), "clearing an absent credential is not an error")

	assert.Equal(t, []EventKind{EventSaved, EventSaved, EventCleared, EventCleared}, kinds)

	unsub()
	require.NoError(t, tokens.Save(ctx, "three"))
	assert.Len(t, kinds, 4, "unsubscribed listener must not be called")
}

func TestTokens_ListenersRunInOrder(t *testing.T) {
	tokens := NewTokens(newMemStore(), zerolog.Nop())

	var order []string
	tokens.Subscribe(func(Event) { order = append(order, "first") })
	tokens.Subscribe(func(Event) { order = append(order, "second") })

	require.NoError(t, tokens.Save(context.Background(), "x"))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestTokens_ReadTreatsStorageFailureAsAbsent(t *testing.T) {
	store := newMemStore()
	tokens := NewTokens(store, zerolog.Nop())
	require.NoError(t, tokens.Save(context.Background(), "x"))

	store.loadErr = errStorageDown

	_, ok := tokens.Read(context.Background())
	assert.False(t, ok)
}

func TestTokens_RefreshDetectsExternalChange(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tokens := NewTokens(store, zerolog.Nop())

	var events int
	tokens.Subscribe(func(Event) { events++ })

	assert.False(t, tokens.Refresh(ctx), "nothing changed")

	// another process writes the shared file
	require.NoError(t, store.Store(ctx, Record{Token: "external"}))
	assert.True(t, tokens.Refresh(ctx))
	assert.False(t, tokens.Refresh(ctx), "second refresh sees no change")

	require.NoError(t, store.Remove(ctx))
	assert.True(t, tokens.Refresh(ctx))

	assert.Equal(t, 2, events)
}

func TestTokens_SaveRecordsClaims(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tokens := NewTokens(store, zerolog.Nop())

	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, tokens.Save(ctx, tokenExpiringAt(exp)))

	rec, err := tokens.Stored(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Subject)
	assert.True(t, exp.Equal(rec.ExpiresAt))
	assert.False(t, rec.SavedAt.IsZero())

	require.NoError(t, tokens.Save(ctx, "not-a-token"))
	rec, err = tokens.Stored(ctx)
	require.NoError(t, err)
	assert.Equal(t, "not-a-token", rec.Token)
	assert.True(t, rec.ExpiresAt.IsZero(), "undecodable tokens are stored without claims")

	require.NoError(t, tokens.Clear(ctx))
	_, err = tokens.Stored(ctx)
	assert.ErrorIs(t, err, ErrNoCredential)
}
