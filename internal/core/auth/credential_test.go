package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	claims, err := Decode(tokenExpiringAt(exp))
	require.NoError(t, err)

	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.Equal(t, "alice", claims.Raw["sub"])
}

func TestDecode_StandardAlphabetPadded(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"exp":1893456000,"sub":"bob??"}`))
	token := "eyJhbGciOiJIUzI1NiJ9." + payload + ".sig"

	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "bob??", claims.Subject)
	assert.Equal(t, int64(1893456000), claims.ExpiresAt.Unix())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"single segment", "abcdef"},
		{"empty claims segment", "abc..ghi"},
		{"not base64", "abc.!!!.ghi"},
		{"not json", "abc." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".ghi"},
		{"json array", "abc." + base64.RawURLEncoding.EncodeToString([]byte("[1,2]")) + ".ghi"},
		{"exp is string", signedToken(map[string]any{"exp": "tomorrow"})},
		{"truncated", tokenExpiringAt(time.Now().Add(time.Hour))[:10]},
		{"opaque three part token", "abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Decode(tt.token)
				assert.Error(t, err)
			})
		})
	}
}

func TestClaims_Valid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"future", now.Add(time.Second), true},
		{"exactly now", now, false},
		{"past", now.Add(-time.Second), false},
		{"missing", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Claims{ExpiresAt: tt.exp}
			assert.Equal(t, tt.want, c.Valid(now))
		})
	}
}

func TestClaims_Remaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 90*time.Second, Claims{ExpiresAt: now.Add(90 * time.Second)}.Remaining(now))
	assert.Equal(t, time.Duration(0), Claims{ExpiresAt: now.Add(-time.Minute)}.Remaining(now))
}
