package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveCmd_StreamChunks(t *testing.T) {
	cmd := &LiveCmd{chunkSize: 4}

	var frames []string
	send := func(_ context.Context, b []byte) error {
		frames = append(frames, string(b))
		return nil
	}

	err := cmd.stream(context.Background(), send, strings.NewReader("abcdefghij"), 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, frames)
}

func TestLiveCmd_StreamSendError(t *testing.T) {
	cmd := &LiveCmd{chunkSize: 2}
	boom := errors.New("closed")

	err := cmd.stream(context.Background(), func(context.Context, []byte) error { return boom }, bytes.NewReader([]byte("abcd")), 0)

	require.ErrorIs(t, err, boom)
}
