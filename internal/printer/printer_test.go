package printer

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalError_Hint(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	err := fmt.Errorf("dashboard: %w", WithHint(errors.New("unauthorized"), "run 'parley login'"))
	p.FatalError(err)

	out := buf.String()
	assert.Contains(t, out, "dashboard: unauthorized")
	assert.Contains(t, out, "run 'parley login'")
}

func TestFatalError_FieldErrors(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	var errs criterio.FieldErrorsBuilder
	errs = errs.Append("api.base_url", errors.New("is required"))
	p.FatalError(fmt.Errorf("load config: %w", errs.ToError()))

	out := buf.String()
	assert.Contains(t, out, "Validation Error")
	assert.Contains(t, out, "load config")
	assert.Contains(t, out, "api.base_url: ")
	assert.Contains(t, out, "is required")
}

func TestWithHint(t *testing.T) {
	assert.NoError(t, WithHint(nil, "ignored"))

	base := errors.New("boom")
	err := WithHint(base, "try again")
	require.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())
}

func TestCtx_Default(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	ctx := NewContext(t.Context(), p)
	assert.Same(t, p, Ctx(ctx))
	assert.NotNil(t, Ctx(t.Context()))
}

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		score float64
		color string
	}{
		{score: 92.5, color: ColorGreen},
		{score: 80, color: ColorGreen},
		{score: 61, color: ColorYellow},
		{score: 12, color: ColorRed},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		New(&buf).Score("talk.webm grammar", tt.score)

		out := buf.String()
		assert.Contains(t, out, "talk.webm grammar")
		assert.Contains(t, out, tt.color+fmt.Sprintf("%5.1f", tt.score)+ColorReset)
	}
}
