package recording

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/pkg/executil"
)

func TestCommandDevice_CapturesOutputFile(t *testing.T) {
	dir := t.TempDir()
	var output string

	exec := &executil.RecordingExecutor{
		OnStart: func(cmd executil.RecordedCommand) error {
			output = cmd.Args[len(cmd.Args)-1]
			return os.WriteFile(output, []byte("captured"), 0o600)
		},
	}

	d := &CommandDevice{
		Exec:    exec,
		Command: []string{"ffmpeg", "-f", "pulse", "-i", "default", "-y", "{{ .Output }}"},
		Format:  "webm",
		Dir:     dir,
		Log:     zerolog.Nop(),
	}

	capture, err := d.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(output))
	assert.True(t, strings.HasSuffix(output, ".webm"))
	require.Len(t, exec.Commands, 1)
	assert.Equal(t, "ffmpeg", exec.Commands[0].Cmd)

	audio, err := capture.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []byte("captured"), audio.Data)
	assert.Equal(t, "recording.webm", audio.Filename)
	assert.Equal(t, "audio/webm", audio.ContentType)
	assert.Equal(t, 1, exec.Stopped())

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err), "temporary capture file is removed")
}

func TestCommandDevice_StartFailure(t *testing.T) {
	exec := &executil.RecordingExecutor{
		Errors: map[string]error{"ffmpeg": errors.New("executable file not found")},
	}
	d := &CommandDevice{Exec: exec, Command: []string{"ffmpeg", "{{ .Output }}"}, Dir: t.TempDir()}

	_, err := d.Start(context.Background())

	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "ffmpeg", derr.Device)
}

func TestCommandDevice_BadTemplate(t *testing.T) {
	d := &CommandDevice{
		Exec:    &executil.RecordingExecutor{},
		Command: []string{"ffmpeg", "{{ .Nope }}"},
		Dir:     t.TempDir(),
	}

	_, err := d.Start(context.Background())

	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
}

func TestCommandDevice_NoOutputFile(t *testing.T) {
	exec := &executil.RecordingExecutor{}
	d := &CommandDevice{Exec: exec, Command: []string{"arecord", "{{ .Output }}"}, Format: "wav", Dir: t.TempDir()}

	capture, err := d.Start(context.Background())
	require.NoError(t, err)

	_, err = capture.Stop(context.Background())
	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), "no output file")
}

func TestCommandDevice_Abort(t *testing.T) {
	exec := &executil.RecordingExecutor{}
	d := &CommandDevice{Exec: exec, Command: []string{"ffmpeg", "{{ .Output }}"}, Dir: t.TempDir()}

	capture, err := d.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, capture.Abort())

	assert.Equal(t, 1, exec.Killed())
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))

	d := &FileDevice{Path: path}
	capture, err := d.Start(context.Background())
	require.NoError(t, err)

	audio, err := capture.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "take.wav", audio.Filename)
	assert.Equal(t, "audio/wav", audio.ContentType)
	assert.Equal(t, []byte("RIFF"), audio.Data)
}

func TestFileDevice_Missing(t *testing.T) {
	d := &FileDevice{Path: filepath.Join(t.TempDir(), "missing.webm")}

	_, err := d.Start(context.Background())

	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.webm": "audio/webm",
		"a.WAV":  "audio/wav",
		"a.mp3":  "audio/mpeg",
		"a.opus": "audio/ogg",
		"a":      "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestCommandDevice_ExitDuringStartupIsDeviceError(t *testing.T) {
	dir := t.TempDir()
	d := &CommandDevice{
		Exec:    &executil.RealExecutor{},
		Command: []string{"sh", "-c", "echo 'default: Permission denied' >&2; exit 1", "{{ .Output }}"},
		Dir:     dir,
		Startup: 2 * time.Second,
		Log:     zerolog.Nop(),
	}

	_, err := d.Start(context.Background())

	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "sh", derr.Device)
	assert.Contains(t, err.Error(), "Permission denied")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no capture file is left behind")
}

func TestCommandDevice_SurvivesStartup(t *testing.T) {
	d := &CommandDevice{
		Exec:    &executil.RealExecutor{},
		Command: []string{"sh", "-c", "sleep 5", "{{ .Output }}"},
		Dir:     t.TempDir(),
		Startup: 50 * time.Millisecond,
		Grace:   time.Second,
		Log:     zerolog.Nop(),
	}

	capture, err := d.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, capture.Abort())
}
