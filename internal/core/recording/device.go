package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/pkg/executil"
	"github.com/hay-kot/parley/pkg/randid"
	"github.com/hay-kot/parley/pkg/tmpl"
)

// Device produces audio captures.
type Device interface {
	Name() string
	Start(ctx context.Context) (Capture, error)
}

// Capture is one capture in progress.
type Capture interface {
	// Stop ends the capture and returns the finalized audio.
	Stop(ctx context.Context) (Audio, error)
	// Abort ends the capture and discards anything recorded.
	Abort() error
}

// ContentType returns the MIME type for an audio file name.
func ContentType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "webm":
		return "audio/webm"
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "ogg", "opus":
		return "audio/ogg"
	case "m4a":
		return "audio/mp4"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// CommandCaptureData is the template data available to a capture command.
type CommandCaptureData struct {
	Output string
	Format string
}

// CommandDevice records by running an external program, such as ffmpeg,
// that writes to {{ .Output }} until interrupted.
type CommandDevice struct {
	Exec    executil.Executor
	Command []string
	Format  string
	// Dir holds temporary capture files. Empty uses os.TempDir.
	Dir   string
	Grace time.Duration
	// Startup is how long Start watches the program before reporting
	// success. A program that exits within it failed to open the device.
	// Zero skips the check.
	Startup time.Duration
	Log     zerolog.Logger
}

// Name returns the capture program.
func (d *CommandDevice) Name() string {
	if len(d.Command) == 0 {
		return "command"
	}
	return filepath.Base(d.Command[0])
}

// Start launches the capture command.
func (d *CommandDevice) Start(ctx context.Context) (Capture, error) {
	dir := d.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &DeviceError{Device: d.Name(), Err: err}
	}

	format := d.Format
	if format == "" {
		format = "webm"
	}

	output := filepath.Join(dir, randid.Filename("parley", format))

	argv, err := tmpl.RenderArgs(d.Command, CommandCaptureData{Output: output, Format: format})
	if err != nil {
		return nil, &DeviceError{Device: d.Name(), Err: fmt.Errorf("render capture command: %w", err)}
	}

	d.Log.Debug().Strs("argv", argv).Msg("starting capture")

	proc, err := d.Exec.Start(ctx, argv[0], argv[1:]...)
	if err != nil {
		return nil, &DeviceError{Device: d.Name(), Err: err}
	}

	if d.Startup > 0 {
		select {
		case <-proc.Done():
			err := proc.Stop(0)
			if err == nil {
				err = errors.New("capture exited before recording started")
			}
			_ = os.Remove(output)
			return nil, &DeviceError{Device: d.Name(), Err: err}
		case <-time.After(d.Startup):
		case <-ctx.Done():
			_ = proc.Kill()
			_ = os.Remove(output)
			return nil, &DeviceError{Device: d.Name(), Err: ctx.Err()}
		}
	}

	grace := d.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}

	return &commandCapture{
		device: d.Name(),
		proc:   proc,
		output: output,
		format: format,
		grace:  grace,
	}, nil
}

type commandCapture struct {
	device string
	proc   executil.Process
	output string
	format string
	grace  time.Duration
}

func (c *commandCapture) Stop(ctx context.Context) (Audio, error) {
	defer func() { _ = os.Remove(c.output) }()

	if err := c.proc.Stop(c.grace); err != nil {
		return Audio{}, &DeviceError{Device: c.device, Err: err}
	}

	data, err := os.ReadFile(c.output)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.New("capture produced no output file")
		}
		return Audio{}, &DeviceError{Device: c.device, Err: err}
	}

	filename := "recording." + c.format
	return Audio{
		Data:        data,
		Filename:    filename,
		ContentType: ContentType(filename),
	}, nil
}

func (c *commandCapture) Abort() error {
	defer func() { _ = os.Remove(c.output) }()
	return c.proc.Kill()
}

// FileDevice replays an existing audio file as a capture.
type FileDevice struct {
	Path string
}

// Name returns "file".
func (d *FileDevice) Name() string { return "file" }

// Start checks that the file is readable.
func (d *FileDevice) Start(ctx context.Context) (Capture, error) {
	info, err := os.Stat(d.Path)
	if err != nil {
		return nil, &DeviceError{Device: d.Name(), Err: err}
	}
	if info.IsDir() {
		return nil, &DeviceError{Device: d.Name(), Err: fmt.Errorf("%s is a directory", d.Path)}
	}
	return &fileCapture{path: d.Path}, nil
}

type fileCapture struct {
	path string
}

func (c *fileCapture) Stop(ctx context.Context) (Audio, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Audio{}, &DeviceError{Device: "file", Err: err}
	}

	filename := filepath.Base(c.path)
	return Audio{
		Data:        data,
		Filename:    filename,
		ContentType: ContentType(filename),
	}, nil
}

func (c *fileCapture) Abort() error { return nil }
