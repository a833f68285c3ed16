package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hay-kot/parley/internal/core/config"
)

// CaptureCheck verifies the microphone capture command can run.
type CaptureCheck struct {
	capture config.CaptureConfig
	dir     string
}

// NewCaptureCheck creates a new capture check for cfg.
func NewCaptureCheck(cfg *config.Config) *CaptureCheck {
	return &CaptureCheck{capture: cfg.Capture, dir: cfg.CaptureDir()}
}

func (c *CaptureCheck) Name() string {
	return "Capture"
}

func (c *CaptureCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.capture.Command) == 0 {
		result.Items = append(result.Items, fail("Command", "capture.command is empty"))
	} else {
		program := c.capture.Command[0]
		path, err := exec.LookPath(program)
		if err != nil {
			result.Items = append(result.Items, fail("Command", fmt.Sprintf("%s not found in PATH", program)))
		} else {
			result.Items = append(result.Items, pass("Command", path))
		}

		if !usesOutput(c.capture.Command) {
			result.Items = append(result.Items, fail("Output", "capture.command never references {{ .Output }}"))
		}
	}

	if err := probeWritable(c.dir); err != nil {
		result.Items = append(result.Items, fail("Capture directory", err.Error()))
	} else {
		result.Items = append(result.Items, pass("Capture directory", c.dir))
	}

	return result
}

func usesOutput(argv []string) bool {
	for _, a := range argv {
		if strings.Contains(a, ".Output") {
			return true
		}
	}
	return false
}

// probeWritable creates dir if needed and writes a scratch file into it.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
