package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/parley/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// CaptureTemplateData defines available fields for capture command templates.
type CaptureTemplateData struct {
	Output string
	Format string
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks template syntax and file access.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = errs.Append(fe.Field, fe.Err)
			}
		} else {
			errs = errs.Append("", err)
		}
	}

	errs = c.validateFileAccess(errs, configPath)
	errs = c.validateCaptureCommand(errs)

	return errs.ToError()
}

func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.IsDir() {
				errs = errs.Append("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
			}
		} else if !os.IsNotExist(err) {
			errs = errs.Append("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil {
			if !info.IsDir() {
				errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
			}
		} else if !os.IsNotExist(err) {
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	return errs
}

func (c *Config) validateCaptureCommand(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if len(c.Capture.Command) == 0 {
		return errs.Append("capture.command", fmt.Errorf("cannot be empty"))
	}

	usesOutput := false
	for i, arg := range c.Capture.Command {
		plain, err := tmpl.Render(arg, CaptureTemplateData{})
		if err != nil {
			errs = errs.Append(
				fmt.Sprintf("capture.command[%d]", i),
				fmt.Errorf("template error: %w (available: {{ .Output }}, {{ .Format }})", err),
			)
			continue
		}
		marked, _ := tmpl.Render(arg, CaptureTemplateData{Output: "\x00"})
		if marked != plain {
			usesOutput = true
		}
	}

	if !usesOutput {
		errs = errs.Append("capture.command", fmt.Errorf("must reference {{ .Output }} so the recording can be read back"))
	}

	return errs
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Capture.Command) > 0 {
		if _, err := exec.LookPath(c.Capture.Command[0]); err != nil {
			warnings = append(warnings, ValidationWarning{
				Category: "Capture",
				Item:     c.Capture.Command[0],
				Message:  "capture program not found in PATH; recording is unavailable but files can still be analyzed",
			})
		}
	}

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		warnings = append(warnings, ValidationWarning{
			Category: "API",
			Item:     "base_url",
			Message:  "plain http to a remote host sends credentials unencrypted",
		})
	}

	if c.Cache.Retry > 3 {
		warnings = append(warnings, ValidationWarning{
			Category: "Cache",
			Item:     "retry",
			Message:  fmt.Sprintf("%d retries may delay error reporting noticeably", c.Cache.Retry),
		})
	}

	return warnings
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
