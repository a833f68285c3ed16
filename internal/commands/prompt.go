package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/hay-kot/parley/internal/styles"
)

// interactive reports whether prompts can be shown.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

func notEmpty(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

// promptFields fills empty fields through a form. Only empty fields are asked.
func promptFields(ctx context.Context, fields ...promptField) error {
	var (
		inputs  []huh.Field
		missing []string
	)
	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		missing = append(missing, strings.ToLower(f.title))

		in := huh.NewInput().
			Title(f.title).
			Value(f.value).
			Validate(notEmpty(strings.ToLower(f.title)))
		if f.secret {
			in = in.EchoMode(huh.EchoModePassword)
		}
		inputs = append(inputs, in)
	}

	if len(inputs) == 0 {
		return nil
	}

	if !interactive() {
		return fmt.Errorf("missing %s and no terminal to prompt on", strings.Join(missing, ", "))
	}

	return huh.NewForm(huh.NewGroup(inputs...)).
		WithTheme(styles.FormTheme()).
		WithOutput(os.Stderr).
		RunWithContext(ctx)
}

type promptField struct {
	title  string
	value  *string
	secret bool
}

// readSecret reads a single line from r, as used by --password-stdin.
func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
