package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/parley/internal/report"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func formatFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "format",
		Usage:       "output format (text, json)",
		Value:       formatText,
		Destination: dest,
		Validator: func(s string) error {
			if s != formatText && s != formatJSON {
				return fmt.Errorf("unknown format %q", s)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMarkdown renders md for the terminal, or writes it raw when stdout is
// not a terminal.
func writeMarkdown(c *cli.Command, md string) error {
	w := c.Root().Writer

	fd := int(os.Stdout.Fd())
	if w != os.Stdout || !term.IsTerminal(fd) {
		_, err := io.WriteString(w, md)
		return err
	}

	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 80
	}

	_, err = io.WriteString(w, report.Render(md, min(width, 120)))
	return err
}
