package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/printer"
)

type AudioCmd struct {
	flags  *Flags
	output string
	url    bool
}

// NewAudioCmd creates a new audio command
func NewAudioCmd(flags *Flags) *AudioCmd {
	return &AudioCmd{flags: flags}
}

// Register adds the audio command to the application
func (cmd *AudioCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "audio",
		Usage:     "Download generated audio",
		UsageText: "parley audio [options] <filename>",
		Description: `Downloads a file produced by analysis, such as the corrected pronunciation
audio. The filename is the last path segment of corrected_audio_url.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "destination path (defaults to the filename in the current directory, - for stdout)",
				Destination: &cmd.output,
			},
			&cli.BoolFlag{
				Name:        "url",
				Usage:       "print the download URL instead of fetching",
				Destination: &cmd.url,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *AudioCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("filename required\n\nUsage: parley audio <filename>")
	}
	filename := filepath.Base(c.Args().First())

	if cmd.url {
		_, err := fmt.Fprintln(c.Root().Writer, cmd.flags.Service.Client().AudioURL(filename))
		return err
	}

	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	data, err := cmd.flags.Service.Audio(ctx, filename)
	if err != nil {
		return hintAuth(err)
	}

	if cmd.output == "-" {
		_, err := c.Root().Writer.Write(data)
		return err
	}

	dest := cmd.output
	if dest == "" {
		dest = filename
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	printer.Ctx(ctx).Success(fmt.Sprintf("Downloaded %s", humanBytes(len(data))), dest)
	return nil
}
