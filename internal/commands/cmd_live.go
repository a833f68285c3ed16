package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/printer"
	"github.com/hay-kot/parley/internal/report"
)

type LiveCmd struct {
	flags     *Flags
	chunkSize int
	interval  string
	format    string
}

// NewLiveCmd creates a new live command
func NewLiveCmd(flags *Flags) *LiveCmd {
	return &LiveCmd{flags: flags}
}

// Register adds the live command to the application
func (cmd *LiveCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "live",
		Usage:     "Stream audio for incremental analysis",
		UsageText: "parley live [options] <file|->",
		Description: `Streams audio over the live analysis channel in chunks and prints each
result as the backend produces it. Use - to read from stdin, for example
piping a capture program's output.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "chunk-size",
				Usage:       "bytes per audio frame",
				Value:       32 * 1024,
				Destination: &cmd.chunkSize,
			},
			&cli.StringFlag{
				Name:        "interval",
				Usage:       "delay between frames when streaming a file",
				Value:       "250ms",
				Destination: &cmd.interval,
			},
			formatFlag(&cmd.format),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LiveCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if c.Args().Len() != 1 {
		return fmt.Errorf("audio source required\n\nUsage: parley live <file|->")
	}
	if cmd.chunkSize <= 0 {
		return fmt.Errorf("--chunk-size must be positive")
	}

	interval, err := time.ParseDuration(cmd.interval)
	if err != nil {
		return fmt.Errorf("invalid --interval: %w", err)
	}

	var src io.Reader = os.Stdin
	if name := c.Args().First(); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		src = f
	} else {
		interval = 0
	}

	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	live, err := cmd.flags.Service.Live(ctx)
	if err != nil {
		return hintAuth(err)
	}
	defer func() { _ = live.Close() }()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- cmd.stream(ctx, live.SendAudio, src, interval)
	}()

	for {
		select {
		case res, ok := <-live.Messages():
			if !ok {
				return hintAuth(live.Err())
			}
			if cmd.format == formatJSON {
				if err := writeJSON(c.Root().Writer, res); err != nil {
					return err
				}
				continue
			}
			if err := writeMarkdown(c, report.Result(res)); err != nil {
				return err
			}
		case err := <-sendErr:
			sendErr = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if cmd.format == formatText {
				p.Infof("Audio sent, waiting for results. Ctrl+C to finish")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (cmd *LiveCmd) stream(ctx context.Context, send func(context.Context, []byte) error, src io.Reader, interval time.Duration) error {
	buf := make([]byte, cmd.chunkSize)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if sendErr := send(ctx, buf[:n]); sendErr != nil {
				return sendErr
			}
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("read audio: %w", err)
		}

		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
