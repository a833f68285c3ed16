package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/core/recording"
	"github.com/hay-kot/parley/internal/printer"
	"github.com/hay-kot/parley/internal/report"
)

type RecordCmd struct {
	flags     *Flags
	maxLength string
	saveAudio string
	format    string
}

// NewRecordCmd creates a new record command
func NewRecordCmd(flags *Flags) *RecordCmd {
	return &RecordCmd{flags: flags}
}

// Register adds the record command to the application
func (cmd *RecordCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "record",
		Usage:     "Record from the microphone and analyze it",
		UsageText: "parley record [options]",
		Description: `Records from the configured capture command until Enter is pressed, then
uploads the recording for analysis and prints the scores.

Ctrl+C while recording discards the take. The capture command is set with
capture.command in the config file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "max-length",
				Usage:       "stop automatically after this duration (e.g. 90s)",
				Destination: &cmd.maxLength,
			},
			&cli.StringFlag{
				Name:        "save-audio",
				Usage:       "download the corrected audio to this path",
				Destination: &cmd.saveAudio,
			},
			formatFlag(&cmd.format),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RecordCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	var maxLength time.Duration
	if cmd.maxLength != "" {
		d, err := time.ParseDuration(cmd.maxLength)
		if err != nil {
			return fmt.Errorf("invalid --max-length: %w", err)
		}
		maxLength = d
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	pipeline := cmd.flags.Service.NewPipeline(cmd.flags.Service.CaptureDevice())
	defer func() { _ = pipeline.Close() }()

	pipeline.OnTransition(func(t recording.Transition) {
		log.Debug().Str("from", t.From.String()).Str("to", t.To.String()).Msg("recording state")
	})

	if err := pipeline.Start(ctx); err != nil {
		return err
	}

	p.Warnf("Recording. Press Enter to stop, Ctrl+C to discard")

	if err := waitForStop(ctx, maxLength); err != nil {
		_ = pipeline.Close()
		p.Infof("Recording discarded")
		return nil
	}

	if err := pipeline.Stop(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	if audio, ok := pipeline.Audio(); ok {
		p.Infof("Captured %s, analyzing", humanBytes(len(audio.Data)))
	}

	result, err := pipeline.Submit(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.Infof("Analysis cancelled")
			return nil
		}
		return hintAuth(err)
	}

	if err := saveCorrectedAudio(ctx, cmd.flags, result.CorrectedAudioFile(), cmd.saveAudio); err != nil {
		return err
	}

	if cmd.format == formatJSON {
		return writeJSON(c.Root().Writer, result)
	}
	return writeMarkdown(c, report.Result(result))
}

// waitForStop blocks until Enter is read from stdin or maxLength elapses. It
// returns ctx.Err() when ctx ends first.
func waitForStop(ctx context.Context, maxLength time.Duration) error {
	enter := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()

	var timeout <-chan time.Time
	if maxLength > 0 {
		t := time.NewTimer(maxLength)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-enter:
	case <-timeout:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func saveCorrectedAudio(ctx context.Context, flags *Flags, filename, dest string) error {
	if dest == "" || filename == "" {
		return nil
	}

	data, err := flags.Service.Audio(ctx, filename)
	if err != nil {
		return fmt.Errorf("download corrected audio: %w", err)
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write corrected audio: %w", err)
	}

	printer.Ctx(ctx).Success("Saved corrected audio", dest)
	return nil
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
