package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/core/speech"
	"github.com/hay-kot/parley/internal/printer"
	"github.com/hay-kot/parley/internal/report"
)

type AnalyzeCmd struct {
	flags     *Flags
	format    string
	saveAudio string
}

// NewAnalyzeCmd creates a new analyze command
func NewAnalyzeCmd(flags *Flags) *AnalyzeCmd {
	return &AnalyzeCmd{flags: flags}
}

// Register adds the analyze command to the application
func (cmd *AnalyzeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze existing audio files",
		UsageText: "parley analyze [options] <file|glob...>",
		Description: `Uploads recorded audio files for analysis, one session per file. Patterns
support ** globbing.

Example:
  parley analyze take.webm
  parley analyze 'practice/**/*.wav'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "save-audio",
				Usage:       "download corrected audio for a single file to this path",
				Destination: &cmd.saveAudio,
			},
			formatFlag(&cmd.format),
		},
		Action: cmd.run,
	})

	return app
}

type analyzeOutcome struct {
	File   string                 `json:"file"`
	Result *speech.AnalysisResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func (cmd *AnalyzeCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	files, err := expandGlobs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no audio files matched\n\nUsage: parley analyze <file|glob...>")
	}
	if cmd.saveAudio != "" && len(files) > 1 {
		return fmt.Errorf("--save-audio needs exactly one file, %d matched", len(files))
	}

	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	var (
		outcomes = make([]analyzeOutcome, 0, len(files))
		failed   int
	)

	for _, file := range files {
		if cmd.format == formatText {
			p.Infof("Analyzing %s", file)
		}

		result, err := cmd.flags.Service.AnalyzeFile(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			outcomes = append(outcomes, analyzeOutcome{File: file, Error: err.Error()})
			if cmd.format == formatText {
				p.Errorf("%s: %v", file, hintAuth(err))
			}
			continue
		}

		outcomes = append(outcomes, analyzeOutcome{File: file, Result: &result})

		if err := saveCorrectedAudio(ctx, cmd.flags, result.CorrectedAudioFile(), cmd.saveAudio); err != nil {
			return err
		}

		if cmd.format == formatText {
			if err := writeMarkdown(c, report.Result(result)); err != nil {
				return err
			}
		}
	}

	switch {
	case cmd.format == formatJSON:
		if err := writeJSON(c.Root().Writer, outcomes); err != nil {
			return err
		}
	case len(files) > 1:
		p.Section("Summary")
		for _, o := range outcomes {
			if o.Result == nil {
				continue
			}
			name := filepath.Base(o.File)
			p.Score(name+" grammar", o.Result.GrammarScore)
			p.Score(name+" fluency", o.Result.AverageFluency())
		}
	}

	if failed > 0 {
		if cmd.format == formatText {
			p.Errorf("%d of %d file(s) failed", failed, len(files))
		}
		return cli.Exit("", 1)
	}

	return nil
}

// expandGlobs resolves patterns to a sorted, de-duplicated file list. Plain
// paths are kept even when they do not exist so the error names them.
func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			files = append(files, pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

func hasMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
