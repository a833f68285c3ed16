package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/report"
)

type AnalyticsCmd struct {
	flags  *Flags
	format string
}

// NewAnalyticsCmd creates a new analytics command
func NewAnalyticsCmd(flags *Flags) *AnalyticsCmd {
	return &AnalyticsCmd{flags: flags}
}

// Register adds the analytics command to the application
func (cmd *AnalyticsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "analytics",
		Usage:     "Show score trends across sessions",
		UsageText: "parley analytics [--format json]",
		Description: `Derives trends from your session history: total sessions, the daily
practice streak, best scores, and how the last five sessions compare with
the five before them.`,
		Flags:  []cli.Flag{formatFlag(&cmd.format)},
		Action: cmd.run,
	})

	return app
}

func (cmd *AnalyticsCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	a, err := cmd.flags.Service.Analytics(ctx)
	if err != nil {
		return hintAuth(err)
	}

	if cmd.format == formatJSON {
		return writeJSON(c.Root().Writer, a)
	}
	return writeMarkdown(c, report.Analytics(a))
}
