package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/printer"
	"github.com/hay-kot/parley/internal/report"
)

type HistoryCmd struct {
	flags *Flags

	// Command-specific flags
	limit  int
	format string
	table  bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "List recorded practice sessions",
		UsageText: "parley history [options]",
		Description: `Lists every recorded session, newest first, with its grammar score,
mean fluency score and transcription.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "maximum sessions to show (0 for all)",
				Value:       20,
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "print a plain table instead of rendered markdown",
				Destination: &cmd.table,
			},
			formatFlag(&cmd.format),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	sessions, err := cmd.flags.Service.History(ctx)
	if err != nil {
		return hintAuth(err)
	}

	if cmd.limit > 0 && len(sessions) > cmd.limit {
		sessions = sessions[:cmd.limit]
	}

	if cmd.format == formatJSON {
		return writeJSON(c.Root().Writer, sessions)
	}

	if !cmd.table {
		return writeMarkdown(c, report.History(sessions))
	}

	if len(sessions) == 0 {
		printer.Ctx(ctx).Infof("No sessions recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tGRAMMAR\tFLUENCY\tERRORS")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%d\n",
			s.ID,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.GrammarScore,
			s.AverageFluency(),
			len(s.Errors),
		)
	}
	return w.Flush()
}
