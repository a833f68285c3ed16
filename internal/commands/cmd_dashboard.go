package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/report"
)

type DashboardCmd struct {
	flags  *Flags
	format string
}

// NewDashboardCmd creates a new dashboard command
func NewDashboardCmd(flags *Flags) *DashboardCmd {
	return &DashboardCmd{flags: flags}
}

// Register adds the dashboard command to the application
func (cmd *DashboardCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "dashboard",
		Usage:       "Show average scores and recent corrections",
		UsageText:   "parley dashboard [--format json]",
		Description: "Prints the aggregate summary the backend keeps for your account.",
		Flags:       []cli.Flag{formatFlag(&cmd.format)},
		Action:      cmd.run,
	})

	return app
}

func (cmd *DashboardCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	d, err := cmd.flags.Service.Dashboard(ctx)
	if err != nil {
		return hintAuth(err)
	}

	if cmd.format == formatJSON {
		return writeJSON(c.Root().Writer, d)
	}
	return writeMarkdown(c, report.Dashboard(d))
}
