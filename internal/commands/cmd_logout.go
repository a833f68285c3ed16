package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/printer"
)

type LogoutCmd struct {
	flags *Flags
}

// NewLogoutCmd creates a new logout command
func NewLogoutCmd(flags *Flags) *LogoutCmd {
	return &LogoutCmd{flags: flags}
}

// Register adds the logout command to the application
func (cmd *LogoutCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "logout",
		Usage:       "Remove the stored credential",
		UsageText:   "parley logout",
		Description: "Deletes the stored access token. A running 'parley' TUI returns to the login screen.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *LogoutCmd) run(ctx context.Context, _ *cli.Command) error {
	if err := cmd.flags.Service.Logout(ctx); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Logged out")
	return nil
}
