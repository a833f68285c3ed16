package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/coach"
	"github.com/hay-kot/parley/internal/printer"
)

type RegisterCmd struct {
	flags *Flags
	in    coach.RegisterInput
}

// NewRegisterCmd creates a new register command
func NewRegisterCmd(flags *Flags) *RegisterCmd {
	return &RegisterCmd{flags: flags}
}

// Register adds the register command to the application
func (cmd *RegisterCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "register",
		Usage:       "Create an account",
		UsageText:   "parley register [--username name] [--email address]",
		Description: "Creates a new account on the backend. Registration does not sign in; run 'parley login' afterwards.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Usage:       "account username",
				Destination: &cmd.in.Username,
			},
			&cli.StringFlag{
				Name:        "email",
				Aliases:     []string{"e"},
				Usage:       "account email address",
				Destination: &cmd.in.Email,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "account password",
				Sources:     cli.EnvVars("PARLEY_PASSWORD"),
				Destination: &cmd.in.Password,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RegisterCmd) run(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.in.Password != "" {
		cmd.in.ConfirmPassword = cmd.in.Password
	}

	err := promptFields(ctx,
		promptField{title: "Username", value: &cmd.in.Username},
		promptField{title: "Email", value: &cmd.in.Email},
		promptField{title: "Password", value: &cmd.in.Password, secret: true},
		promptField{title: "Confirm password", value: &cmd.in.ConfirmPassword, secret: true},
	)
	if err != nil {
		return err
	}

	if err := cmd.flags.Service.Register(ctx, cmd.in); err != nil {
		return err
	}

	p.Success(fmt.Sprintf("Registered %s", cmd.in.Username), "run 'parley login' to sign in")
	return nil
}
