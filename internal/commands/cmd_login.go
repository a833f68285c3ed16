package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/printer"
)

type LoginCmd struct {
	flags         *Flags
	username      string
	password      string
	passwordStdin bool
}

// NewLoginCmd creates a new login command
func NewLoginCmd(flags *Flags) *LoginCmd {
	return &LoginCmd{flags: flags}
}

// Register adds the login command to the application
func (cmd *LoginCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "login",
		Usage:     "Sign in to the coaching backend",
		UsageText: "parley login [--username name] [--password-stdin]",
		Description: `Exchanges a username and password for an access token and stores it in
the data directory. Missing values are prompted for when a terminal is
attached.

Example:
  parley login -u alice
  echo "$PASSWORD" | parley login -u alice --password-stdin`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Usage:       "account username",
				Sources:     cli.EnvVars("PARLEY_USERNAME"),
				Destination: &cmd.username,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "account password (prefer --password-stdin)",
				Sources:     cli.EnvVars("PARLEY_PASSWORD"),
				Destination: &cmd.password,
			},
			&cli.BoolFlag{
				Name:        "password-stdin",
				Usage:       "read the password from stdin",
				Destination: &cmd.passwordStdin,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LoginCmd) run(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.passwordStdin {
		pw, err := readSecret(os.Stdin)
		if err != nil {
			return err
		}
		cmd.password = pw
	}

	err := promptFields(ctx,
		promptField{title: "Username", value: &cmd.username},
		promptField{title: "Password", value: &cmd.password, secret: true},
	)
	if err != nil {
		return err
	}

	claims, err := cmd.flags.Service.Login(ctx, cmd.username, cmd.password)
	if err != nil {
		return err
	}

	detail := ""
	if !claims.ExpiresAt.IsZero() {
		detail = fmt.Sprintf("session expires in %s", claims.Remaining(time.Now()).Round(time.Minute))
	}

	name := claims.Subject
	if name == "" {
		name = cmd.username
	}
	p.Success("Logged in as "+name, detail)
	return nil
}
