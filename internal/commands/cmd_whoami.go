package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/printer"
)

type WhoamiCmd struct {
	flags  *Flags
	format string
}

// NewWhoamiCmd creates a new whoami command
func NewWhoamiCmd(flags *Flags) *WhoamiCmd {
	return &WhoamiCmd{flags: flags}
}

// Register adds the whoami command to the application
func (cmd *WhoamiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "whoami",
		Usage:     "Show the signed in account",
		UsageText: "parley whoami [--format json]",
		Flags:     []cli.Flag{formatFlag(&cmd.format)},
		Action:    cmd.run,
	})

	return app
}

func (cmd *WhoamiCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireSession(ctx, cmd.flags); err != nil {
		return err
	}

	user, err := cmd.flags.Service.Me(ctx)
	if err != nil {
		return hintAuth(err)
	}

	claims, _ := cmd.flags.Service.Gate().Claims(ctx)
	stored, _ := cmd.flags.Service.Tokens().Stored(ctx)

	if cmd.format == formatJSON {
		return writeJSON(c.Root().Writer, struct {
			ID        int       `json:"id"`
			Username  string    `json:"username"`
			Email     string    `json:"email"`
			CreatedAt time.Time `json:"created_at"`
			ExpiresAt time.Time `json:"expires_at,omitzero"`
			SignedIn  time.Time `json:"signed_in_at,omitzero"`
		}{user.ID, user.Username, user.Email, user.CreatedAt.Time, claims.ExpiresAt, stored.SavedAt})
	}

	p := printer.Ctx(ctx)
	p.Printf("%s <%s>", p.Bold(user.Username), user.Email)
	p.Infof("member since %s", user.CreatedAt.Local().Format("2006-01-02"))
	if !stored.SavedAt.IsZero() {
		p.Infof("signed in %s", stored.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	if !claims.ExpiresAt.IsZero() {
		p.Infof("session expires in %s", claims.Remaining(time.Now()).Round(time.Minute))
	}
	p.Infof("backend %s", cmd.flags.Service.Client().BaseURL())
	return nil
}
