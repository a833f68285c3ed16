package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/commands/doctor"
	"github.com/hay-kot/parley/internal/printer"
)

type DoctorCmd struct {
	flags   *Flags
	format  string
	offline bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your parley setup",
		UsageText:   "parley doctor [options]",
		Description: "Runs diagnostic checks on configuration, the stored credential, backend reachability, and microphone capture.",
		Flags: []cli.Flag{
			formatFlag(&cmd.format),
			&cli.BoolFlag{
				Name:        "offline",
				Usage:       "skip checks that contact the backend",
				Destination: &cmd.offline,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	svc := cmd.flags.Service

	checks := []doctor.Check{
		doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath),
		doctor.NewAuthCheck(svc.Gate()),
	}
	if !cmd.offline {
		checks = append(checks, doctor.NewBackendCheck(svc.Client(), cmd.flags.Config.API.Timeout))
	}
	checks = append(checks, doctor.NewCaptureCheck(cmd.flags.Config))

	results := doctor.RunAll(ctx, checks)

	if cmd.format == formatJSON {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	counts := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary doctor.Counts   `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: counts.Healthy(),
		Summary: counts,
		Checks:  results,
	}

	if err := writeJSON(c.Root().Writer, out); err != nil {
		return err
	}
	if !counts.Healthy() {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *DoctorCmd) outputText(ctx context.Context, results []doctor.Result) error {
	p := printer.Ctx(ctx)

	for _, result := range results {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
		}

		p.Printf("")
	}

	counts := doctor.Summary(results)
	p.Printf("Summary: %d passed, %d warnings, %d failed", counts.Passed, counts.Warned, counts.Failed)

	if !counts.Healthy() {
		return cli.Exit("", 1)
	}

	return nil
}
