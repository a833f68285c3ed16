package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/printer"
)

type ConfigCmd struct {
	flags  *Flags
	format string
}

// NewConfigCmd creates the config command group.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds "config validate" and "config show" to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "parley config validate [options]",
				Description: "Validates the configuration file, checking the backend URL, durations, and capture command templates.",
				Flags:       []cli.Flag{formatFlag(&cmd.format)},
				Action:      cmd.run,
			},
			{
				Name:        "show",
				Usage:       "Print the effective configuration",
				UsageText:   "parley config show",
				Description: "Prints the configuration after defaults are applied, as YAML.",
				Action:      cmd.show,
			},
		},
	})

	return app
}

func (cmd *ConfigCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	err := cmd.flags.Config.ValidateDeep(cmd.flags.ConfigPath)
	warnings := cmd.flags.Config.Warnings()

	if cmd.format == formatJSON {
		return cmd.outputJSON(c, err, warnings)
	}

	return cmd.outputText(p, err, warnings)
}

func (cmd *ConfigCmd) outputJSON(c *cli.Command, validationErr error, warnings []config.ValidationWarning) error {
	type fieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	out := struct {
		Valid    bool                       `json:"valid"`
		Errors   []fieldError               `json:"errors,omitempty"`
		Warnings []config.ValidationWarning `json:"warnings,omitempty"`
	}{
		Valid:    validationErr == nil,
		Warnings: warnings,
	}

	for _, fe := range extractFieldErrors(validationErr) {
		out.Errors = append(out.Errors, fieldError{Field: fe.Field, Message: fe.Err.Error()})
	}

	return writeJSON(c.Root().Writer, out)
}

func (cmd *ConfigCmd) show(_ context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	enc := yaml.NewEncoder(c.Root().Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cmd.flags.Config); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// extractFieldErrors extracts field errors from a validation error.
func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func (cmd *ConfigCmd) outputText(p *printer.Printer, validationErr error, warnings []config.ValidationWarning) error {
	fieldErrs := extractFieldErrors(validationErr)

	p.Section(cmd.flags.ConfigPath)
	p.Infof("backend %s, data %s", cmd.flags.Config.API.BaseURL, cmd.flags.Config.DataDir)
	p.Printf("")

	for _, fe := range fieldErrs {
		label := fe.Field
		if label == "" {
			label = "config"
		}
		p.FailItem(label, fe.Err.Error())
	}

	for _, warn := range warnings {
		label := warn.Category
		if warn.Item != "" {
			label += " " + warn.Item
		}
		p.WarnItem(label, warn.Message)
	}

	if len(fieldErrs)+len(warnings) > 0 {
		p.Printf("")
	}

	if validationErr != nil {
		p.Errorf("%d error(s), %d warning(s)", len(fieldErrs), len(warnings))
		return cli.Exit("", 1)
	}

	if len(warnings) > 0 {
		p.Successf("Configuration is valid (%d warning(s))", len(warnings))
		return nil
	}
	p.Successf("Configuration is valid")
	return nil
}
