package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/scribble/internal/commands/doctor"
	"github.com/hay-kot/scribble/internal/printer"
)

var errConfigNotLoaded = errors.New("configuration not loaded")

type ConfigCmd struct {
	flags  *Flags
	format string
}

// NewConfigCmd creates a new config command.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds the config command to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Inspect the scribble configuration",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate the configuration file",
				UsageText:   "scribble config validate [--format text|json]",
				Description: "Validates the configuration and lists settings that are probably unintended. Exits 1 when invalid.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.runValidate,
			},
			{
				Name:        "show",
				Usage:       "Print the effective configuration",
				UsageText:   "scribble config show",
				Description: "Prints the configuration after defaults are applied, as YAML.",
				Action:      cmd.runShow,
			},
		},
	})

	return app
}

func (cmd *ConfigCmd) runValidate(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		return errConfigNotLoaded
	}

	validationErr := cfg.Validate()
	items := doctor.ConfigItems(validationErr, cfg.Warnings())

	if cmd.format == "json" {
		out := struct {
			Valid bool               `json:"valid"`
			Items []doctor.CheckItem `json:"items,omitempty"`
		}{
			Valid: validationErr == nil,
			Items: items,
		}
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		p := printer.Ctx(ctx)
		if len(items) > 0 {
			p.Section(cmd.flags.ConfigPath)
			printItems(p, items)
			p.Printf("")
		}
		switch {
		case validationErr != nil:
		case len(items) > 0:
			p.Successf("Configuration is valid (%d warning(s))", len(items))
		default:
			p.Successf("Configuration is valid")
		}
	}

	if validationErr != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ConfigCmd) runShow(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return errConfigNotLoaded
	}

	enc := yaml.NewEncoder(c.Root().Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cmd.flags.Config); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
