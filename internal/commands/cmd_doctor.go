package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/scribble/internal/commands/doctor"
	"github.com/hay-kot/scribble/internal/printer"
)

type DoctorCmd struct {
	flags  *Flags
	format string
	server bool
	url    string
}

// NewDoctorCmd creates a new doctor command.
func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

// Register adds the doctor command to the application.
func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "doctor",
		Usage:     "Run health checks on your scribble setup",
		UsageText: "scribble doctor [options]",
		Description: `Checks the configuration, whether the listen address is free and whether the
activity log directory is writable. With --server it also checks /health on a
running server.

Exits 1 when any check fails.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "server",
				Usage:       "also check a running server",
				Destination: &cmd.server,
			},
			&cli.StringFlag{
				Name:        "url",
				Usage:       "server base URL for --server (default: derived from server.addr)",
				Destination: &cmd.url,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	checks := []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewListenCheck(cfg.Server.Addr),
		doctor.NewDataDirCheck(cfg.ActivityDir(), cfg.Activity.Enabled),
	}
	if cmd.server {
		url := cmd.url
		if url == "" {
			url = cmd.flags.baseURL()
		}
		checks = append(checks, doctor.NewHealthCheck(url, 3*time.Second))
	}

	report := doctor.NewReport(doctor.RunAll(ctx, checks))

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		cmd.outputText(printer.Ctx(ctx), report)
	}

	if !report.Healthy {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *DoctorCmd) outputText(p *printer.Printer, report doctor.Report) {
	for _, result := range report.Checks {
		p.Section(result.Name)
		printItems(p, result.Items)
		p.Printf("")
	}

	s := report.Summary
	p.Printf("Summary: %d passed, %d warnings, %d failed", s.Passed, s.Warned, s.Failed)
}

func printItems(p *printer.Printer, items []doctor.CheckItem) {
	for _, item := range items {
		switch item.Status {
		case doctor.StatusPass:
			p.CheckItem(item.Label, item.Detail)
		case doctor.StatusWarn:
			p.WarnItem(item.Label, item.Detail)
		case doctor.StatusFail:
			p.FailItem(item.Label, item.Detail)
		}
	}
}
