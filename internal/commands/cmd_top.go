package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/scribble/internal/tui"
)

type TopCmd struct {
	flags    *Flags
	url      string
	interval time.Duration
}

// NewTopCmd creates a new top command.
func NewTopCmd(flags *Flags) *TopCmd {
	return &TopCmd{flags: flags}
}

// Register adds the top command to the application.
func (cmd *TopCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "top",
		Usage:       "Live dashboard of rooms on a running server",
		UsageText:   "scribble top [options]",
		Description: "Polls GET /rooms and shows rooms, participants and history sizes. Press r to refresh, q to quit.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "server base URL (default: derived from server.addr)",
				Destination: &cmd.url,
			},
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "poll interval",
				Value:       tui.DefaultInterval,
				Destination: &cmd.interval,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TopCmd) run(ctx context.Context, c *cli.Command) error {
	url := cmd.url
	if url == "" {
		url = cmd.flags.baseURL()
	}

	m := tui.New(tui.HTTPFetcher{BaseURL: url}, tui.Options{
		Source:   url,
		Interval: cmd.interval,
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
