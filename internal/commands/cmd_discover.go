package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/scribble/internal/discovery"
	"github.com/hay-kot/scribble/internal/printer"
)

type DiscoverCmd struct {
	flags   *Flags
	timeout time.Duration
	format  string
}

// NewDiscoverCmd creates a new discover command.
func NewDiscoverCmd(flags *Flags) *DiscoverCmd {
	return &DiscoverCmd{flags: flags}
}

// Register adds the discover command to the application.
func (cmd *DiscoverCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "discover",
		Usage:       "Find scribble servers on the local network",
		UsageText:   "scribble discover [options]",
		Description: "Browses mDNS for servers started with discovery enabled (service " + discovery.ServiceType + ").",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "how long to wait for answers",
				Value:       2 * time.Second,
				Destination: &cmd.timeout,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DiscoverCmd) run(ctx context.Context, c *cli.Command) error {
	servers, err := discovery.Browse(ctx, cmd.timeout)
	if err != nil {
		return fmt.Errorf("discover servers: %w", err)
	}

	out := c.Root().Writer
	if cmd.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(servers)
	}

	if len(servers) == 0 {
		printer.Ctx(ctx).Infof("No servers found within %s", cmd.timeout)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INSTANCE\tHOST\tURL\tINFO")
	for _, s := range servers {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Instance, s.Host, s.URL(), strings.Join(s.Info, " "))
	}
	return w.Flush()
}
