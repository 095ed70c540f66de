package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/scribble/internal/printer"
	"github.com/hay-kot/scribble/internal/tui"
)

type RoomsCmd struct {
	flags  *Flags
	url    string
	format string
}

// NewRoomsCmd creates a new rooms command.
func NewRoomsCmd(flags *Flags) *RoomsCmd {
	return &RoomsCmd{flags: flags}
}

// Register adds the rooms command to the application.
func (cmd *RoomsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "rooms",
		Usage:       "List live rooms on a running server",
		UsageText:   "scribble rooms [options]",
		Description: "Fetches GET /rooms from the server and prints one line per room.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "server base URL (default: derived from server.addr)",
				Destination: &cmd.url,
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

func (cmd *RoomsCmd) run(ctx context.Context, c *cli.Command) error {
	url := cmd.url
	if url == "" {
		url = cmd.flags.baseURL()
	}

	stats, err := tui.HTTPFetcher{BaseURL: url}.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("fetch rooms: %w", err)
	}

	out := c.Root().Writer
	if cmd.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if len(stats.Rooms) == 0 {
		printer.Ctx(ctx).Infof("No active rooms")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROOM\tUSERS\tACTIONS\tCURSOR\tCREATED")
	for _, info := range stats.Rooms {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			info.RoomID,
			info.UserCount,
			info.History.TotalActions,
			info.History.Cursor,
			info.CreatedAt.Local().Format(time.DateTime),
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d rooms, %d connections\n", stats.ActiveRooms, stats.TotalConnections)
	return nil
}
