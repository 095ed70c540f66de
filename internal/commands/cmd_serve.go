package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/scribble/internal/core/activity"
	"github.com/hay-kot/scribble/internal/core/room"
	"github.com/hay-kot/scribble/internal/discovery"
	"github.com/hay-kot/scribble/internal/metrics"
	"github.com/hay-kot/scribble/internal/printer"
	"github.com/hay-kot/scribble/internal/server"
	"github.com/hay-kot/scribble/internal/store/jsonfile"
	"github.com/hay-kot/scribble/internal/styles"
)

type ServeCmd struct {
	flags *Flags

	addr      string
	advertise bool
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the drawing sync server",
		UsageText: "scribble serve [options]",
		Description: `Starts the websocket server that keeps every room's canvas in sync.

Clients connect to /ws and send a join message to enter a room. Rooms are
created on first join and discarded when the last participant leaves.

HTTP endpoints:
  GET /health          server status
  GET /rooms           every live room
  GET /room/{roomId}   one room
  GET /metrics         prometheus metrics`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address, overrides server.addr",
				Sources:     cli.EnvVars("SCRIBBLE_ADDR"),
				Destination: &cmd.addr,
			},
			&cli.BoolFlag{
				Name:        "advertise",
				Usage:       "advertise the server over mDNS, overrides discovery.enabled",
				Destination: &cmd.advertise,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	cfg := cmd.flags.Config

	if cmd.addr != "" {
		cfg.Server.Addr = cmd.addr
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
	}
	if cmd.advertise {
		cfg.Discovery.Enabled = true
	}

	logger := log.With().Str("component", "server").Logger()

	collector := metrics.New()
	observers := room.Observers{collector}

	if cfg.Activity.Enabled {
		store := jsonfile.NewActivityStore(cfg.ActivityDir()).WithMaxEntries(cfg.Activity.MaxEntries)
		recorder := activity.NewRecorder(store, activity.DefaultBuffer, log.With().Str("component", "activity").Logger())
		defer recorder.Close()

		observers = append(observers, recorder)
		logger.Info().Str("path", store.Path()).Msg("recording activity")
	}

	registry := room.NewRegistry(room.Options{
		Capacity: cfg.History.Capacity,
		Observer: observers,
		Logger:   log.With().Str("component", "registry").Logger(),
	})
	srv := server.New(registry, server.OptionsFromConfig(cfg), collector, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	if cfg.Discovery.Enabled {
		port := ln.Addr().(*net.TCPAddr).Port
		adv, err := discovery.Advertise(cfg.Discovery.Instance, port, []string{"version=" + c.Root().Version, "path=/ws"}, logger)
		if err != nil {
			// The server is still reachable by address.
			p.Warnf("mDNS advertising unavailable: %v", err)
		} else {
			defer func() { _ = adv.Shutdown() }()
		}
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		p.Printf("%s\n", styles.BannerStyle.Render(styles.Banner))
	}
	p.Infof("listening on %s", localURL("ws", ln.Addr().String(), "/ws"))

	return srv.Serve(ctx, ln)
}
