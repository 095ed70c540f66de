package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sanity-io/litter"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/scribble/internal/client"
	"github.com/hay-kot/scribble/internal/core/protocol"
	"github.com/hay-kot/scribble/internal/styles"
)

const connectHelp = `commands:
  draw x1 y1 x2 y2 [color] [width]
  cursor x y
  undo | redo | clear | sync
  peers | status
  quit`

type ConnectCmd struct {
	flags *Flags

	url  string
	room string
	user string
	dump bool
}

// NewConnectCmd creates a new connect command.
func NewConnectCmd(flags *Flags) *ConnectCmd {
	return &ConnectCmd{flags: flags}
}

// Register adds the connect command to the application.
func (cmd *ConnectCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "connect",
		Usage:     "Join a room from the terminal",
		UsageText: "scribble connect [options]",
		Description: `Joins a room as a drawing client, prints every event the server sends and
reads commands from stdin. The connection is retried with a linear backoff
when it drops, and commands typed while offline are sent after rejoining.

` + connectHelp,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "websocket URL (default: derived from server.addr)",
				Destination: &cmd.url,
			},
			&cli.StringFlag{
				Name:        "room",
				Aliases:     []string{"r"},
				Usage:       "room to join",
				Value:       "default",
				Destination: &cmd.room,
			},
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id (default: random)",
				Destination: &cmd.user,
			},
			&cli.BoolFlag{
				Name:        "dump",
				Usage:       "print the full decoded message for every event",
				Destination: &cmd.dump,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ConnectCmd) run(ctx context.Context, c *cli.Command) error {
	url := cmd.url
	if url == "" {
		url = cmd.flags.wsURL()
	}

	out := &lineWriter{w: c.Root().Writer}
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cl := client.New(client.Options{
		URL:    url,
		RoomID: cmd.room,
		UserID: cmd.user,
		Logger: log.With().Str("component", "connect").Logger(),
		OnState: func(s client.State) {
			out.println(styles.DividerStyle.Render("[" + string(s) + "]"))
		},
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- cl.Run(ctx, func(msg protocol.Message) {
			if cmd.dump {
				out.println(litter.Sdump(msg))
				return
			}
			if line := formatEvent(msg); line != "" {
				out.println(line)
			}
		})
	}()

	reader := c.Root().Reader
	if reader == nil {
		reader = os.Stdin
	}
	lines := scanLines(reader)

	for {
		if interactive {
			out.print("> ")
		}

		select {
		case err := <-errCh:
			return err
		case line, ok := <-lines:
			if !ok {
				cancel()
				return <-errCh
			}

			in, err := parseInput(line)
			if err != nil {
				out.println(err.Error())
				continue
			}
			if in.kind == inputQuit {
				cancel()
				return <-errCh
			}
			if err := cmd.apply(cl, in, out); err != nil {
				out.println(err.Error())
			}
		}
	}
}

func (cmd *ConnectCmd) apply(cl *client.Client, in input, out *lineWriter) error {
	switch in.kind {
	case inputNone:
		return nil
	case inputHelp:
		out.println(connectHelp)
		return nil
	case inputDraw:
		return cl.Draw(in.from[0], in.from[1], in.to[0], in.to[1], in.color, in.width)
	case inputCursor:
		return cl.Cursor(in.from[0], in.from[1])
	case inputUndo:
		return cl.Undo()
	case inputRedo:
		return cl.Redo()
	case inputClear:
		return cl.Clear()
	case inputSync:
		return cl.Sync()
	case inputPeers:
		peers := cl.Peers()
		if len(peers) == 0 {
			out.println("no other participants")
			return nil
		}
		out.println(strings.Join(peers, ", "))
		return nil
	case inputStatus:
		out.println(fmt.Sprintf("%s %s room=%s user=%s latency=%s queued=%d",
			cl.State(), styles.Dot, cl.RoomID(), cl.UserID(), cl.Latency(), cl.Queued()))
		return nil
	default:
		return fmt.Errorf("unhandled command %q", in.kind)
	}
}

type inputKind string

const (
	inputNone   inputKind = ""
	inputHelp   inputKind = "help"
	inputDraw   inputKind = "draw"
	inputCursor inputKind = "cursor"
	inputUndo   inputKind = "undo"
	inputRedo   inputKind = "redo"
	inputClear  inputKind = "clear"
	inputSync   inputKind = "sync"
	inputPeers  inputKind = "peers"
	inputStatus inputKind = "status"
	inputQuit   inputKind = "quit"
)

type input struct {
	kind  inputKind
	from  [2]float64
	to    [2]float64
	color string
	width float64
}

// parseInput parses one line typed at the connect prompt.
func parseInput(line string) (input, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return input{}, nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch inputKind(name) {
	case inputDraw:
		if len(args) < 4 || len(args) > 6 {
			return input{}, fmt.Errorf("usage: draw x1 y1 x2 y2 [color] [width]")
		}
		nums, err := parseFloats(args[:4])
		if err != nil {
			return input{}, err
		}
		in := input{
			kind:  inputDraw,
			from:  [2]float64{nums[0], nums[1]},
			to:    [2]float64{nums[2], nums[3]},
			color: "#000000",
			width: 2,
		}
		if len(args) > 4 {
			in.color = args[4]
		}
		if len(args) > 5 {
			w, err := strconv.ParseFloat(args[5], 64)
			if err != nil {
				return input{}, fmt.Errorf("invalid width %q", args[5])
			}
			in.width = w
		}
		return in, nil

	case inputCursor:
		if len(args) != 2 {
			return input{}, fmt.Errorf("usage: cursor x y")
		}
		nums, err := parseFloats(args)
		if err != nil {
			return input{}, err
		}
		return input{kind: inputCursor, from: [2]float64{nums[0], nums[1]}}, nil

	case inputHelp, inputUndo, inputRedo, inputClear, inputSync, inputPeers, inputStatus, inputQuit:
		if len(args) != 0 {
			return input{}, fmt.Errorf("%s takes no arguments", name)
		}
		return input{kind: inputKind(name)}, nil

	case "exit":
		return input{kind: inputQuit}, nil
	}

	return input{}, fmt.Errorf("unknown command %q, type help", name)
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = f
	}
	return out, nil
}

// formatEvent renders one server message as a single line. Pongs render as
// nothing.
func formatEvent(msg protocol.Message) string {
	var detail string

	switch m := msg.(type) {
	case protocol.Joined:
		detail = fmt.Sprintf("room %s as %s, %d others, %d actions (cursor %d)",
			m.RoomID, user(m.UserID), len(m.Users), len(m.CanvasState.Actions), m.CanvasState.Cursor)
	case protocol.UserJoined:
		detail = user(m.UserID)
	case protocol.UserLeft:
		detail = user(m.UserID)
	case protocol.Draw:
		detail = fmt.Sprintf("%s (%g,%g) -> (%g,%g) %s w=%g #%d",
			user(m.UserID), m.FromX, m.FromY, m.ToX, m.ToY, m.Color, m.Width, m.SequenceID)
	case protocol.Cursor:
		detail = fmt.Sprintf("%s at (%g,%g)", user(m.UserID), m.X, m.Y)
	case protocol.Undo:
		detail = formatStep(m.UserID, m.HistoryStep)
	case protocol.Redo:
		detail = formatStep(m.UserID, m.HistoryStep)
	case protocol.Clear:
		detail = fmt.Sprintf("%s cleared the canvas #%d", user(m.UserID), m.SequenceID)
	case protocol.CanvasSync:
		detail = fmt.Sprintf("%d actions (cursor %d)", len(m.CanvasState.Actions), m.CanvasState.Cursor)
	case protocol.Error:
		detail = m.Message
	case protocol.Pong:
		return ""
	default:
		detail = fmt.Sprintf("%+v", m)
	}

	return styles.EventStyle.Render(string(msg.Type())) + " " + detail
}

func formatStep(userID string, step protocol.HistoryStep) string {
	if !step.Success {
		return fmt.Sprintf("%s nothing to apply (cursor %d of %d)", user(userID), step.Cursor, step.TotalActions)
	}
	return fmt.Sprintf("%s cursor %d of %d", user(userID), step.Cursor, step.TotalActions)
}

func user(id string) string {
	return styles.UserStyle.Render(id)
}

func scanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(r)
		for s.Scan() {
			lines <- s.Text()
		}
	}()
	return lines
}

// lineWriter serializes output from the event and input goroutines.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) print(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, s)
}

func (l *lineWriter) println(s string) {
	l.print(s + "\n")
}
