package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/scribble/internal/core/room"
	"github.com/hay-kot/scribble/internal/styles"
)

// Options configures the dashboard.
type Options struct {
	// Source names the server in the header.
	Source   string
	Interval time.Duration
	Now      func() time.Time
}

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// Model is the Bubble Tea model for the room dashboard.
type Model struct {
	fetch    Fetcher
	opts     Options
	table    table.Model
	stats    room.Stats
	err      error
	updated  time.Time
	loading  bool
	width    int
	height   int
	quitting bool
}

// New creates a dashboard that polls f.
func New(f Fetcher, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return Model{
		fetch:   f,
		opts:    opts,
		table:   t,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return loadStats(m.fetch)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			m.loading = true
			return m, loadStats(m.fetch)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(msg.Height-chromeRows, 3))
		return m, nil

	case statsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.updated = m.opts.Now()
			m.table.SetRows(rows(msg.stats, m.updated))
		}
		return m, schedulePoll(m.opts.Interval)

	case pollTickMsg:
		m.loading = true
		return m, loadStats(m.fetch)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// chromeRows is the number of lines View draws around the table: title,
// summary, a blank line, the error line and the key help, plus one spare.
const chromeRows = 6

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("scribble " + styles.Dot + " " + m.opts.Source))
	b.WriteString("\n")

	summary := fmt.Sprintf("%d rooms  %d connections", m.stats.ActiveRooms, m.stats.TotalConnections)
	b.WriteString(summaryStyle.Render(summary))
	b.WriteString("  ")
	b.WriteString(m.status())
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(keys.Refresh.Help().Key + " " + keys.Refresh.Help().Desc + "  " +
		keys.Quit.Help().Key + " " + keys.Quit.Help().Desc))
	return b.String()
}

func (m Model) status() string {
	switch {
	case m.updated.IsZero():
		return staleStyle.Render("connecting")
	case m.err != nil:
		return staleStyle.Render("stale since " + m.updated.Format(time.TimeOnly))
	default:
		return liveStyle.Render(styles.Dot + " live")
	}
}

func columns(width int) []table.Column {
	users := max(width-8-10-8-10-40, 12)
	return []table.Column{
		{Title: "Room", Width: 24},
		{Title: "Users", Width: 6},
		{Title: "Actions", Width: 8},
		{Title: "Cursor", Width: 7},
		{Title: "Age", Width: 10},
		{Title: "Participants", Width: users},
	}
}

func rows(stats room.Stats, now time.Time) []table.Row {
	out := make([]table.Row, 0, len(stats.Rooms))
	for _, info := range stats.Rooms {
		names := make([]string, 0, len(info.Users))
		for _, u := range info.Users {
			names = append(names, u.UserID)
		}

		out = append(out, table.Row{
			info.RoomID,
			strconv.Itoa(info.UserCount),
			strconv.Itoa(info.History.TotalActions),
			strconv.Itoa(info.History.Cursor),
			age(now.Sub(info.CreatedAt)),
			strings.Join(names, ", "),
		})
	}
	return out
}

func age(d time.Duration) string {
	d = max(d, 0)
	switch {
	case d < time.Minute:
		return strconv.Itoa(int(d/time.Second)) + "s"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m"
	default:
		return strconv.Itoa(int(d/time.Hour)) + "h" + strconv.Itoa(int(d%time.Hour/time.Minute)) + "m"
	}
}
