package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/scribble/internal/core/room"
)

// DefaultInterval is how often the dashboard polls the server.
const DefaultInterval = time.Second

const fetchTimeout = 5 * time.Second

// Fetcher loads the current room statistics.
type Fetcher interface {
	Rooms(ctx context.Context) (room.Stats, error)
}

// HTTPFetcher reads GET /rooms from a running server.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f HTTPFetcher) Rooms(ctx context.Context) (room.Stats, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimSuffix(f.BaseURL, "/") + "/rooms"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return room.Stats{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return room.Stats{}, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return room.Stats{}, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}

	var stats room.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return room.Stats{}, fmt.Errorf("decode rooms: %w", err)
	}
	return stats, nil
}

// statsLoadedMsg carries the result of one poll.
type statsLoadedMsg struct {
	stats room.Stats
	err   error
}

// pollTickMsg triggers the next poll.
type pollTickMsg struct{}

func loadStats(f Fetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		stats, err := f.Rooms(ctx)
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func schedulePoll(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}
