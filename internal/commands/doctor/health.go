package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"
)

// HealthCheck calls GET /health on a running server.
type HealthCheck struct {
	baseURL string
	client  *http.Client
}

func NewHealthCheck(baseURL string, timeout time.Duration) *HealthCheck {
	return &HealthCheck{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *HealthCheck) Name() string { return "Server" }

func (c *HealthCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	url := c.baseURL + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.add(Fail(url, err.Error()))
		return result
	}

	resp, err := c.client.Do(req)
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		result.add(Warn(url, "no server running"))
		return result
	case err != nil:
		result.add(Fail(url, err.Error()))
		return result
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		result.add(Fail(url, resp.Status))
		return result
	}

	var body struct {
		Status           string `json:"status"`
		ActiveRooms      int    `json:"activeRooms"`
		TotalConnections int    `json:"totalConnections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.add(Fail(url, fmt.Sprintf("decode response: %v", err)))
		return result
	}

	result.add(Pass(url, fmt.Sprintf("%s, %d rooms, %d connections", body.Status, body.ActiveRooms, body.TotalConnections)))
	return result
}
