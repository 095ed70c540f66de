package doctor

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// ListenCheck verifies that the server address can be bound.
type ListenCheck struct {
	addr string
}

func NewListenCheck(addr string) *ListenCheck {
	return &ListenCheck{addr: addr}
}

func (c *ListenCheck) Name() string { return "Listener" }

func (c *ListenCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.addr)
	switch {
	case err == nil:
		_ = ln.Close()
		result.add(Pass(c.addr, "available"))
	case errors.Is(err, syscall.EADDRINUSE):
		// Most often a scribble server that is already running.
		result.add(Warn(c.addr, "address already in use"))
	default:
		result.add(Fail(c.addr, err.Error()))
	}

	return result
}
