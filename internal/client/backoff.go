package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrGaveUp is returned by Run once every reconnect attempt has failed.
var ErrGaveUp = errors.New("reconnect attempts exhausted")

// Policy controls how long the client waits between reconnect attempts.
type Policy struct {
	// Base is the delay before the first retry. Attempt n waits Base*n.
	Base time.Duration
	// Max caps a single delay. Zero means no cap.
	Max time.Duration
	// MaxAttempts bounds consecutive failed attempts. Zero or less retries
	// forever.
	MaxAttempts int
}

// DefaultPolicy waits 2s, 4s, 6s, 8s, 10s and then gives up.
var DefaultPolicy = Policy{
	Base:        2 * time.Second,
	Max:         30 * time.Second,
	MaxAttempts: 5,
}

// Delay returns the wait before reconnect attempt n, counting from 1. It never
// decreases as n grows.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.Base <= 0 {
		return 0
	}
	if p.Max > 0 && attempt > int(p.Max/p.Base) {
		return p.Max
	}
	return p.Base * time.Duration(attempt)
}

// State is a connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Machine tracks connection state and retry attempts. It has no timers of its
// own; callers wait for the delay returned by Failed. It is not safe for
// concurrent use.
type Machine struct {
	policy   Policy
	state    State
	attempts int
}

// NewMachine returns a machine in StateDisconnected.
func NewMachine(p Policy) *Machine {
	return &Machine{policy: p, state: StateDisconnected}
}

func (m *Machine) State() State  { return m.state }
func (m *Machine) Attempts() int { return m.attempts }

// Connect starts the first attempt.
func (m *Machine) Connect() error {
	if m.state != StateDisconnected {
		return fmt.Errorf("connect from %s", m.state)
	}
	m.state = StateConnecting
	return nil
}

// Opened records a successful dial and resets the attempt counter.
func (m *Machine) Opened() error {
	if m.state != StateConnecting {
		return fmt.Errorf("open from %s", m.state)
	}
	m.state = StateConnected
	m.attempts = 0
	return nil
}

// Failed records a failed dial or a dropped connection. It returns the delay
// before the next attempt, or false once attempts are exhausted and the
// machine is back in StateDisconnected.
func (m *Machine) Failed() (time.Duration, bool) {
	if m.state != StateConnecting && m.state != StateConnected {
		return 0, false
	}
	if m.policy.MaxAttempts > 0 && m.attempts >= m.policy.MaxAttempts {
		m.state = StateDisconnected
		return 0, false
	}

	m.attempts++
	m.state = StateReconnecting
	return m.policy.Delay(m.attempts), true
}

// Retry starts the attempt scheduled by Failed.
func (m *Machine) Retry() error {
	if m.state != StateReconnecting {
		return fmt.Errorf("retry from %s", m.state)
	}
	m.state = StateConnecting
	return nil
}

// Stop moves to StateDisconnected from any state.
func (m *Machine) Stop() {
	m.state = StateDisconnected
	m.attempts = 0
}
