package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: 2 * time.Second, Max: 7 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 0},
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 6 * time.Second},
		{4, 7 * time.Second},
		{1000, 7 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_DelayMonotonic(t *testing.T) {
	for _, p := range []Policy{DefaultPolicy, {Base: time.Millisecond}, {Base: 3 * time.Second, Max: time.Second}} {
		prev := time.Duration(0)
		for n := 1; n <= 50; n++ {
			d := p.Delay(n)
			assert.GreaterOrEqual(t, d, prev)
			prev = d
		}
	}
}

func TestPolicy_DefaultMatchesLinearSchedule(t *testing.T) {
	var got []time.Duration
	for n := 1; n <= DefaultPolicy.MaxAttempts; n++ {
		got = append(got, DefaultPolicy.Delay(n))
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second, 10 * time.Second}, got)
}

func TestMachine_Lifecycle(t *testing.T) {
	m := NewMachine(Policy{Base: time.Second, MaxAttempts: 2})
	assert.Equal(t, StateDisconnected, m.State())

	require.NoError(t, m.Connect())
	assert.Equal(t, StateConnecting, m.State())
	assert.Error(t, m.Connect())

	require.NoError(t, m.Opened())
	assert.Equal(t, StateConnected, m.State())

	d, ok := m.Failed()
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
	assert.Equal(t, StateReconnecting, m.State())

	require.NoError(t, m.Retry())
	d, ok = m.Failed()
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
	assert.Equal(t, 2, m.Attempts())

	require.NoError(t, m.Retry())
	_, ok = m.Failed()
	assert.False(t, ok)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestMachine_OpenedResetsAttempts(t *testing.T) {
	m := NewMachine(Policy{Base: time.Second, MaxAttempts: 1})
	require.NoError(t, m.Connect())

	_, ok := m.Failed()
	require.True(t, ok)
	require.NoError(t, m.Retry())
	require.NoError(t, m.Opened())
	assert.Equal(t, 0, m.Attempts())

	// A fresh drop gets the full budget again.
	d, ok := m.Failed()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestMachine_InvalidTransitions(t *testing.T) {
	m := NewMachine(DefaultPolicy)

	assert.Error(t, m.Opened())
	assert.Error(t, m.Retry())
	_, ok := m.Failed()
	assert.False(t, ok)

	require.NoError(t, m.Connect())
	m.Stop()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestMachine_UnlimitedAttempts(t *testing.T) {
	m := NewMachine(Policy{Base: time.Millisecond})
	require.NoError(t, m.Connect())
	for i := 0; i < 100; i++ {
		_, ok := m.Failed()
		require.True(t, ok)
		require.NoError(t, m.Retry())
	}
}
