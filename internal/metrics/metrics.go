// Package metrics exposes Prometheus collectors for the sync server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hay-kot/scribble/internal/core/protocol"
	"github.com/hay-kot/scribble/internal/core/room"
	"github.com/hay-kot/scribble/internal/core/session"
)

const namespace = "scribble"

var (
	_ room.Observer   = (*Collector)(nil)
	_ session.Metrics = (*Collector)(nil)
)

// Collector holds all Prometheus metrics for the server. Each Collector owns
// a private registry so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	RoomsActive           prometheus.Gauge
	ParticipantsConnected prometheus.Gauge
	MessagesReceived      *prometheus.CounterVec
	MessagesSent          prometheus.Counter
	MessagesDropped       prometheus.Counter
	ProtocolErrors        prometheus.Counter
	HistoryOperations     *prometheus.CounterVec
}

// New creates a Collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one participant",
		}),
		ParticipantsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants_connected",
			Help:      "Number of participants joined to a room",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound protocol messages by type",
		}, []string{"type"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Fan-out messages enqueued to participants",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Fan-out messages dropped because the recipient was closed or backlogged",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Inbound frames rejected as malformed, unknown or invalid",
		}),
		HistoryOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_operations_total",
			Help:      "Action history operations by kind",
		}, []string{"op"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.RoomsActive,
		c.ParticipantsConnected,
		c.MessagesReceived,
		c.MessagesSent,
		c.MessagesDropped,
		c.ProtocolErrors,
		c.HistoryOperations,
	)

	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the exposition format for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe implements room.Observer.
func (c *Collector) Observe(ev room.Event) {
	switch ev.Kind {
	case room.EventRoomCreated:
		c.RoomsActive.Inc()
	case room.EventRoomDeleted:
		c.RoomsActive.Dec()
	case room.EventJoined:
		c.ParticipantsConnected.Inc()
	case room.EventLeft:
		c.ParticipantsConnected.Dec()
	}
}

// MessageReceived implements session.Metrics.
func (c *Collector) MessageReceived(t protocol.Type) {
	c.MessagesReceived.WithLabelValues(string(t)).Inc()
}

// ProtocolError implements session.Metrics.
func (c *Collector) ProtocolError() {
	c.ProtocolErrors.Inc()
}

// Delivered implements session.Metrics.
func (c *Collector) Delivered(d room.Delivery) {
	c.MessagesSent.Add(float64(d.Sent))
	c.MessagesDropped.Add(float64(d.Dropped))
}

// HistoryOperation implements session.Metrics.
func (c *Collector) HistoryOperation(op string) {
	c.HistoryOperations.WithLabelValues(op).Inc()
}
