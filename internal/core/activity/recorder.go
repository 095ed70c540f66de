package activity

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/hay-kot/scribble/internal/core/room"
)

// DefaultBuffer is the number of events a Recorder queues before dropping.
const DefaultBuffer = 256

// Recorder is a room.Observer that persists events on a background
// goroutine. Observe never blocks; when the queue is full the event is
// dropped and counted.
type Recorder struct {
	store Store
	log   zerolog.Logger
	queue chan Activity

	dropped atomic.Uint64
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder creates a Recorder and starts its writer goroutine. Call Close
// to flush queued events and stop it.
func NewRecorder(store Store, buffer int, log zerolog.Logger) *Recorder {
	if buffer < 1 {
		buffer = DefaultBuffer
	}

	r := &Recorder{
		store: store,
		log:   log,
		queue: make(chan Activity, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe implements room.Observer. Events observed after Close are
// dropped.
func (r *Recorder) Observe(ev room.Event) {
	a := FromEvent(ev)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		r.log.Debug().Str("type", string(a.Type)).Msg("activity after close")
		return
	}

	select {
	case r.queue <- a:
	default:
		n := r.dropped.Add(1)
		r.log.Warn().Str("type", string(a.Type)).Uint64("dropped", n).Msg("activity queue full")
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be written. It
// is safe to call more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for a := range r.queue {
		if err := r.store.Record(a); err != nil {
			r.log.Error().Err(err).Str("type", string(a.Type)).Msg("record activity")
		}
	}
}
