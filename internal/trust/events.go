package trust

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType names a ledger lifecycle event.
type EventType string

const (
	EventRegistration    EventType = "registration"
	EventBurn            EventType = "burn"
	EventRecovery        EventType = "recovery"
	EventDecay           EventType = "decay"
	EventGovernanceAudit EventType = "governance_audit"
)

// Event is emitted after every committed mutation.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	UserID        string         `json:"user_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Amount        float64        `json:"amount,omitempty"`
	PreviousScore float64        `json:"previous_score,omitempty"`
	NewScore      float64        `json:"new_score,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// Sink consumes ledger events. HandleEvent runs on the dispatcher goroutine,
// so a slow sink delays other sinks but never a ledger mutation.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(ev Event) { f(ev) }

// dispatcher fans events out to sinks from a single goroutine.
type dispatcher struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan Event
	sinks   []Sink
	log     *zap.Logger
	dropped atomic.Int64
	done    chan struct{}
}

func newDispatcher(buffer int, sinks []Sink, log *zap.Logger) *dispatcher {
	d := &dispatcher{
		ch:    make(chan Event, buffer),
		sinks: sinks,
		log:   log,
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		for _, s := range d.sinks {
			d.deliver(s, ev)
		}
	}
}

func (d *dispatcher) deliver(s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("events: sink panicked", zap.String("event", string(ev.Type)), zap.Any("panic", r))
		}
	}()
	s.HandleEvent(ev)
}

// emit never blocks; a full buffer drops the event.
func (d *dispatcher) emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || len(d.sinks) == 0 {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.log.Warn("events: buffer full, dropping event",
			zap.String("event", string(ev.Type)),
			zap.String("user", ev.UserID))
	}
}

// close stops intake and waits for queued events to reach the sinks.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	<-d.done
}
