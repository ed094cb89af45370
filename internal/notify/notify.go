// Package notify provides the fire-and-forget event sink the matching
// engine emits to after successful batches. Delivery is decoupled from
// matching through a buffered channel, so a slow or absent consumer can
// never affect match results.
package notify

import (
	"log/slog"
	"time"
)

// Event describes one completed matching batch with at least one
// auto-applied result.
type Event struct {
	At          time.Time
	PartnerID   string
	CategoryID  string
	AutoMatched int
	AIMatched   int
	Suggested   int
}

// Emitter is a non-blocking event sink.
type Emitter struct {
	ch chan Event
}

// NewEmitter creates an emitter with the given buffer size.
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Emit publishes an event without blocking. Events are dropped with a log
// line when the buffer is full.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case e.ch <- ev:
	default:
		slog.Warn("Notification buffer full, dropping event",
			"partner", ev.PartnerID,
			"auto_matched", ev.AutoMatched)
	}
}

// Events exposes the receive side for the delivery consumer.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close closes the channel. Emit must not be called afterwards.
func (e *Emitter) Close() {
	close(e.ch)
}
