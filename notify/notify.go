// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// Event is something a participant would want to hear about.
type Event interface {
	Kind() string
	Message() string
}

// Sink delivers events somewhere: a mail transport, a push gateway, or
// just the log.
type Sink interface {
	Deliver(Event) error
}

// LogSink writes notifications to the structured log. It stands in
// until a real mail transport exists.
type LogSink struct{}

func (LogSink) Deliver(e Event) error {
	slog.Info("notification", "kind", e.Kind(), "message", e.Message())
	return nil
}

// Dispatcher fans events out to a sink on its own goroutine. Emitting
// never blocks a request: when the buffer is full the event is dropped
// with a warning, and delivery failures are logged and swallowed. A
// lost notification must never fail the mutation that produced it.
type Dispatcher struct {
	sink   Sink
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues an event for delivery. Safe to call from any goroutine;
// a no-op after Close.
func (d *Dispatcher) Emit(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- e:
	default:
		slog.Warn("notification dropped, buffer full", "kind", e.Kind())
	}
}

// Close drains the queue and stops the worker. Idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	for e := range d.events {
		if err := d.sink.Deliver(e); err != nil {
			slog.Warn("notification delivery failed", "kind", e.Kind(), "error", err)
		}
	}
	close(d.done)
}

// Event types

type InviteCreated struct {
	SessionID string
	Title     string
	Email     string
	JoinURL   string
}

func (InviteCreated) Kind() string { return "invite_created" }
func (e InviteCreated) Message() string {
	return fmt.Sprintf("You're invited to help pick names in %q. Join here: %s", e.Title, e.JoinURL)
}

type ListSubmitted struct {
	SessionID string
	Title     string
	OwnerUID  string
	Number    int // how many lists are in, this one included
}

func (ListSubmitted) Kind() string { return "list_submitted" }
func (e ListSubmitted) Message() string {
	return fmt.Sprintf("The %s list in %q is ready to score.", humanize.Ordinal(e.Number), e.Title)
}

type ScoringCompleted struct {
	SessionID string
	Title     string
	OwnerUID  string
	RaterUID  string
	Done      int // completed score sets for this list, this one included
	Expected  int
}

func (ScoringCompleted) Kind() string { return "scoring_completed" }
func (e ScoringCompleted) Message() string {
	return fmt.Sprintf("The %s of %d score sets for a list in %q is in.",
		humanize.Ordinal(e.Done), e.Expected, e.Title)
}

type InvitesLocked struct {
	SessionID string
	Title     string
}

func (InvitesLocked) Kind() string { return "invites_locked" }
func (e InvitesLocked) Message() string {
	return fmt.Sprintf("Invites for %q are locked. Scores are now visible to everyone.", e.Title)
}

type TieBreakStarted struct {
	SessionID string
	Title     string
	Names     []string
}

func (TieBreakStarted) Kind() string { return "tiebreak_started" }
func (e TieBreakStarted) Message() string {
	return fmt.Sprintf("Tie-break started in %q between %s.", e.Title, joinNames(e.Names))
}

type TieBreakClosed struct {
	SessionID string
	Title     string
	Winners   []string
}

func (TieBreakClosed) Kind() string { return "tiebreak_closed" }
func (e TieBreakClosed) Message() string {
	if len(e.Winners) == 1 {
		return fmt.Sprintf("%q has a winner: %s.", e.Title, e.Winners[0])
	}
	return fmt.Sprintf("%q ended with co-winners: %s.", e.Title, joinNames(e.Winners))
}

// joinNames renders a name list the way you'd say it out loud.
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
