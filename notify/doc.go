// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers participant notifications off the request path.

# Dispatcher

Handlers emit events after their transaction commits; a single worker
goroutine hands them to a Sink:

	events := notify.NewDispatcher(notify.LogSink{}, 64)
	defer events.Close()

	events.Emit(notify.InvitesLocked{SessionID: sid, Title: title})

Emit never blocks and never fails the caller: a full buffer drops the
event with a warning, and sink errors are logged and swallowed. Close
drains whatever is queued before returning.

# Events

One type per occurrence worth announcing:

  - InviteCreated: an email invite with its join link
  - ListSubmitted: an owner finalized a list
  - ScoringCompleted: a rater finished scoring a list
  - InvitesLocked: scores became visible
  - TieBreakStarted / TieBreakClosed: tie-break lifecycle

Each event renders its own human-readable Message; LogSink writes
those to the structured log in place of a real mail transport.
*/
package notify
