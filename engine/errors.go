// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "errors"

// Validation failures. The caller sent something malformed and can fix
// the input and retry.
var (
	ErrDuplicateName     = errors.New("duplicate name")
	ErrIncompleteList    = errors.New("list does not have the required number of names")
	ErrRankOutOfRange    = errors.New("rank out of range")
	ErrDuplicateRank     = errors.New("duplicate rank")
	ErrIncompleteScoring = errors.New("not every name has a rank")
	ErrUnknownName       = errors.New("unknown name")
)

// State conflicts. The caller's view of the session is stale; a refresh
// shows why the command no longer applies.
var (
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrAlreadyVoted     = errors.New("already voted in this tie-break")
	ErrTieBreakActive   = errors.New("tie-break already active")
	ErrInvitesLocked    = errors.New("invites are locked")
	ErrListNotSubmitted = errors.New("list is not submitted")
	ErrSessionCompleted = errors.New("session already completed")
)

// Failed preconditions. The session is not in a state where the command
// could ever apply yet.
var (
	ErrNoTie       = errors.New("no tie to break")
	ErrNoVotes     = errors.New("no tie-break votes recorded")
	ErrInvitesOpen = errors.New("invites are still open")
)

// ErrForbidden is returned when the caller's role does not permit the
// command, regardless of session state.
var ErrForbidden = errors.New("not allowed")
