// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Name Duel API.

# Handler Types

Each handler is a struct with database, config, and (for mutations)
notification dependencies:

  - SessionHandler: Session lifecycle (create, join, invites, lock, archive)
  - ListHandler: Owner name lists (draft save, submit)
  - ScoreHandler: Peer score drafts and completion claims
  - TieBreakHandler: Tie-break rounds (start, vote, close)
  - SnapshotHandler: The session read model and DB health

Handlers are created via constructor functions:

	sessionHandler := handlers.NewSessionHandler(db, cfg, events)
	snapshotHandler := handlers.NewSnapshotHandler(db, cfg)

# Session Lifecycle

A session's phase is derived from stored state, never stored itself:
open → invites_locked → (tiebreak)? → completed

	POST   /api/sessions                    → CreateSession (returns join tokens)
	POST   /api/sessions/{sid}/join         → JoinSession (token join)
	POST   /api/sessions/{sid}/participants → InviteParticipants (owner)
	GET    /api/invite-info                 → InviteInfo (public)
	POST   /api/sessions/{sid}/lock-invites → LockInvites (owner, irreversible)
	DELETE /api/sessions/{sid}              → ArchiveSession (owner)

Authenticated operations require the X-User-Id header. Owner-only
transitions accept any owner-role member, the creator included. The
membership and role check runs once per command, before any validator.

# Scoring Flow

Owners keep one list each; every member ranks every other owner's
submitted list with a full permutation of 1..N:

	PUT  /api/sessions/{sid}/lists           → SaveList (draft or finalize)
	POST /api/sessions/{sid}/scores          → SubmitScore (one draft entry)
	POST /api/sessions/{sid}/scores/complete → CompleteScores (locks the pair)

Scores are collected while the session is open but stay hidden until
invites are locked. The aggregate ranking (ascending total, lower is
better) is recomputed from raw rows on every read and never persisted.

# Tie-Breaks

When the aggregate ends with several names sharing the minimum total,
an owner starts a second round over just those names:

	POST /api/sessions/{sid}/tiebreak       → StartTieBreak
	POST /api/sessions/{sid}/tiebreak/votes → SubmitVote (once per member)
	POST /api/sessions/{sid}/tiebreak/close → CloseTieBreak (needs ≥1 vote)

Closing fixes the session's final winners. A second-level tie is a
terminal co-winner outcome; there is no third round.

# Decision Logic

Validation, aggregation, and phase derivation live in the engine
package. Handlers run the engine against loaded snapshots, map its
sentinel errors onto HTTP statuses via engineError, and never mutate
state on a failed validation.
*/
package handlers
