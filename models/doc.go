// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateSessionRequest: title, required_names, name_focus, max_owners
  - JoinSessionRequest: token, as_owner
  - InviteParticipantsRequest: emails
  - SaveListRequest: names, self_ranks, finalize
  - SubmitScoreRequest: owner_uid, name, value
  - CompleteScoresRequest: owner_uid, ranks
  - TieBreakVoteRequest: ranks

# Response Types

Types for JSON responses:

  - CreateSessionResponse: session_id, owner_token, voter_token
  - JoinSessionResponse: session_id, role
  - InviteParticipantsResponse: per-email results
  - InviteInfoResponse: title, required_names, name_focus, template_ready
  - SaveListResponse: status, names, self_ranks, submitted_at
  - SubmitScoreResponse: owner_uid, scores
  - CompleteScoresResponse: owner_uid, completed_at
  - StartTieBreakResponse / TieBreakVoteResponse / CloseTieBreakResponse
  - SessionSnapshot: full per-member read model
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - Session: session metadata, join tokens, and invite lock
  - Member: a participant's role within a session
  - Invite: pending email invitation with its join token
  - List: one owner's ordered names with self-ranks
  - ScoreRow: a single rank a rater gave a name
  - Completion: marks a rater's score set for one list as final
  - TieBreak: tie-break round over the tied names
  - AggregateRow / Aggregate: combined ranking across all score sets

# Constants

Session status:

	SessionActive   = "active"
	SessionArchived = "archived"

Derived lifecycle phases:

	PhaseOpen          = "open"
	PhaseInvitesLocked = "invites_locked"
	PhaseTieBreak      = "tiebreak"
	PhaseCompleted     = "completed"

Member roles:

	RoleOwner = "owner"
	RoleVoter = "voter"

List status:

	ListDraft     = "draft"
	ListSubmitted = "submitted"
*/
package models
