// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Name Duel API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, events)

# Endpoints

Health:

	GET /api/health
	GET /api/dbcheck

Session lifecycle (identity via X-User-Id header):

	POST   /api/sessions                     - Create session
	GET    /api/sessions/{sid}               - Session snapshot (members only)
	DELETE /api/sessions/{sid}               - Archive session (owners only)
	POST   /api/sessions/{sid}/join          - Join with a token
	POST   /api/sessions/{sid}/participants  - Invite by email (owners only)
	POST   /api/sessions/{sid}/lock-invites  - Freeze the participant set (owners only)
	GET    /api/invite-info                  - Public invite preview (?sid=&token=)

Lists and scoring:

	PUT  /api/sessions/{sid}/lists           - Save or submit the caller's list
	POST /api/sessions/{sid}/scores          - Record one draft score
	POST /api/sessions/{sid}/scores/complete - Submit a finished score set

Tie-break rounds:

	POST /api/sessions/{sid}/tiebreak        - Start a round (owners only)
	POST /api/sessions/{sid}/tiebreak/votes  - Cast a ranking vote
	POST /api/sessions/{sid}/tiebreak/close  - Close and fix the winners (owners only)

# Handler Initialization

The router creates handler instances with dependency injection:

	sessionHandler := handlers.NewSessionHandler(db, cfg, events)
	listHandler := handlers.NewListHandler(db, cfg, events)
	scoreHandler := handlers.NewScoreHandler(db, cfg, events)
	tieBreakHandler := handlers.NewTieBreakHandler(db, cfg, events)
	snapshotHandler := handlers.NewSnapshotHandler(db, cfg)

Mutating handlers also receive the notification dispatcher; the snapshot
handler is read-only and does not.
*/
package router
