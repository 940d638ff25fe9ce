// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/name-duel/cliparse"
	"github.com/danielhkuo/name-duel/engine"
	"github.com/danielhkuo/name-duel/middleware"
	"github.com/danielhkuo/name-duel/models"
	"github.com/danielhkuo/name-duel/notify"
)

type TieBreakHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	events *notify.Dispatcher
}

func NewTieBreakHandler(db *sql.DB, cfg cliparse.Config, events *notify.Dispatcher) *TieBreakHandler {
	return &TieBreakHandler{db: db, cfg: cfg, events: events}
}

// StartTieBreak handles POST /api/sessions/{sid}/tiebreak
// Owner-only; requires locked invites and more than one name sharing
// the minimum total. At most one round per session, ever.
func (h *TieBreakHandler) StartTieBreak(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	if member.Role != models.RoleOwner {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only owners can start a tie-break")
		return
	}
	if !sess.InvitesLocked {
		engineError(w, engine.ErrInvitesOpen)
		return
	}

	tb, err := loadTieBreak(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if tb != nil {
		if tb.Active {
			engineError(w, engine.ErrTieBreakActive)
		} else {
			engineError(w, engine.ErrSessionCompleted)
		}
		return
	}

	lists, err := loadLists(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query lists", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	completed, err := loadCompletedScores(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	agg := engine.Aggregate(lists, completed)
	names, err := engine.StartTieBreak(agg)
	if err != nil {
		engineError(w, err)
		return
	}

	encoded, err := json.Marshal(names)
	if err != nil {
		slog.Error("failed to encode tiebreak names", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start tie-break")
		return
	}

	startedAt := time.Now()
	// The session_id primary key makes a concurrent double-start lose
	_, err = h.db.Exec(`
		INSERT INTO tiebreak (session_id, names, active, started_at)
		VALUES ($1, $2, $3, $4)
	`, sess.ID, string(encoded), true, startedAt)
	if err != nil {
		if isUniqueViolation(err) {
			engineError(w, engine.ErrTieBreakActive)
			return
		}
		slog.Error("failed to insert tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start tie-break")
		return
	}

	h.events.Emit(notify.TieBreakStarted{SessionID: sess.ID, Title: sess.Title, Names: names})

	slog.Info("tiebreak started", "session_id", sess.ID, "names", len(names))

	middleware.JSONResponse(w, http.StatusCreated, models.StartTieBreakResponse{
		Names:     names,
		StartedAt: startedAt,
	})
}

// SubmitVote handles POST /api/sessions/{sid}/tiebreak/votes
// Any member votes once, with a full rank permutation over the tied
// names. Votes stay hidden until the round closes.
func (h *TieBreakHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	var req models.TieBreakVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tb, err := loadTieBreak(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if tb == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "No active tie-break")
		return
	}
	if !tb.Active {
		engineError(w, engine.ErrSessionCompleted)
		return
	}

	var voted bool
	err = h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM tiebreak_vote WHERE session_id = $1 AND voter_uid = $2)
	`, sess.ID, member.UID).Scan(&voted)
	if err != nil {
		slog.Error("failed to query tiebreak votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if voted {
		engineError(w, engine.ErrAlreadyVoted)
		return
	}

	ranks, err := engine.ValidateScores(req.Ranks, tb.Names)
	if err != nil {
		engineError(w, err)
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	for _, name := range tb.Names {
		_, err = tx.Exec(`
			INSERT INTO tiebreak_vote (session_id, voter_uid, name, value)
			VALUES ($1, $2, $3, $4)
		`, sess.ID, member.UID, name, ranks[name])
		if err != nil {
			// Concurrent double-vote trips the primary key
			if isUniqueViolation(err) {
				engineError(w, engine.ErrAlreadyVoted)
				return
			}
			slog.Error("failed to insert tiebreak vote", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit vote")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit vote")
		return
	}

	slog.Info("tiebreak vote recorded", "session_id", sess.ID, "voter", member.UID)

	middleware.JSONResponse(w, http.StatusCreated, models.TieBreakVoteResponse{
		Submitted: true,
	})
}

// CloseTieBreak handles POST /api/sessions/{sid}/tiebreak/close
// Owner-only; needs at least one vote, not all of them — closing is an
// owner's call. The tally's leaders become the final winners, and a
// second-level tie means co-winners, not another round.
func (h *TieBreakHandler) CloseTieBreak(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	if member.Role != models.RoleOwner {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only owners can close a tie-break")
		return
	}

	tb, err := loadTieBreak(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if tb == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "No active tie-break")
		return
	}
	if !tb.Active {
		engineError(w, engine.ErrSessionCompleted)
		return
	}

	votes, err := loadTieBreakVotes(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query tiebreak votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	result, err := engine.TallyTieBreak(tb.Names, votes)
	if err != nil {
		engineError(w, err)
		return
	}

	winners := result.TopNames
	encoded, err := json.Marshal(winners)
	if err != nil {
		slog.Error("failed to encode tiebreak winners", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close tie-break")
		return
	}

	res, err := h.db.Exec(`
		UPDATE tiebreak SET active = $1, closed_at = $2, winners = $3
		WHERE session_id = $4 AND active = $5
	`, false, time.Now(), string(encoded), sess.ID, true)
	if err != nil {
		slog.Error("failed to close tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close tie-break")
		return
	}
	// A concurrent close got there first
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		engineError(w, engine.ErrSessionCompleted)
		return
	}

	h.events.Emit(notify.TieBreakClosed{SessionID: sess.ID, Title: sess.Title, Winners: winners})

	slog.Info("tiebreak closed", "session_id", sess.ID, "winners", winners)

	middleware.JSONResponse(w, http.StatusOK, models.CloseTieBreakResponse{
		Winners: winners,
		Ranking: result.Ranking,
	})
}
