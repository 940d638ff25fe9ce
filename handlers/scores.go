// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/name-duel/cliparse"
	"github.com/danielhkuo/name-duel/engine"
	"github.com/danielhkuo/name-duel/middleware"
	"github.com/danielhkuo/name-duel/models"
	"github.com/danielhkuo/name-duel/notify"
)

type ScoreHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	events *notify.Dispatcher
}

func NewScoreHandler(db *sql.DB, cfg cliparse.Config, events *notify.Dispatcher) *ScoreHandler {
	return &ScoreHandler{db: db, cfg: cfg, events: events}
}

// SubmitScore handles POST /api/sessions/{sid}/scores
// Accumulates one draft entry into the caller's score set for one
// owner's list. Value 0 clears the entry; assigning a taken value
// silently moves it off its old name (last-write-wins).
func (h *ScoreHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	var req models.SubmitScoreRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.OwnerUID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "owner_uid is required")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.OwnerUID == member.UID {
		middleware.ErrorResponse(w, http.StatusForbidden, "You cannot score your own list")
		return
	}

	target, done, ok := h.scoringGates(w, sess, member, req.OwnerUID)
	if !ok {
		return
	}
	if done {
		engineError(w, engine.ErrAlreadySubmitted)
		return
	}

	draft, err := loadPairScores(h.db, sess.ID, req.OwnerUID, member.UID)
	if err != nil {
		slog.Error("failed to query draft scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	next, err := engine.ApplyDraftScore(draft, target.Names, req.Name, req.Value)
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

	_, err = tx.Exec(`
		DELETE FROM score WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3
	`, sess.ID, req.OwnerUID, member.UID)
	if err != nil {
		slog.Error("failed to clear draft scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save score")
		return
	}

	now := time.Now()
	for _, name := range target.Names {
		value, ok := next[name]
		if !ok {
			continue
		}
		_, err = tx.Exec(`
			INSERT INTO score (session_id, owner_uid, rater_uid, name, value, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sess.ID, req.OwnerUID, member.UID, name, value, now)
		if err != nil {
			slog.Error("failed to insert score", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save score")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save score")
		return
	}

	slog.Info("score drafted", "session_id", sess.ID, "owner", req.OwnerUID, "rater", member.UID, "name", req.Name, "value", req.Value)

	middleware.JSONResponse(w, http.StatusOK, models.SubmitScoreResponse{
		OwnerUID: req.OwnerUID,
		Scores:   next,
	})
}

// CompleteScores handles POST /api/sessions/{sid}/scores/complete
// Declares the caller's score set for one owner complete. The ranks
// must form a full permutation; a completed pair is immutable.
func (h *ScoreHandler) CompleteScores(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	var req models.CompleteScoresRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.OwnerUID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "owner_uid is required")
		return
	}
	if req.OwnerUID == member.UID {
		middleware.ErrorResponse(w, http.StatusForbidden, "You cannot score your own list")
		return
	}

	target, done, ok := h.scoringGates(w, sess, member, req.OwnerUID)
	if !ok {
		return
	}
	if done {
		engineError(w, engine.ErrAlreadySubmitted)
		return
	}

	ranks, err := engine.ValidateScores(req.Ranks, target.Names)
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

	_, err = tx.Exec(`
		DELETE FROM score WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3
	`, sess.ID, req.OwnerUID, member.UID)
	if err != nil {
		slog.Error("failed to clear draft scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to complete scoring")
		return
	}

	now := time.Now()
	for _, name := range target.Names {
		_, err = tx.Exec(`
			INSERT INTO score (session_id, owner_uid, rater_uid, name, value, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sess.ID, req.OwnerUID, member.UID, name, ranks[name], now)
		if err != nil {
			slog.Error("failed to insert score", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to complete scoring")
			return
		}
	}

	// The primary key backstops the check above under concurrency:
	// whichever completion lands second rolls back here
	_, err = tx.Exec(`
		INSERT INTO score_submission (session_id, owner_uid, rater_uid, submitted_at)
		VALUES ($1, $2, $3, $4)
	`, sess.ID, req.OwnerUID, member.UID, now)
	if err != nil {
		if isUniqueViolation(err) {
			engineError(w, engine.ErrAlreadySubmitted)
			return
		}
		slog.Error("failed to insert score submission", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to complete scoring")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to complete scoring")
		return
	}

	var doneCount, memberCount int
	if err := h.db.QueryRow(`
		SELECT COUNT(*) FROM score_submission WHERE session_id = $1 AND owner_uid = $2
	`, sess.ID, req.OwnerUID).Scan(&doneCount); err != nil {
		slog.Warn("failed to count score submissions", "error", err)
	}
	if err := h.db.QueryRow(`
		SELECT COUNT(*) FROM member WHERE session_id = $1
	`, sess.ID).Scan(&memberCount); err != nil {
		slog.Warn("failed to count members", "error", err)
	}
	h.events.Emit(notify.ScoringCompleted{
		SessionID: sess.ID,
		Title:     sess.Title,
		OwnerUID:  req.OwnerUID,
		RaterUID:  member.UID,
		Done:      doneCount,
		Expected:  memberCount - 1, // everyone but the list's owner
	})

	slog.Info("scoring completed", "session_id", sess.ID, "owner", req.OwnerUID, "rater", member.UID)

	middleware.JSONResponse(w, http.StatusCreated, models.CompleteScoresResponse{
		OwnerUID:    req.OwnerUID,
		CompletedAt: now,
	})
}

// scoringGates runs the checks both score operations share: no
// tie-break underway, target list submitted, completion state of the
// (owner, rater) pair. On a gate failure the response is written and
// ok is false.
func (h *ScoreHandler) scoringGates(w http.ResponseWriter, sess models.Session, member models.Member, owner string) (target *models.List, done, ok bool) {
	tb, err := loadTieBreak(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return nil, false, false
	}
	if tb != nil {
		if tb.Active {
			engineError(w, engine.ErrTieBreakActive)
		} else {
			engineError(w, engine.ErrSessionCompleted)
		}
		return nil, false, false
	}

	target, err = loadList(h.db, sess.ID, owner)
	if err != nil {
		slog.Error("failed to query target list", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return nil, false, false
	}
	if target == nil || target.Status != models.ListSubmitted {
		engineError(w, engine.ErrListNotSubmitted)
		return nil, false, false
	}

	err = h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM score_submission WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3)
	`, sess.ID, owner, member.UID).Scan(&done)
	if err != nil {
		slog.Error("failed to query score submission", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return nil, false, false
	}

	return target, done, true
}
