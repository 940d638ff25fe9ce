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

type ListHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	events *notify.Dispatcher
}

func NewListHandler(db *sql.DB, cfg cliparse.Config, events *notify.Dispatcher) *ListHandler {
	return &ListHandler{db: db, cfg: cfg, events: events}
}

// SaveList handles PUT /api/sessions/{sid}/lists
// Saves the caller's draft, or with finalize set submits it. A
// submitted list is immutable; re-submission is rejected, not a no-op.
func (h *ListHandler) SaveList(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	if member.Role != models.RoleOwner {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only owners keep name lists")
		return
	}

	var req models.SaveListRequest
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
	if tb != nil {
		if tb.Active {
			engineError(w, engine.ErrTieBreakActive)
		} else {
			engineError(w, engine.ErrSessionCompleted)
		}
		return
	}

	existing, err := loadList(h.db, sess.ID, member.UID)
	if err != nil {
		slog.Error("failed to query list", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if existing != nil && existing.Status == models.ListSubmitted {
		engineError(w, engine.ErrAlreadySubmitted)
		return
	}

	names, selfRanks, err := engine.ValidateList(req.Names, req.SelfRanks, sess.RequiredNames, req.Finalize)
	if err != nil {
		engineError(w, err)
		return
	}

	status := models.ListDraft
	now := time.Now()
	var submittedAt *time.Time
	if req.Finalize {
		status = models.ListSubmitted
		submittedAt = &now
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO list (session_id, owner_uid, status, updated_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, owner_uid) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at, submitted_at = excluded.submitted_at
	`, sess.ID, member.UID, status, now, submittedAt)
	if err != nil {
		slog.Error("failed to upsert list", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save list")
		return
	}

	// Replace the entries wholesale; position keeps the display order
	_, err = tx.Exec(`
		DELETE FROM list_name WHERE session_id = $1 AND owner_uid = $2
	`, sess.ID, member.UID)
	if err != nil {
		slog.Error("failed to clear list names", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save list")
		return
	}

	for i, name := range names {
		_, err = tx.Exec(`
			INSERT INTO list_name (session_id, owner_uid, position, name, self_rank)
			VALUES ($1, $2, $3, $4, $5)
		`, sess.ID, member.UID, i+1, name, selfRanks[name])
		if err != nil {
			slog.Error("failed to insert list name", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save list")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save list")
		return
	}

	if req.Finalize {
		var submitted int
		if err := h.db.QueryRow(`
			SELECT COUNT(*) FROM list WHERE session_id = $1 AND status = $2
		`, sess.ID, models.ListSubmitted).Scan(&submitted); err != nil {
			slog.Warn("failed to count submitted lists", "error", err)
			submitted = 1
		}
		h.events.Emit(notify.ListSubmitted{
			SessionID: sess.ID,
			Title:     sess.Title,
			OwnerUID:  member.UID,
			Number:    submitted,
		})
	}

	slog.Info("list saved", "session_id", sess.ID, "owner", member.UID, "status", status, "names", len(names))

	middleware.JSONResponse(w, http.StatusOK, models.SaveListResponse{
		Status:      status,
		Names:       names,
		SelfRanks:   selfRanks,
		SubmittedAt: submittedAt,
	})
}
