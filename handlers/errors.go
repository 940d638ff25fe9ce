// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/name-duel/engine"
	"github.com/danielhkuo/name-duel/middleware"
	"github.com/danielhkuo/name-duel/models"
)

// requireSession resolves {sid} and loads the session. Archived
// sessions are indistinguishable from missing ones. On failure the
// error response is already written and ok is false.
func requireSession(db *sql.DB, w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	sid := r.PathValue("sid")
	if sid == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session_id is required")
		return models.Session{}, false
	}

	sess, err := loadSession(db, sid)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return models.Session{}, false
	}
	if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Session{}, false
	}
	if sess.Status != models.SessionActive {
		middleware.ErrorResponse(w, http.StatusNotFound, "Session not found")
		return models.Session{}, false
	}

	return sess, true
}

// requireMember resolves the session plus the caller's membership. The
// role check runs once here, before any validator sees the request.
func requireMember(db *sql.DB, w http.ResponseWriter, r *http.Request) (models.Session, models.Member, bool) {
	uid := middleware.CurrentUID(r)
	if uid == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-Id header required")
		return models.Session{}, models.Member{}, false
	}

	sess, ok := requireSession(db, w, r)
	if !ok {
		return models.Session{}, models.Member{}, false
	}

	member, err := loadMember(db, sess.ID, uid)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not a member of this session")
		return models.Session{}, models.Member{}, false
	}
	if err != nil {
		slog.Error("failed to query member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Session{}, models.Member{}, false
	}

	return sess, member, true
}

// engineError maps an engine sentinel onto its HTTP status: validation
// failures 400, state conflicts 409, unmet preconditions 412.
func engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrDuplicateName),
		errors.Is(err, engine.ErrIncompleteList),
		errors.Is(err, engine.ErrRankOutOfRange),
		errors.Is(err, engine.ErrDuplicateRank),
		errors.Is(err, engine.ErrIncompleteScoring),
		errors.Is(err, engine.ErrUnknownName):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrAlreadySubmitted),
		errors.Is(err, engine.ErrAlreadyVoted),
		errors.Is(err, engine.ErrTieBreakActive),
		errors.Is(err, engine.ErrInvitesLocked),
		errors.Is(err, engine.ErrListNotSubmitted),
		errors.Is(err, engine.ErrSessionCompleted):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrNoTie),
		errors.Is(err, engine.ErrNoVotes),
		errors.Is(err, engine.ErrInvitesOpen):
		middleware.ErrorResponse(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, engine.ErrForbidden):
		middleware.ErrorResponse(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("unexpected engine error", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

// isUniqueViolation matches unique-constraint failures from both
// drivers: modernc/sqlite says "UNIQUE constraint failed", lib/pq
// "duplicate key value violates unique constraint".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
