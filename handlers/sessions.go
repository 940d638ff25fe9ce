// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/name-duel/auth"
	"github.com/danielhkuo/name-duel/cliparse"
	"github.com/danielhkuo/name-duel/engine"
	"github.com/danielhkuo/name-duel/middleware"
	"github.com/danielhkuo/name-duel/models"
	"github.com/danielhkuo/name-duel/notify"
)

type SessionHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	events *notify.Dispatcher
}

func NewSessionHandler(db *sql.DB, cfg cliparse.Config, events *notify.Dispatcher) *SessionHandler {
	return &SessionHandler{db: db, cfg: cfg, events: events}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	uid := middleware.CurrentUID(r)
	if uid == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-Id header required")
		return
	}

	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	requiredNames := req.RequiredNames
	if requiredNames == 0 {
		requiredNames = 10 // default
	}
	if requiredNames < 2 || requiredNames > 50 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "required_names must be between 2 and 50")
		return
	}

	// Two owner slots unless three are asked for explicitly
	maxOwners := 2
	if req.MaxOwners == 3 {
		maxOwners = 3
	}

	sessionID := auth.NewUID()
	ownerToken, err := auth.NewToken()
	if err != nil {
		slog.Error("failed to generate owner token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	voterToken, err := auth.NewToken()
	if err != nil {
		slog.Error("failed to generate voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO session (id, title, created_by, required_names, name_focus, max_owners, status, invites_locked, owner_token, voter_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sessionID, req.Title, uid, requiredNames, req.NameFocus, maxOwners,
		models.SessionActive, false, ownerToken, voterToken, now)
	if err != nil {
		slog.Error("failed to insert session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	// Creator joins as an owner
	_, err = tx.Exec(`
		INSERT INTO member (session_id, uid, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, sessionID, uid, models.RoleOwner, now)
	if err != nil {
		slog.Error("failed to insert creator member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	slog.Info("session created", "session_id", sessionID, "creator", uid, "required_names", requiredNames)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID:  sessionID,
		OwnerToken: ownerToken,
		VoterToken: voterToken,
	})
}

// JoinSession handles POST /api/sessions/{sid}/join
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	uid := middleware.CurrentUID(r)
	if uid == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-Id header required")
		return
	}

	var req models.JoinSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	sess, ok := requireSession(h.db, w, r)
	if !ok {
		return
	}

	if sess.InvitesLocked {
		engineError(w, engine.ErrInvitesLocked)
		return
	}

	var role string
	var inviteEmail string
	switch req.Token {
	case sess.OwnerToken:
		role = models.RoleVoter
		if req.AsOwner {
			role = models.RoleOwner
		}
	case sess.VoterToken:
		if req.AsOwner {
			middleware.ErrorResponse(w, http.StatusForbidden, "The voter token cannot grant the owner role")
			return
		}
		role = models.RoleVoter
	default:
		// Per-invite token from an email invite
		err := h.db.QueryRow(`
			SELECT email FROM session_invite WHERE session_id = $1 AND token = $2
		`, sess.ID, req.Token).Scan(&inviteEmail)
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusForbidden, "Invalid join token")
			return
		}
		if err != nil {
			slog.Error("failed to query invite", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if req.AsOwner {
			middleware.ErrorResponse(w, http.StatusForbidden, "An email invite cannot grant the owner role")
			return
		}
		role = models.RoleVoter
	}

	if role == models.RoleOwner {
		// Count excludes the caller so re-joining as owner stays legal
		var owners int
		err := h.db.QueryRow(`
			SELECT COUNT(*) FROM member WHERE session_id = $1 AND role = $2 AND uid <> $3
		`, sess.ID, models.RoleOwner, uid).Scan(&owners)
		if err != nil {
			slog.Error("failed to count owners", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if owners >= sess.MaxOwners {
			middleware.ErrorResponse(w, http.StatusConflict, "All owner slots are filled")
			return
		}
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO member (session_id, uid, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, uid) DO UPDATE SET role = excluded.role
	`, sess.ID, uid, role, time.Now())
	if err != nil {
		slog.Error("failed to upsert member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join session")
		return
	}

	// A consumed email invite stops being pending
	if inviteEmail != "" {
		_, err = tx.Exec(`
			DELETE FROM session_invite WHERE session_id = $1 AND email = $2
		`, sess.ID, inviteEmail)
		if err != nil {
			slog.Error("failed to delete invite", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join session")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join session")
		return
	}

	slog.Info("member joined", "session_id", sess.ID, "uid", uid, "role", role)

	middleware.JSONResponse(w, http.StatusOK, models.JoinSessionResponse{
		SessionID: sess.ID,
		Role:      role,
	})
}

// InviteParticipants handles POST /api/sessions/{sid}/participants
// Owner-only; blocked until the creator has saved a list the invitees
// can use as a template.
func (h *SessionHandler) InviteParticipants(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	if member.Role != models.RoleOwner {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only owners can invite participants")
		return
	}
	if sess.InvitesLocked {
		engineError(w, engine.ErrInvitesLocked)
		return
	}

	var req models.InviteParticipantsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Emails) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "emails cannot be empty")
		return
	}

	var templateReady bool
	err := h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM list WHERE session_id = $1 AND owner_uid = $2)
	`, sess.ID, sess.CreatedBy).Scan(&templateReady)
	if err != nil {
		slog.Error("failed to query template list", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !templateReady {
		middleware.ErrorResponse(w, http.StatusConflict, "Save a name list before inviting participants")
		return
	}

	results := make([]models.InviteResult, 0, len(req.Emails))
	var created []notify.InviteCreated

	for _, raw := range req.Emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || !strings.Contains(email, "@") {
			results = append(results, models.InviteResult{Email: raw, Status: "invalid"})
			continue
		}

		var exists bool
		err := h.db.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM session_invite WHERE session_id = $1 AND email = $2)
		`, sess.ID, email).Scan(&exists)
		if err != nil {
			slog.Error("failed to query invite", "error", err, "email", email)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		token, err := auth.NewToken()
		if err != nil {
			slog.Error("failed to generate invite token", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create invites")
			return
		}

		// Re-inviting replaces the token, invalidating the old link
		_, err = h.db.Exec(`
			INSERT INTO session_invite (session_id, email, token, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id, email) DO UPDATE SET token = excluded.token, created_at = excluded.created_at
		`, sess.ID, email, token, time.Now())
		if err != nil {
			slog.Error("failed to upsert invite", "error", err, "email", email)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create invites")
			return
		}

		status := "invited"
		if exists {
			status = "resent"
		}
		results = append(results, models.InviteResult{Email: email, Status: status})
		created = append(created, notify.InviteCreated{
			SessionID: sess.ID,
			Title:     sess.Title,
			Email:     email,
			JoinURL:   joinURL(h.cfg.BaseURL, sess.ID, token),
		})
	}

	for _, e := range created {
		h.events.Emit(e)
	}

	slog.Info("participants invited", "session_id", sess.ID, "invited", len(created), "total", len(req.Emails))

	middleware.JSONResponse(w, http.StatusOK, models.InviteParticipantsResponse{
		Results: results,
	})
}

// joinURL builds the link an invite notification carries. Tokens are
// URL-safe base64, so plain concatenation is fine.
func joinURL(baseURL, sid, token string) string {
	return strings.TrimRight(baseURL, "/") + "/join?sid=" + sid + "&token=" + token
}

// InviteInfo handles GET /api/invite-info?sid=&token=
// Public metadata shown on the join page before any membership exists.
func (h *SessionHandler) InviteInfo(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	token := r.URL.Query().Get("token")
	if sid == "" || token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "sid and token are required")
		return
	}

	sess, err := loadSession(h.db, sid)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Invite not found")
		return
	}
	if err != nil {
		slog.Error("failed to query session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if sess.Status != models.SessionActive {
		middleware.ErrorResponse(w, http.StatusNotFound, "Invite not found")
		return
	}

	valid := token == sess.OwnerToken || token == sess.VoterToken
	if !valid {
		err := h.db.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM session_invite WHERE session_id = $1 AND token = $2)
		`, sid, token).Scan(&valid)
		if err != nil {
			slog.Error("failed to query invite", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}
	if !valid {
		middleware.ErrorResponse(w, http.StatusNotFound, "Invite not found")
		return
	}

	var templateReady bool
	err = h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM list WHERE session_id = $1 AND owner_uid = $2)
	`, sid, sess.CreatedBy).Scan(&templateReady)
	if err != nil {
		slog.Error("failed to query template list", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.InviteInfoResponse{
		Title:         sess.Title,
		RequiredNames: sess.RequiredNames,
		NameFocus:     sess.NameFocus,
		TemplateReady: templateReady,
	})
}

// LockInvites handles POST /api/sessions/{sid}/lock-invites
// Owner-only and irreversible; scores become visible from here on.
func (h *SessionHandler) LockInvites(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	if member.Role != models.RoleOwner {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only owners can lock invites")
		return
	}
	if sess.InvitesLocked {
		engineError(w, engine.ErrInvitesLocked)
		return
	}

	_, err := h.db.Exec(`
		UPDATE session SET invites_locked = $1 WHERE id = $2
	`, true, sess.ID)
	if err != nil {
		slog.Error("failed to lock invites", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to lock invites")
		return
	}

	h.events.Emit(notify.InvitesLocked{SessionID: sess.ID, Title: sess.Title})

	slog.Info("invites locked", "session_id", sess.ID, "by", member.UID)

	middleware.JSONResponse(w, http.StatusOK, models.LockInvitesResponse{
		InvitesLocked: true,
	})
}

// ArchiveSession handles DELETE /api/sessions/{sid}
// Owner-only; an archived session 404s every further request.
func (h *SessionHandler) ArchiveSession(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	if member.Role != models.RoleOwner {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only owners can archive a session")
		return
	}

	_, err := h.db.Exec(`
		UPDATE session SET status = $1 WHERE id = $2
	`, models.SessionArchived, sess.ID)
	if err != nil {
		slog.Error("failed to archive session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to archive session")
		return
	}

	slog.Info("session archived", "session_id", sess.ID, "by", member.UID)

	middleware.JSONResponse(w, http.StatusOK, models.ArchiveSessionResponse{
		Status: models.SessionArchived,
	})
}
