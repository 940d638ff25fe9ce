// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/danielhkuo/name-duel/cliparse"
	"github.com/danielhkuo/name-duel/engine"
	"github.com/danielhkuo/name-duel/middleware"
	"github.com/danielhkuo/name-duel/models"
)

type SnapshotHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewSnapshotHandler(db *sql.DB, cfg cliparse.Config) *SnapshotHandler {
	return &SnapshotHandler{db: db, cfg: cfg}
}

// GetSession handles GET /api/sessions/{sid}
// Returns the full read model: session, members, lists, visible score
// rows, the computed-on-demand aggregate, and the derived phase. The
// aggregate is never persisted; every read recomputes it from raw rows.
func (h *SnapshotHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, member, ok := requireMember(h.db, w, r)
	if !ok {
		return
	}

	members, err := loadMembers(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query members", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	lists, err := loadLists(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query lists", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	completions, err := loadCompletions(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query score submissions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	completed, err := loadCompletedScores(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	tb, err := loadTieBreak(h.db, sess.ID)
	if err != nil {
		slog.Error("failed to query tiebreak", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	agg := engine.Aggregate(lists, completed)
	phase := engine.Phase(sess, members, lists, completions, tb, agg)

	snapshot := models.SessionSnapshot{
		Session:      sess,
		Phase:        phase,
		Members:      members,
		Completions:  completions,
		FinalWinners: engine.FinalWinners(phase, tb, agg),
	}

	// Owners see the join tokens and the pending invites.
	if member.Role == models.RoleOwner {
		snapshot.InviteTokens = &models.InviteTokens{
			Owner: sess.OwnerToken,
			Voter: sess.VoterToken,
		}
		invites, err := loadInvites(h.db, sess.ID)
		if err != nil {
			slog.Error("failed to query invites", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		snapshot.PendingInvites = invites
	}

	mine, err := loadRaterScores(h.db, sess.ID, member.UID)
	if err != nil {
		slog.Error("failed to query caller scores", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Before the invite lock nobody sees anyone else's scores,
	// self-ranks included; after it, the aggregate and every completed
	// score set open up. Callers always get their own rows back.
	snapshot.Lists = visibleLists(lists, member.UID, sess.InvitesLocked)
	snapshot.Scores = visibleScores(completed, mine, sess.InvitesLocked)
	if sess.InvitesLocked {
		snapshot.Aggregate = &agg
	}

	if tb != nil {
		votes, err := loadTieBreakVotes(h.db, sess.ID)
		if err != nil {
			slog.Error("failed to query tiebreak votes", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		voted := maps.Keys(votes)
		sort.Strings(voted)
		snapshot.TieBreak = &models.TieBreakView{
			Names:     tb.Names,
			Active:    tb.Active,
			StartedAt: tb.StartedAt,
			ClosedAt:  tb.ClosedAt,
			Voted:     voted,
			Winners:   tb.Winners,
		}
	}

	middleware.JSONResponse(w, http.StatusOK, snapshot)
}

// DBCheck handles GET /api/dbcheck
func (h *SnapshotHandler) DBCheck(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := h.db.QueryRow("SELECT 1").Scan(&one); err != nil {
		slog.Error("database check failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database unreachable")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"db": "ok"})
}

// visibleLists filters what the caller may see of everyone's lists:
// their own always comes back whole, other owners' lists only once
// submitted, and other owners' self-ranks only after the invite lock
// (a self-rank counts as a score).
func visibleLists(lists []models.List, uid string, locked bool) []models.List {
	visible := []models.List{}
	for _, l := range lists {
		if l.OwnerUID == uid {
			visible = append(visible, l)
			continue
		}
		if l.Status != models.ListSubmitted {
			continue
		}
		if !locked {
			l.SelfRanks = nil
		}
		visible = append(visible, l)
	}
	return visible
}

// visibleScores merges the caller's own rows (drafts included) with,
// after the invite lock, every completed score set.
func visibleScores(completed, mine []models.ScoreRow, locked bool) []models.ScoreRow {
	type scoreKey struct{ owner, rater, name string }

	visible := []models.ScoreRow{}
	seen := map[scoreKey]bool{}
	if locked {
		for _, s := range completed {
			visible = append(visible, s)
			seen[scoreKey{s.OwnerUID, s.RaterUID, s.Name}] = true
		}
	}
	for _, s := range mine {
		if seen[scoreKey{s.OwnerUID, s.RaterUID, s.Name}] {
			continue
		}
		visible = append(visible, s)
	}
	return visible
}

// Row loaders shared across the handler package. Each takes the *sql.DB
// directly so transaction-free reads stay one-liners at call sites.

func loadSession(db *sql.DB, sid string) (models.Session, error) {
	var sess models.Session
	err := db.QueryRow(`
		SELECT id, title, created_by, required_names, name_focus, max_owners,
		       status, invites_locked, owner_token, voter_token, created_at
		FROM session
		WHERE id = $1
	`, sid).Scan(
		&sess.ID, &sess.Title, &sess.CreatedBy, &sess.RequiredNames,
		&sess.NameFocus, &sess.MaxOwners, &sess.Status, &sess.InvitesLocked,
		&sess.OwnerToken, &sess.VoterToken, &sess.CreatedAt,
	)
	return sess, err
}

func loadMember(db *sql.DB, sid, uid string) (models.Member, error) {
	var m models.Member
	err := db.QueryRow(`
		SELECT session_id, uid, role, joined_at
		FROM member
		WHERE session_id = $1 AND uid = $2
	`, sid, uid).Scan(&m.SessionID, &m.UID, &m.Role, &m.JoinedAt)
	return m, err
}

func loadMembers(db *sql.DB, sid string) ([]models.Member, error) {
	rows, err := db.Query(`
		SELECT session_id, uid, role, joined_at
		FROM member
		WHERE session_id = $1
		ORDER BY joined_at, uid
	`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.SessionID, &m.UID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func loadLists(db *sql.DB, sid string) ([]models.List, error) {
	rows, err := db.Query(`
		SELECT session_id, owner_uid, status, updated_at, submitted_at
		FROM list
		WHERE session_id = $1
		ORDER BY owner_uid
	`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []models.List{}
	index := map[string]int{}
	for rows.Next() {
		var l models.List
		if err := rows.Scan(&l.SessionID, &l.OwnerUID, &l.Status, &l.UpdatedAt, &l.SubmittedAt); err != nil {
			return nil, err
		}
		l.Names = []string{}
		l.SelfRanks = map[string]int{}
		index[l.OwnerUID] = len(lists)
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nameRows, err := db.Query(`
		SELECT owner_uid, name, self_rank
		FROM list_name
		WHERE session_id = $1
		ORDER BY owner_uid, position
	`, sid)
	if err != nil {
		return nil, err
	}
	defer nameRows.Close()

	for nameRows.Next() {
		var owner, name string
		var rank int
		if err := nameRows.Scan(&owner, &name, &rank); err != nil {
			return nil, err
		}
		i, ok := index[owner]
		if !ok {
			continue
		}
		lists[i].Names = append(lists[i].Names, name)
		if rank != 0 {
			lists[i].SelfRanks[name] = rank
		}
	}
	return lists, nameRows.Err()
}

// loadList returns nil when the owner has no list yet.
func loadList(db *sql.DB, sid, owner string) (*models.List, error) {
	var l models.List
	err := db.QueryRow(`
		SELECT session_id, owner_uid, status, updated_at, submitted_at
		FROM list
		WHERE session_id = $1 AND owner_uid = $2
	`, sid, owner).Scan(&l.SessionID, &l.OwnerUID, &l.Status, &l.UpdatedAt, &l.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.Names = []string{}
	l.SelfRanks = map[string]int{}
	rows, err := db.Query(`
		SELECT name, self_rank
		FROM list_name
		WHERE session_id = $1 AND owner_uid = $2
		ORDER BY position
	`, sid, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var rank int
		if err := rows.Scan(&name, &rank); err != nil {
			return nil, err
		}
		l.Names = append(l.Names, name)
		if rank != 0 {
			l.SelfRanks[name] = rank
		}
	}
	return &l, rows.Err()
}

func loadCompletions(db *sql.DB, sid string) ([]models.Completion, error) {
	rows, err := db.Query(`
		SELECT owner_uid, rater_uid, submitted_at
		FROM score_submission
		WHERE session_id = $1
		ORDER BY submitted_at, owner_uid, rater_uid
	`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := []models.Completion{}
	for rows.Next() {
		var c models.Completion
		if err := rows.Scan(&c.OwnerUID, &c.RaterUID, &c.SubmittedAt); err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// loadCompletedScores returns only score rows backed by a completion
// mark; drafts stay private to their rater.
func loadCompletedScores(db *sql.DB, sid string) ([]models.ScoreRow, error) {
	rows, err := db.Query(`
		SELECT s.session_id, s.owner_uid, s.rater_uid, s.name, s.value
		FROM score s
		JOIN score_submission c
		  ON c.session_id = s.session_id
		 AND c.owner_uid = s.owner_uid
		 AND c.rater_uid = s.rater_uid
		WHERE s.session_id = $1
		ORDER BY s.owner_uid, s.rater_uid, s.name
	`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScoreRows(rows)
}

func loadRaterScores(db *sql.DB, sid, rater string) ([]models.ScoreRow, error) {
	rows, err := db.Query(`
		SELECT session_id, owner_uid, rater_uid, name, value
		FROM score
		WHERE session_id = $1 AND rater_uid = $2
		ORDER BY owner_uid, name
	`, sid, rater)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScoreRows(rows)
}

func scanScoreRows(rows *sql.Rows) ([]models.ScoreRow, error) {
	scores := []models.ScoreRow{}
	for rows.Next() {
		var s models.ScoreRow
		if err := rows.Scan(&s.SessionID, &s.OwnerUID, &s.RaterUID, &s.Name, &s.Value); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// loadPairScores returns one rater's draft for one owner as name → value.
func loadPairScores(db *sql.DB, sid, owner, rater string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT name, value
		FROM score
		WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3
	`, sid, owner, rater)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := map[string]int{}
	for rows.Next() {
		var name string
		var value int
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		scores[name] = value
	}
	return scores, rows.Err()
}

// loadTieBreak returns nil when the session never started one.
func loadTieBreak(db *sql.DB, sid string) (*models.TieBreak, error) {
	var tb models.TieBreak
	var names string
	var winners sql.NullString
	err := db.QueryRow(`
		SELECT session_id, names, active, started_at, closed_at, winners
		FROM tiebreak
		WHERE session_id = $1
	`, sid).Scan(&tb.SessionID, &names, &tb.Active, &tb.StartedAt, &tb.ClosedAt, &winners)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(names), &tb.Names); err != nil {
		return nil, fmt.Errorf("failed to parse tiebreak names: %w", err)
	}
	if winners.Valid {
		if err := json.Unmarshal([]byte(winners.String), &tb.Winners); err != nil {
			return nil, fmt.Errorf("failed to parse tiebreak winners: %w", err)
		}
	}
	return &tb, nil
}

func loadTieBreakVotes(db *sql.DB, sid string) (map[string]map[string]int, error) {
	rows, err := db.Query(`
		SELECT voter_uid, name, value
		FROM tiebreak_vote
		WHERE session_id = $1
	`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := map[string]map[string]int{}
	for rows.Next() {
		var voter, name string
		var value int
		if err := rows.Scan(&voter, &name, &value); err != nil {
			return nil, err
		}
		if votes[voter] == nil {
			votes[voter] = map[string]int{}
		}
		votes[voter][name] = value
	}
	return votes, rows.Err()
}

func loadInvites(db *sql.DB, sid string) ([]models.Invite, error) {
	rows, err := db.Query(`
		SELECT session_id, email, token, created_at
		FROM session_invite
		WHERE session_id = $1
		ORDER BY created_at, email
	`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.SessionID, &inv.Email, &inv.Token, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}
