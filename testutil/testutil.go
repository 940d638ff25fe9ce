// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/name-duel/auth"
	"github.com/danielhkuo/name-duel/cliparse"
	"github.com/danielhkuo/name-duel/db"
	"github.com/danielhkuo/name-duel/models"
	"github.com/danielhkuo/name-duel/notify"
)

// SetupTestDB creates a fresh SQLite database with the full schema in a
// per-test temp directory. A single pool connection keeps concurrent
// test goroutines serialized under SQLite's single-writer model.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "nameduel_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3345,
		DatabaseURL:  "file:nameduel_test.db",
		DatabaseType: "sqlite",
		BaseURL:      "http://localhost:5173",
	}
}

// NewTestDispatcher returns a dispatcher backed by a recording sink.
// Call Close on the dispatcher before asserting on the sink; Close
// drains the queue and is idempotent, so the cleanup here is safe.
func NewTestDispatcher(t *testing.T) (*notify.Dispatcher, *RecordingSink) {
	t.Helper()

	sink := &RecordingSink{}
	d := notify.NewDispatcher(sink, 16)
	t.Cleanup(d.Close)
	return d, sink
}

// RecordingSink captures delivered events for assertions
type RecordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *RecordingSink) Deliver(e notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything delivered so far
func (s *RecordingSink) Events() []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Event(nil), s.events...)
}

// Kinds returns the delivered event kinds in order
func (s *RecordingSink) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]string, len(s.events))
	for i, e := range s.events {
		kinds[i] = e.Kind()
	}
	return kinds
}

// FailingSink fails every delivery, for verifying that notification
// trouble never fails a mutation
type FailingSink struct{}

func (FailingSink) Deliver(notify.Event) error { return errors.New("delivery refused") }

// CreateTestSession inserts a session plus its creator as an owner
// member, and returns the session ID with both join tokens
func CreateTestSession(t *testing.T, conn *sql.DB, creator string, requiredNames int) (sid, ownerToken, voterToken string) {
	t.Helper()

	sid = auth.NewUID()
	ownerToken, _ = auth.NewToken()
	voterToken, _ = auth.NewToken()

	_, err := conn.Exec(`
		INSERT INTO session (id, title, created_by, required_names, name_focus, max_owners, status, invites_locked, owner_token, voter_token, created_at)
		VALUES ($1, 'Test Session', $2, $3, '', 2, 'active', $4, $5, $6, $7)
	`, sid, creator, requiredNames, false, ownerToken, voterToken, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	AddTestMember(t, conn, sid, creator, models.RoleOwner)
	return sid, ownerToken, voterToken
}

// AddTestMember upserts a member row
func AddTestMember(t *testing.T, conn *sql.DB, sid, uid, role string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO member (session_id, uid, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, uid) DO UPDATE SET role = excluded.role
	`, sid, uid, role, time.Now())
	if err != nil {
		t.Fatalf("Failed to add test member: %v", err)
	}
}

// LockTestInvites flips the session's invite lock
func LockTestInvites(t *testing.T, conn *sql.DB, sid string) {
	t.Helper()

	_, err := conn.Exec(`UPDATE session SET invites_locked = $1 WHERE id = $2`, true, sid)
	if err != nil {
		t.Fatalf("Failed to lock test invites: %v", err)
	}
}

// SaveTestList writes a list with the given names and parallel ranks
// (use 0 for unranked draft entries)
func SaveTestList(t *testing.T, conn *sql.DB, sid, owner string, names []string, ranks []int, submitted bool) {
	t.Helper()

	if len(names) != len(ranks) {
		t.Fatalf("names and ranks must be parallel: %d vs %d", len(names), len(ranks))
	}

	status := models.ListDraft
	now := time.Now()
	var submittedAt *time.Time
	if submitted {
		status = models.ListSubmitted
		submittedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO list (session_id, owner_uid, status, updated_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, owner_uid) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at, submitted_at = excluded.submitted_at
	`, sid, owner, status, now, submittedAt)
	if err != nil {
		t.Fatalf("Failed to save test list: %v", err)
	}

	if _, err := conn.Exec(`DELETE FROM list_name WHERE session_id = $1 AND owner_uid = $2`, sid, owner); err != nil {
		t.Fatalf("Failed to clear test list names: %v", err)
	}
	for i, name := range names {
		_, err := conn.Exec(`
			INSERT INTO list_name (session_id, owner_uid, position, name, self_rank)
			VALUES ($1, $2, $3, $4, $5)
		`, sid, owner, i+1, name, ranks[i])
		if err != nil {
			t.Fatalf("Failed to insert test list name: %v", err)
		}
	}
}

// DraftTestScore records a single draft score entry
func DraftTestScore(t *testing.T, conn *sql.DB, sid, owner, rater, name string, value int) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO score (session_id, owner_uid, rater_uid, name, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sid, owner, rater, name, value, time.Now())
	if err != nil {
		t.Fatalf("Failed to draft test score: %v", err)
	}
}

// CompleteTestScores records a full score set plus its completion mark
func CompleteTestScores(t *testing.T, conn *sql.DB, sid, owner, rater string, ranks map[string]int) {
	t.Helper()

	now := time.Now()
	for name, value := range ranks {
		_, err := conn.Exec(`
			INSERT INTO score (session_id, owner_uid, rater_uid, name, value, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sid, owner, rater, name, value, now)
		if err != nil {
			t.Fatalf("Failed to insert test score: %v", err)
		}
	}

	_, err := conn.Exec(`
		INSERT INTO score_submission (session_id, owner_uid, rater_uid, submitted_at)
		VALUES ($1, $2, $3, $4)
	`, sid, owner, rater, now)
	if err != nil {
		t.Fatalf("Failed to complete test scores: %v", err)
	}
}

// StartTestTieBreak inserts an active tie-break round over the names
func StartTestTieBreak(t *testing.T, conn *sql.DB, sid string, names []string) {
	t.Helper()

	encoded, err := json.Marshal(names)
	if err != nil {
		t.Fatalf("Failed to encode tie-break names: %v", err)
	}
	_, err = conn.Exec(`
		INSERT INTO tiebreak (session_id, names, active, started_at)
		VALUES ($1, $2, $3, $4)
	`, sid, string(encoded), true, time.Now())
	if err != nil {
		t.Fatalf("Failed to start test tie-break: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
