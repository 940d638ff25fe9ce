// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/name-duel/auth"
	"github.com/danielhkuo/name-duel/models"
	"github.com/danielhkuo/name-duel/notify"
	"github.com/danielhkuo/name-duel/testutil"
)

func TestCreateSession(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	tests := []struct {
		name           string
		uid            string
		requestBody    interface{}
		expectedStatus int
		checkResponse  func(t *testing.T, resp *models.CreateSessionResponse)
	}{
		{
			name: "valid session creation",
			uid:  "parent-1",
			requestBody: models.CreateSessionRequest{
				Title:         "Baby Names",
				RequiredNames: 5,
				NameFocus:     "first names",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.CreateSessionResponse) {
				if resp.SessionID == "" {
					t.Error("Expected non-empty session_id")
				}
				if resp.OwnerToken == "" || resp.VoterToken == "" {
					t.Error("Expected both join tokens")
				}

				var status string
				var requiredNames, maxOwners int
				err := conn.QueryRow("SELECT status, required_names, max_owners FROM session WHERE id = $1", resp.SessionID).
					Scan(&status, &requiredNames, &maxOwners)
				if err != nil {
					t.Fatalf("Failed to query session: %v", err)
				}
				if status != models.SessionActive {
					t.Errorf("Expected status 'active', got '%s'", status)
				}
				if requiredNames != 5 {
					t.Errorf("Expected required_names 5, got %d", requiredNames)
				}
				if maxOwners != 2 {
					t.Errorf("Expected max_owners 2, got %d", maxOwners)
				}

				// Creator joins as an owner automatically
				var role string
				err = conn.QueryRow("SELECT role FROM member WHERE session_id = $1 AND uid = $2", resp.SessionID, "parent-1").Scan(&role)
				if err != nil {
					t.Fatalf("Failed to query creator member: %v", err)
				}
				if role != models.RoleOwner {
					t.Errorf("Expected creator role 'owner', got '%s'", role)
				}
			},
		},
		{
			name:           "defaults required names to ten",
			uid:            "parent-1",
			requestBody:    models.CreateSessionRequest{Title: "Defaults"},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.CreateSessionResponse) {
				var requiredNames int
				err := conn.QueryRow("SELECT required_names FROM session WHERE id = $1", resp.SessionID).Scan(&requiredNames)
				if err != nil {
					t.Fatalf("Failed to query session: %v", err)
				}
				if requiredNames != 10 {
					t.Errorf("Expected required_names 10, got %d", requiredNames)
				}
			},
		},
		{
			name:           "three owner slots when asked",
			uid:            "parent-1",
			requestBody:    models.CreateSessionRequest{Title: "Trio", MaxOwners: 3},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.CreateSessionResponse) {
				var maxOwners int
				err := conn.QueryRow("SELECT max_owners FROM session WHERE id = $1", resp.SessionID).Scan(&maxOwners)
				if err != nil {
					t.Fatalf("Failed to query session: %v", err)
				}
				if maxOwners != 3 {
					t.Errorf("Expected max_owners 3, got %d", maxOwners)
				}
			},
		},
		{
			name:           "other owner counts coerced to two",
			uid:            "parent-1",
			requestBody:    models.CreateSessionRequest{Title: "Crowd", MaxOwners: 5},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.CreateSessionResponse) {
				var maxOwners int
				err := conn.QueryRow("SELECT max_owners FROM session WHERE id = $1", resp.SessionID).Scan(&maxOwners)
				if err != nil {
					t.Fatalf("Failed to query session: %v", err)
				}
				if maxOwners != 2 {
					t.Errorf("Expected max_owners 2, got %d", maxOwners)
				}
			},
		},
		{
			name:           "missing title",
			uid:            "parent-1",
			requestBody:    models.CreateSessionRequest{RequiredNames: 5},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "required names too small",
			uid:            "parent-1",
			requestBody:    models.CreateSessionRequest{Title: "One", RequiredNames: 1},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "required names too large",
			uid:            "parent-1",
			requestBody:    models.CreateSessionRequest{Title: "Many", RequiredNames: 51},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing user header",
			uid:            "",
			requestBody:    models.CreateSessionRequest{Title: "Nobody"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid JSON",
			uid:            "parent-1",
			requestBody:    "invalid json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				var err error
				body, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatalf("Failed to marshal request body: %v", err)
				}
			}

			req := httptest.NewRequest("POST", "/api/sessions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.uid != "" {
				req.Header.Set("X-User-Id", tt.uid)
			}
			w := httptest.NewRecorder()

			handler.CreateSession(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus == http.StatusCreated && tt.checkResponse != nil {
				var resp models.CreateSessionResponse
				testutil.AssertJSON(t, w, &resp)
				tt.checkResponse(t, &resp)
			}
		})
	}
}

func TestJoinSession(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, ownerTok, voterTok := testutil.CreateTestSession(t, conn, "creator-1", 2)

	tests := []struct {
		name           string
		sid            string
		uid            string
		requestBody    interface{}
		expectedStatus int
		expectedRole   string
	}{
		{
			name:           "owner token with claim grants owner role",
			sid:            sid,
			uid:            "parent-2",
			requestBody:    models.JoinSessionRequest{Token: ownerTok, AsOwner: true},
			expectedStatus: http.StatusOK,
			expectedRole:   models.RoleOwner,
		},
		{
			name:           "owner token without claim joins as voter",
			sid:            sid,
			uid:            "aunt-1",
			requestBody:    models.JoinSessionRequest{Token: ownerTok},
			expectedStatus: http.StatusOK,
			expectedRole:   models.RoleVoter,
		},
		{
			name:           "voter token joins as voter",
			sid:            sid,
			uid:            "uncle-1",
			requestBody:    models.JoinSessionRequest{Token: voterTok},
			expectedStatus: http.StatusOK,
			expectedRole:   models.RoleVoter,
		},
		{
			name:           "voter token cannot claim owner",
			sid:            sid,
			uid:            "uncle-2",
			requestBody:    models.JoinSessionRequest{Token: voterTok, AsOwner: true},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown token",
			sid:            sid,
			uid:            "stranger-1",
			requestBody:    models.JoinSessionRequest{Token: "bogus-token"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "missing token",
			sid:            sid,
			uid:            "stranger-2",
			requestBody:    models.JoinSessionRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing user header",
			sid:            sid,
			uid:            "",
			requestBody:    models.JoinSessionRequest{Token: voterTok},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "session not found",
			sid:            "nonexistent",
			uid:            "stranger-3",
			requestBody:    models.JoinSessionRequest{Token: voterTok},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.uid != "" {
				headers["X-User-Id"] = tt.uid
			}
			req := testutil.MakeRequest("POST", "/api/sessions/"+tt.sid+"/join", tt.requestBody, headers)
			req.SetPathValue("sid", tt.sid)
			w := httptest.NewRecorder()

			handler.JoinSession(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedRole != "" {
				var resp models.JoinSessionResponse
				testutil.AssertJSON(t, w, &resp)
				if resp.Role != tt.expectedRole {
					t.Errorf("Expected role '%s', got '%s'", tt.expectedRole, resp.Role)
				}

				var role string
				if err := conn.QueryRow("SELECT role FROM member WHERE session_id = $1 AND uid = $2", tt.sid, tt.uid).Scan(&role); err != nil {
					t.Fatalf("Failed to query member: %v", err)
				}
				if role != tt.expectedRole {
					t.Errorf("Expected stored role '%s', got '%s'", tt.expectedRole, role)
				}
			}
		})
	}
}

func TestJoinSessionOwnerCap(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, ownerTok, _ := testutil.CreateTestSession(t, conn, "creator-1", 2)
	testutil.AddTestMember(t, conn, sid, "parent-2", models.RoleOwner)

	// Both slots taken; a third owner claim bounces
	req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/join",
		models.JoinSessionRequest{Token: ownerTok, AsOwner: true},
		map[string]string{"X-User-Id": "parent-3"})
	req.SetPathValue("sid", sid)
	w := httptest.NewRecorder()
	handler.JoinSession(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Re-joining as an existing owner stays legal
	req = testutil.MakeRequest("POST", "/api/sessions/"+sid+"/join",
		models.JoinSessionRequest{Token: ownerTok, AsOwner: true},
		map[string]string{"X-User-Id": "parent-2"})
	req.SetPathValue("sid", sid)
	w = httptest.NewRecorder()
	handler.JoinSession(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestJoinSessionLocked(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, _, voterTok := testutil.CreateTestSession(t, conn, "creator-1", 2)
	testutil.LockTestInvites(t, conn, sid)

	req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/join",
		models.JoinSessionRequest{Token: voterTok},
		map[string]string{"X-User-Id": "latecomer-1"})
	req.SetPathValue("sid", sid)
	w := httptest.NewRecorder()
	handler.JoinSession(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)
}

func TestJoinSessionConsumesInvite(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "creator-1", 2)

	inviteTok, _ := auth.NewToken()
	_, err := conn.Exec(`
		INSERT INTO session_invite (session_id, email, token, created_at)
		VALUES ($1, $2, $3, $4)
	`, sid, "cousin@example.com", inviteTok, time.Now())
	if err != nil {
		t.Fatalf("Failed to seed invite: %v", err)
	}

	// An email invite never grants the owner role
	req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/join",
		models.JoinSessionRequest{Token: inviteTok, AsOwner: true},
		map[string]string{"X-User-Id": "cousin-1"})
	req.SetPathValue("sid", sid)
	w := httptest.NewRecorder()
	handler.JoinSession(w, req)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	// A plain join works and consumes the pending invite
	req = testutil.MakeRequest("POST", "/api/sessions/"+sid+"/join",
		models.JoinSessionRequest{Token: inviteTok},
		map[string]string{"X-User-Id": "cousin-1"})
	req.SetPathValue("sid", sid)
	w = httptest.NewRecorder()
	handler.JoinSession(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.JoinSessionResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Role != models.RoleVoter {
		t.Errorf("Expected role 'voter', got '%s'", resp.Role)
	}

	var pending int
	if err := conn.QueryRow("SELECT COUNT(*) FROM session_invite WHERE session_id = $1", sid).Scan(&pending); err != nil {
		t.Fatalf("Failed to count invites: %v", err)
	}
	if pending != 0 {
		t.Errorf("Expected invite to be consumed, %d still pending", pending)
	}
}

func TestInviteParticipants(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, sink := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "creator-1", 2)
	testutil.AddTestMember(t, conn, sid, "voter-1", models.RoleVoter)

	invite := func(uid string, body interface{}) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/participants", body,
			map[string]string{"X-User-Id": uid})
		req.SetPathValue("sid", sid)
		w := httptest.NewRecorder()
		handler.InviteParticipants(w, req)
		return w
	}

	// No template list yet: invites bounce
	w := invite("creator-1", models.InviteParticipantsRequest{Emails: []string{"aunt@example.com"}})
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Any saved list unblocks inviting; a draft is enough
	testutil.SaveTestList(t, conn, sid, "creator-1", []string{"Ann"}, []int{0}, false)

	w = invite("voter-1", models.InviteParticipantsRequest{Emails: []string{"aunt@example.com"}})
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = invite("creator-1", models.InviteParticipantsRequest{Emails: []string{"Aunt@Example.com", "not-an-email", "  "}})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.InviteParticipantsResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Email != "aunt@example.com" || resp.Results[0].Status != "invited" {
		t.Errorf("Expected lowercased 'invited' result, got %+v", resp.Results[0])
	}
	if resp.Results[1].Status != "invalid" || resp.Results[2].Status != "invalid" {
		t.Errorf("Expected invalid results, got %+v", resp.Results[1:])
	}

	// Re-inviting the same address reads as resent
	w = invite("creator-1", models.InviteParticipantsRequest{Emails: []string{"aunt@example.com"}})
	testutil.AssertStatus(t, w, http.StatusOK)
	resp = models.InviteParticipantsResponse{}
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Status != "resent" {
		t.Errorf("Expected resent result, got %+v", resp.Results)
	}

	events.Close()
	inviteEvents := 0
	for _, e := range sink.Events() {
		ic, ok := e.(notify.InviteCreated)
		if !ok {
			continue
		}
		inviteEvents++
		if !strings.HasPrefix(ic.JoinURL, cfg.BaseURL+"/join?sid="+sid) {
			t.Errorf("Unexpected join URL: %s", ic.JoinURL)
		}
	}
	if inviteEvents != 2 {
		t.Errorf("Expected 2 invite notifications, got %d", inviteEvents)
	}

	var pending int
	if err := conn.QueryRow("SELECT COUNT(*) FROM session_invite WHERE session_id = $1", sid).Scan(&pending); err != nil {
		t.Fatalf("Failed to count invites: %v", err)
	}
	if pending != 1 {
		t.Errorf("Expected 1 pending invite, got %d", pending)
	}
}

func TestInviteParticipantsLocked(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "creator-1", 2)
	testutil.SaveTestList(t, conn, sid, "creator-1", []string{"Ann"}, []int{0}, false)
	testutil.LockTestInvites(t, conn, sid)

	req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/participants",
		models.InviteParticipantsRequest{Emails: []string{"aunt@example.com"}},
		map[string]string{"X-User-Id": "creator-1"})
	req.SetPathValue("sid", sid)
	w := httptest.NewRecorder()
	handler.InviteParticipants(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)
}

func TestInviteInfo(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, ownerTok, voterTok := testutil.CreateTestSession(t, conn, "creator-1", 3)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
	}{
		{"owner token", "?sid=" + sid + "&token=" + ownerTok, http.StatusOK},
		{"voter token", "?sid=" + sid + "&token=" + voterTok, http.StatusOK},
		{"unknown token", "?sid=" + sid + "&token=bogus", http.StatusNotFound},
		{"missing params", "", http.StatusBadRequest},
		{"unknown session", "?sid=nonexistent&token=" + voterTok, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/api/invite-info"+tt.query, nil, nil)
			w := httptest.NewRecorder()
			handler.InviteInfo(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}

	// template_ready flips once the creator saves a list
	req := testutil.MakeRequest("GET", "/api/invite-info?sid="+sid+"&token="+voterTok, nil, nil)
	w := httptest.NewRecorder()
	handler.InviteInfo(w, req)
	var info models.InviteInfoResponse
	testutil.AssertJSON(t, w, &info)
	if info.Title != "Test Session" || info.RequiredNames != 3 {
		t.Errorf("Unexpected invite info: %+v", info)
	}
	if info.TemplateReady {
		t.Error("Expected template_ready false before any list")
	}

	testutil.SaveTestList(t, conn, sid, "creator-1", []string{"Ann", "Bea"}, []int{0, 0}, false)

	req = testutil.MakeRequest("GET", "/api/invite-info?sid="+sid+"&token="+voterTok, nil, nil)
	w = httptest.NewRecorder()
	handler.InviteInfo(w, req)
	info = models.InviteInfoResponse{}
	testutil.AssertJSON(t, w, &info)
	if !info.TemplateReady {
		t.Error("Expected template_ready true after the creator saved a list")
	}
}

func TestLockInvites(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, sink := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "creator-1", 2)
	testutil.AddTestMember(t, conn, sid, "voter-1", models.RoleVoter)

	lock := func(uid string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/lock-invites", nil,
			map[string]string{"X-User-Id": uid})
		req.SetPathValue("sid", sid)
		w := httptest.NewRecorder()
		handler.LockInvites(w, req)
		return w
	}

	testutil.AssertStatus(t, lock("voter-1"), http.StatusForbidden)

	w := lock("creator-1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.LockInvitesResponse
	testutil.AssertJSON(t, w, &resp)
	if !resp.InvitesLocked {
		t.Error("Expected invites_locked true")
	}

	var locked bool
	if err := conn.QueryRow("SELECT invites_locked FROM session WHERE id = $1", sid).Scan(&locked); err != nil {
		t.Fatalf("Failed to query session: %v", err)
	}
	if !locked {
		t.Error("Expected invites_locked set in database")
	}

	// The lock is irreversible and not repeatable
	testutil.AssertStatus(t, lock("creator-1"), http.StatusConflict)

	events.Close()
	lockEvents := 0
	for _, kind := range sink.Kinds() {
		if kind == "invites_locked" {
			lockEvents++
		}
	}
	if lockEvents != 1 {
		t.Errorf("Expected exactly 1 invites_locked notification, got %d", lockEvents)
	}
}

func TestArchiveSession(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	handler := NewSessionHandler(conn, cfg, events)

	sid, _, voterTok := testutil.CreateTestSession(t, conn, "creator-1", 2)
	testutil.AddTestMember(t, conn, sid, "voter-1", models.RoleVoter)

	archive := func(uid string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("DELETE", "/api/sessions/"+sid, nil,
			map[string]string{"X-User-Id": uid})
		req.SetPathValue("sid", sid)
		w := httptest.NewRecorder()
		handler.ArchiveSession(w, req)
		return w
	}

	testutil.AssertStatus(t, archive("voter-1"), http.StatusForbidden)

	w := archive("creator-1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.ArchiveSessionResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Status != models.SessionArchived {
		t.Errorf("Expected status 'archived', got '%s'", resp.Status)
	}

	// Archived sessions are gone as far as the API is concerned
	req := testutil.MakeRequest("POST", "/api/sessions/"+sid+"/join",
		models.JoinSessionRequest{Token: voterTok},
		map[string]string{"X-User-Id": "latecomer-1"})
	req.SetPathValue("sid", sid)
	w = httptest.NewRecorder()
	handler.JoinSession(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)

	testutil.AssertStatus(t, archive("creator-1"), http.StatusNotFound)
}
