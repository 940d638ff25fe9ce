// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/name-duel/models"
	"github.com/danielhkuo/name-duel/testutil"
)

// TestConcurrentVoteSubmissions verifies that simultaneous tie-break votes
// from different members don't cause data corruption or duplicates
func TestConcurrentVoteSubmissions(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	tieBreakHandler := NewTieBreakHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "parent-1", 2)
	testutil.LockTestInvites(t, conn, sid)
	testutil.StartTestTieBreak(t, conn, sid, []string{"Ann", "Xia"})

	numVoters := 8
	voters := make([]string, numVoters)
	for i := 0; i < numVoters; i++ {
		voters[i] = "voter-" + string(rune('A'+i))
		testutil.AddTestMember(t, conn, sid, voters[i], models.RoleVoter)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(voterIdx int) {
			defer wg.Done()

			ranks := map[string]int{"Ann": 1, "Xia": 2}
			if voterIdx%2 == 0 {
				ranks = map[string]int{"Ann": 2, "Xia": 1}
			}

			body, _ := json.Marshal(models.TieBreakVoteRequest{Ranks: ranks})
			req := httptest.NewRequest("POST", "/api/sessions/"+sid+"/tiebreak/votes", bytes.NewReader(body))
			req.SetPathValue("sid", sid)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", voters[voterIdx])
			w := httptest.NewRecorder()

			tieBreakHandler.SubmitVote(w, req)

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful votes, got %d", numVoters, successCount.Load())
	}

	var voteRows int
	err := conn.QueryRow("SELECT COUNT(*) FROM tiebreak_vote WHERE session_id = $1", sid).Scan(&voteRows)
	if err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if voteRows != numVoters*2 {
		t.Errorf("Expected %d vote rows in database, got %d", numVoters*2, voteRows)
	}

	var uniqueVoters int
	err = conn.QueryRow("SELECT COUNT(DISTINCT voter_uid) FROM tiebreak_vote WHERE session_id = $1", sid).Scan(&uniqueVoters)
	if err != nil {
		t.Fatalf("Failed to count unique voters: %v", err)
	}
	if uniqueVoters != numVoters {
		t.Errorf("Expected %d unique voters, got %d (possible duplicates)", numVoters, uniqueVoters)
	}
}

// TestConcurrentScoreCompletions verifies that when one rater completes the
// same list from several goroutines, exactly one completion lands
func TestConcurrentScoreCompletions(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	scoreHandler := NewScoreHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "parent-1", 2)
	testutil.AddTestMember(t, conn, sid, "voter-1", models.RoleVoter)
	testutil.SaveTestList(t, conn, sid, "parent-1", []string{"Ann", "Bea"}, []int{1, 2}, true)

	numAttempts := 5
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			completeReq := models.CompleteScoresRequest{
				OwnerUID: "parent-1",
				Ranks:    map[string]int{"Ann": 1, "Bea": 2},
			}
			body, _ := json.Marshal(completeReq)
			req := httptest.NewRequest("POST", "/api/sessions/"+sid+"/scores/complete", bytes.NewReader(body))
			req.SetPathValue("sid", sid)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", "voter-1")
			w := httptest.NewRecorder()

			scoreHandler.CompleteScores(w, req)

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// The completion mark's primary key lets exactly one transaction through
	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful completion, got %d", successCount.Load())
	}

	var completionCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM score_submission WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3",
		sid, "parent-1", "voter-1").Scan(&completionCount)
	if err != nil {
		t.Fatalf("Failed to count completions: %v", err)
	}
	if completionCount != 1 {
		t.Errorf("Expected 1 completion in database, got %d", completionCount)
	}

	// Losing transactions must roll their score rows back too
	var scoreRows int
	err = conn.QueryRow("SELECT COUNT(*) FROM score WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3",
		sid, "parent-1", "voter-1").Scan(&scoreRows)
	if err != nil {
		t.Fatalf("Failed to count scores: %v", err)
	}
	if scoreRows != 2 {
		t.Errorf("Expected 2 score rows, got %d", scoreRows)
	}
}

// TestConcurrentTieBreakClose verifies that when multiple owners race to
// close the same round, exactly one close wins and the winners are set once
func TestConcurrentTieBreakClose(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	tieBreakHandler := NewTieBreakHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "parent-1", 2)
	testutil.AddTestMember(t, conn, sid, "parent-2", models.RoleOwner)
	testutil.AddTestMember(t, conn, sid, "voter-1", models.RoleVoter)
	testutil.LockTestInvites(t, conn, sid)
	testutil.StartTestTieBreak(t, conn, sid, []string{"Ann", "Xia"})

	for name, value := range map[string]int{"Ann": 1, "Xia": 2} {
		if _, err := conn.Exec(`
			INSERT INTO tiebreak_vote (session_id, voter_uid, name, value)
			VALUES ($1, $2, $3, $4)
		`, sid, "voter-1", name, value); err != nil {
			t.Fatalf("Failed to seed vote: %v", err)
		}
	}

	owners := []string{"parent-1", "parent-2", "parent-1"}
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < len(owners); i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			req := httptest.NewRequest("POST", "/api/sessions/"+sid+"/tiebreak/close", nil)
			req.SetPathValue("sid", sid)
			req.Header.Set("X-User-Id", owners[idx])
			w := httptest.NewRecorder()

			tieBreakHandler.CloseTieBreak(w, req)

			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	// The close updates only an active row, so the second writer finds none
	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful close, got %d", successCount.Load())
	}

	var active bool
	var winners *string
	err := conn.QueryRow("SELECT active, winners FROM tiebreak WHERE session_id = $1", sid).Scan(&active, &winners)
	if err != nil {
		t.Fatalf("Failed to query tiebreak: %v", err)
	}
	if active {
		t.Error("Expected the round to be closed")
	}
	if winners == nil {
		t.Fatal("Expected winners to be recorded")
	}

	var stored []string
	if err := json.Unmarshal([]byte(*winners), &stored); err != nil {
		t.Fatalf("Failed to decode winners: %v", err)
	}
	if len(stored) != 1 || stored[0] != "Ann" {
		t.Errorf("Expected winners [Ann], got %v", stored)
	}
}

// TestConcurrentDraftScoreUpdates verifies that one rater hammering their
// own draft concurrently still ends in a consistent state
func TestConcurrentDraftScoreUpdates(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	scoreHandler := NewScoreHandler(conn, cfg, events)

	sid, _, _ := testutil.CreateTestSession(t, conn, "parent-1", 2)
	testutil.AddTestMember(t, conn, sid, "voter-1", models.RoleVoter)
	testutil.SaveTestList(t, conn, sid, "parent-1", []string{"Ann", "Bea"}, []int{1, 2}, true)

	names := []string{"Ann", "Bea"}
	numUpdates := 10
	var wg sync.WaitGroup

	for i := 0; i < numUpdates; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			scoreReq := models.SubmitScoreRequest{
				OwnerUID: "parent-1",
				Name:     names[idx%2],
				Value:    idx%2 + 1,
			}
			body, _ := json.Marshal(scoreReq)
			req := httptest.NewRequest("POST", "/api/sessions/"+sid+"/scores", bytes.NewReader(body))
			req.SetPathValue("sid", sid)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", "voter-1")
			w := httptest.NewRecorder()

			scoreHandler.SubmitScore(w, req)
			// Whichever update wins, the draft must stay internally consistent
		}(i)
	}

	wg.Wait()

	rows, err := conn.Query("SELECT name, value FROM score WHERE session_id = $1 AND owner_uid = $2 AND rater_uid = $3",
		sid, "parent-1", "voter-1")
	if err != nil {
		t.Fatalf("Failed to query scores: %v", err)
	}
	defer rows.Close()

	seenValues := map[int]string{}
	total := 0
	for rows.Next() {
		var name string
		var value int
		if err := rows.Scan(&name, &value); err != nil {
			t.Fatalf("Failed to scan score: %v", err)
		}
		total++
		if value < 1 || value > 2 {
			t.Errorf("Score for %s out of range: %d", name, value)
		}
		if other, dup := seenValues[value]; dup {
			t.Errorf("Value %d assigned to both %s and %s", value, other, name)
		}
		seenValues[value] = name
	}
	if total < 1 || total > 2 {
		t.Errorf("Expected 1 or 2 draft rows, got %d", total)
	}
}

// TestParallelSessions verifies that operations on different sessions
// don't interfere
func TestParallelSessions(t *testing.T) {
	t.Parallel() // This test can run in parallel with others

	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	events, _ := testutil.NewTestDispatcher(t)
	sessionHandler := NewSessionHandler(conn, cfg, events)
	listHandler := NewListHandler(conn, cfg, events)

	numSessions := 5
	var wg sync.WaitGroup

	for i := 0; i < numSessions; i++ {
		wg.Add(1)
		go func(sessionIdx int) {
			defer wg.Done()

			creator := "creator-" + string(rune('A'+sessionIdx))
			createReq := models.CreateSessionRequest{
				Title:         "Parallel Session " + string(rune('A'+sessionIdx)),
				RequiredNames: 2,
			}
			body, _ := json.Marshal(createReq)
			req := httptest.NewRequest("POST", "/api/sessions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", creator)
			w := httptest.NewRecorder()
			sessionHandler.CreateSession(w, req)

			if w.Code != http.StatusCreated {
				t.Errorf("Session %d creation failed: %d", sessionIdx, w.Code)
				return
			}

			var createResp models.CreateSessionResponse
			json.NewDecoder(w.Body).Decode(&createResp)
			sid := createResp.SessionID

			// Join a voter
			joinReq := models.JoinSessionRequest{Token: createResp.VoterToken}
			body, _ = json.Marshal(joinReq)
			req = httptest.NewRequest("POST", "/api/sessions/"+sid+"/join", bytes.NewReader(body))
			req.SetPathValue("sid", sid)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", "friend-"+string(rune('A'+sessionIdx)))
			w = httptest.NewRecorder()
			sessionHandler.JoinSession(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Session %d join failed: %d", sessionIdx, w.Code)
				return
			}

			// Save a draft list
			saveReq := models.SaveListRequest{Names: []string{"Ann", "Bea"}}
			body, _ = json.Marshal(saveReq)
			req = httptest.NewRequest("PUT", "/api/sessions/"+sid+"/lists", bytes.NewReader(body))
			req.SetPathValue("sid", sid)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", creator)
			w = httptest.NewRecorder()
			listHandler.SaveList(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Session %d list save failed: %d", sessionIdx, w.Code)
				return
			}
		}(i)
	}

	wg.Wait()

	var sessionCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM session").Scan(&sessionCount)
	if err != nil {
		t.Fatalf("Failed to count sessions: %v", err)
	}
	if sessionCount != numSessions {
		t.Errorf("Expected %d sessions, got %d", numSessions, sessionCount)
	}

	var listCount int
	err = conn.QueryRow("SELECT COUNT(*) FROM list").Scan(&listCount)
	if err != nil {
		t.Fatalf("Failed to count lists: %v", err)
	}
	if listCount != numSessions {
		t.Errorf("Expected %d lists, got %d", numSessions, listCount)
	}
}
