// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/name-duel/cliparse"
	"github.com/danielhkuo/name-duel/handlers"
	"github.com/danielhkuo/name-duel/middleware"
	"github.com/danielhkuo/name-duel/notify"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, events *notify.Dispatcher) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(db, cfg, events)
	listHandler := handlers.NewListHandler(db, cfg, events)
	scoreHandler := handlers.NewScoreHandler(db, cfg, events)
	tieBreakHandler := handlers.NewTieBreakHandler(db, cfg, events)
	snapshotHandler := handlers.NewSnapshotHandler(db, cfg)

	// Health checks
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/dbcheck", middleware.WithLogging(snapshotHandler.DBCheck))

	// Session lifecycle
	mux.HandleFunc("POST /api/sessions", middleware.WithLogging(sessionHandler.CreateSession))
	mux.HandleFunc("GET /api/sessions/{sid}", middleware.WithLogging(snapshotHandler.GetSession))
	mux.HandleFunc("DELETE /api/sessions/{sid}", middleware.WithLogging(sessionHandler.ArchiveSession))
	mux.HandleFunc("POST /api/sessions/{sid}/join", middleware.WithLogging(sessionHandler.JoinSession))
	mux.HandleFunc("POST /api/sessions/{sid}/participants", middleware.WithLogging(sessionHandler.InviteParticipants))
	mux.HandleFunc("POST /api/sessions/{sid}/lock-invites", middleware.WithLogging(sessionHandler.LockInvites))
	mux.HandleFunc("GET /api/invite-info", middleware.WithLogging(sessionHandler.InviteInfo))

	// Name lists and scoring
	mux.HandleFunc("PUT /api/sessions/{sid}/lists", middleware.WithLogging(listHandler.SaveList))
	mux.HandleFunc("POST /api/sessions/{sid}/scores", middleware.WithLogging(scoreHandler.SubmitScore))
	mux.HandleFunc("POST /api/sessions/{sid}/scores/complete", middleware.WithLogging(scoreHandler.CompleteScores))

	// Tie-break rounds
	mux.HandleFunc("POST /api/sessions/{sid}/tiebreak", middleware.WithLogging(tieBreakHandler.StartTieBreak))
	mux.HandleFunc("POST /api/sessions/{sid}/tiebreak/votes", middleware.WithLogging(tieBreakHandler.SubmitVote))
	mux.HandleFunc("POST /api/sessions/{sid}/tiebreak/close", middleware.WithLogging(tieBreakHandler.CloseTieBreak))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("name-duel API v1"))
	})

	return mux
}
