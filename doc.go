// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Name Duel API server.

Name Duel is a collaborative naming service: owners each submit a short
list of candidate names, every participant ranks everyone else's list,
and the lowest combined rank total wins. Ties go to a dedicated
tie-break round.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=names.db go run main.go

Or with flags:

	go run main.go -p 3345 -d "postgres://..." -t postgres

A .env.local file in the working directory is loaded before flags are
parsed, so local development settings can live there.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file path or PostgreSQL connection string

Optional settings:

  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - PORT (-p): Server port (default: 3345)
  - BASE_URL (-base-url): Public URL used in invite links (default: http://localhost:5173)
  - ALLOWED_ORIGIN (-origin): CORS origin; empty reflects the request origin

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (sessions, lists, scores, tiebreak, snapshot)
  - engine: Pure scoring rules — validation, aggregation, tie-breaks, phases
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - notify: Asynchronous event dispatch (invites, submissions, results)
  - auth: Token and participant ID generation
  - db: Driver selection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
