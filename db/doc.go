// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connections

Open picks the driver from the configured database type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

SQLite (modernc.org/sqlite, no cgo) serves local development and tests;
Postgres (lib/pq) serves deployments. The schema and all queries stay
inside the dialect both drivers accept, so nothing else in the codebase
cares which one is underneath.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

The schema includes:

  - session: Session metadata, join tokens, and the invite lock
  - member: One row per participant per session, with role
  - session_invite: Pending email invites and their join tokens
  - list: One name list per owner per session
  - list_name: Ordered list entries with self-ranks
  - score: Peer score entries, draft and completed alike
  - score_submission: Marks a (rater, owner) score set as final
  - tiebreak: At most one tie-break round per session
  - tiebreak_vote: Tie-break vote entries

# Relationships

	session 1──* member
	session 1──* session_invite
	session 1──* list
	list    1──* list_name
	session 1──* score
	session 1──* score_submission
	session 1──1 tiebreak
	tiebreak 1──* tiebreak_vote

All foreign keys use ON DELETE CASCADE.

# Portability

Timestamps are bound from Go rather than defaulted with NOW(), JSON
payloads (tie-break names and winners) are stored as TEXT, and every
statement keeps its placeholders in ascending order so lib/pq and
modernc.org/sqlite both accept it.
*/
package db
