// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The DDL sticks to the syntax both SQLite and Postgres accept:
// timestamps are always bound from Go instead of defaulted in SQL, and
// JSON payloads live in plain TEXT columns.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Sessions
CREATE TABLE IF NOT EXISTS session (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_by TEXT NOT NULL,
    required_names INTEGER NOT NULL,
    name_focus TEXT NOT NULL DEFAULT '',
    max_owners INTEGER NOT NULL DEFAULT 2,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived')),
    invites_locked BOOLEAN NOT NULL DEFAULT FALSE,
    owner_token TEXT NOT NULL,
    voter_token TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_status ON session(status);

-- Members
CREATE TABLE IF NOT EXISTS member (
    session_id TEXT NOT NULL REFERENCES session(id) ON DELETE CASCADE,
    uid TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('owner', 'voter')),
    joined_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, uid)
);

-- Pending Email Invites
CREATE TABLE IF NOT EXISTS session_invite (
    session_id TEXT NOT NULL REFERENCES session(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, email)
);

-- Name Lists (one per owner per session)
CREATE TABLE IF NOT EXISTS list (
    session_id TEXT NOT NULL REFERENCES session(id) ON DELETE CASCADE,
    owner_uid TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'submitted')),
    updated_at TIMESTAMP NOT NULL,
    submitted_at TIMESTAMP,
    PRIMARY KEY (session_id, owner_uid)
);

-- List Entries, ordered by position
CREATE TABLE IF NOT EXISTS list_name (
    session_id TEXT NOT NULL,
    owner_uid TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    self_rank INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, owner_uid, position),
    FOREIGN KEY (session_id, owner_uid) REFERENCES list(session_id, owner_uid) ON DELETE CASCADE
);

-- Peer Scores (drafts and completed entries share the table)
CREATE TABLE IF NOT EXISTS score (
    session_id TEXT NOT NULL REFERENCES session(id) ON DELETE CASCADE,
    owner_uid TEXT NOT NULL,
    rater_uid TEXT NOT NULL,
    name TEXT NOT NULL,
    value INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, owner_uid, rater_uid, name)
);

CREATE INDEX IF NOT EXISTS idx_score_rater ON score(session_id, rater_uid);

-- Completion marks, one per (rater, owner) pair
CREATE TABLE IF NOT EXISTS score_submission (
    session_id TEXT NOT NULL REFERENCES session(id) ON DELETE CASCADE,
    owner_uid TEXT NOT NULL,
    rater_uid TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, owner_uid, rater_uid)
);

-- Tie-Break Rounds (at most one per session)
CREATE TABLE IF NOT EXISTS tiebreak (
    session_id TEXT PRIMARY KEY REFERENCES session(id) ON DELETE CASCADE,
    names TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    started_at TIMESTAMP NOT NULL,
    closed_at TIMESTAMP,
    winners TEXT
);

-- Tie-Break Votes
CREATE TABLE IF NOT EXISTS tiebreak_vote (
    session_id TEXT NOT NULL REFERENCES tiebreak(session_id) ON DELETE CASCADE,
    voter_uid TEXT NOT NULL,
    name TEXT NOT NULL,
    value INTEGER NOT NULL,
    PRIMARY KEY (session_id, voter_uid, name)
);
`
