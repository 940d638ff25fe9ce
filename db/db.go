// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open connects to the database selected by dbType. SQLite URLs are
// plain file paths (or file: URIs); Postgres URLs are standard
// connection strings.
func Open(dbType, url string) (*sql.DB, error) {
	switch dbType {
	case "postgres":
		return sql.Open("postgres", url)
	case "sqlite", "":
		return sql.Open("sqlite", url)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}
