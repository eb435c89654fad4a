// Package db provides the embedded schema of the register's local store.
package db

import _ "embed"

// Schema contains the DDL statements for all local tables. Every statement
// is idempotent so it runs on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
