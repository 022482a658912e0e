// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains idempotent DDL for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string
