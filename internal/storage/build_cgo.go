//go:build cgo_sqlite
// +build cgo_sqlite

package storage

// This file is compiled when building with CGO and the cgo_sqlite tag.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "cgo_sqlite,fts5" ./...
//
// The CGO driver provides:
//   - Native C SQLite with FTS5 (requires the fts5 build tag)
//   - Faster bulk inserts on large exports
//   - Recommended for production packs
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
