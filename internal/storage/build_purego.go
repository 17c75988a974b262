//go:build purego || !cgo_sqlite
// +build purego !cgo_sqlite

package storage

// This file is compiled when building without CGO or with the purego tag.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// The pure Go implementation provides:
//   - No C compiler required
//   - Cross-platform compilation
//   - FTS5 built in
//   - Suitable for development and typical export sizes
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
