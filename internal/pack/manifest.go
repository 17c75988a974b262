// Package pack writes and verifies the portable pack produced by a run:
// the manifest JSON plus the SQLite store next to it.
package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chatpack/chatpack/internal/identity"
	"github.com/chatpack/chatpack/pkg/types"
)

// ManifestFileName is the manifest's name inside a pack directory.
const ManifestFileName = "manifest.json"

// NewPackID derives a fresh pack identifier from the run time and a short
// digest of the input path. The random suffix guards against two runs in
// the same clock second colliding.
func NewPackID(inputPath string, now time.Time) string {
	return fmt.Sprintf("pack-%s-%s-%s",
		now.UTC().Format("20060102T150405Z"),
		identity.Fingerprint(inputPath),
		uuid.NewString()[:8])
}

// InputFingerprint digests the input path plus its aggregate size and file
// count, used to detect whether a pack was built from the same export.
func InputFingerprint(inputPath string, fileCount int, totalBytes int64) string {
	return identity.Fingerprint(fmt.Sprintf("%s|%d|%d", inputPath, fileCount, totalBytes))
}

// WriteManifest persists the manifest into the pack directory,
// overwriting any previous manifest.
func WriteManifest(packDir string, m *types.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(packDir, ManifestFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from a pack directory.
func ReadManifest(packDir string) (*types.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(packDir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
