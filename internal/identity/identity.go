// Package identity computes content-addressable identifiers.
//
// Every entity ID in a pack is a deterministic digest of the record's own
// fields, pipe-joined in a fixed order. The functions here are pure: no
// wall-clock or random input, so repeated runs over unchanged source
// content produce byte-identical IDs.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// shortLen is the length of short fingerprints in hex characters.
const shortLen = 8

// HashID returns the hex SHA-256 digest of the pipe-joined parts.
// Changing any part, or the order of parts, changes the ID.
func HashID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short hex digest of s, suitable for pack IDs and
// input fingerprints where a full digest would be unwieldy.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:shortLen]
}
