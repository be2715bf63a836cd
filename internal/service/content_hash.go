package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/artemk/menulive/internal/domain"
)

// normalizeText lowercases, trims, and collapses internal whitespace so that
// source strings differing only in case or spacing share one cache entry.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// HashContent computes the content-addressed cache key for a piece of source
// text in a given field role. Deterministic: any two strings that normalize
// identically map to the same key, which is what enables cross-tenant reuse
// of identical dish and ingredient names.
// Parameters:
//   - text: raw source text.
//   - role: field role distinguishing otherwise-identical text.
// Returns:
//   - string: hex-encoded SHA-256 digest of role and normalized text.
func HashContent(text string, role domain.FieldRole) string {
	sum := sha256.Sum256([]byte(string(role) + ":" + normalizeText(text)))
	return hex.EncodeToString(sum[:])
}
