// Package uuid generates the time-ordered identifiers used for database rows,
// graph nodes, graph edges and composition sessions.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// canonicalLen is the length of the hyphenated 8-4-4-4-12 form.
const canonicalLen = 36

// New returns a UUIDv7 string. IDs sort by creation time, which keeps
// primary-key inserts append-only and lets graph IDs double as ordering hints.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// IsValid reports whether s is a UUID in canonical hyphenated form.
// The braced, urn: and bare-hex forms the parser also accepts are rejected
// so that path parameters and stored references compare byte for byte.
func IsValid(s string) bool {
	if len(s) != canonicalLen {
		return false
	}
	_, err := googleuuid.Parse(s)
	return err == nil
}
