// Package session mints the per-request identifiers that scope staged media and
// synthesized audio so concurrent requests never share a filename.
package session

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies one analysis or synthesis request.
type ID string

// New returns a fresh random session ID.
func New() ID {
	return ID(uuid.NewString())
}

// Parse validates s as a session ID. Only canonical UUIDs are accepted, which
// also keeps client-supplied IDs safe to embed in file names.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid session id %q: %w", s, err)
	}
	if u.String() != s {
		return "", fmt.Errorf("invalid session id %q: not in canonical form", s)
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }
