// Package ids generates and classifies the opaque handles used for
// artifacts and tasks, and disambiguates checker-name identifiers.
package ids

import "github.com/google/uuid"

// New returns a fresh v4 UUID string suitable as an artifact or task handle.
func New() string {
	return uuid.NewString()
}

// IsHandle reports whether s has the syntactic shape of a handle (UUID),
// as opposed to a built-in checker name such as "wcmp" or "ncmp".
func IsHandle(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
