// Package uuid issues the time-ordered identifiers used for session
// instances, request ids and token ids. It wraps github.com/google/uuid with
// version 7 as the default.
package uuid

import (
	"github.com/google/uuid"
)

// UUID is github.com/google/uuid.UUID.
type UUID = uuid.UUID

// Nil is the zero UUID.
var Nil = uuid.Nil

// NewRandom returns a new UUIDv7 and any error encountered during generation.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// New returns a new UUIDv7. Panics if UUID generation fails.
func New() UUID {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return uuidv7
}

// Parse parses a UUID string into a UUID value.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether the given UUID is a UUIDv7.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// ShortID returns the first eight hex characters, used to tag log lines.
func ShortID(id UUID) string {
	return id.String()[:8]
}
