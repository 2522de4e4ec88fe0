// Package uuidx generates the time-ordered identifiers used for request and
// correlation-group ids.
package uuidx

import "github.com/google/uuid"

// New returns a fresh version 7 UUID. It panics if the random source fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a fresh version 7 UUID in its canonical string form.
func NewString() string {
	return New().String()
}
