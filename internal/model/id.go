package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string used as a job identifier.
func NewID() string {
	return ulid.Make().String()
}
