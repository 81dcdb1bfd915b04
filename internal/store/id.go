package store

import "github.com/oklog/ulid/v2"

// NewID returns a ULID. Ids minted within the same millisecond stay ordered.
func NewID() string {
	return ulid.Make().String()
}
