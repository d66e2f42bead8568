package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a unique, time-sortable identifier: a UUIDv7 with its
// separating dashes stripped, producing a 32-char hex string.
//
// UUIDv7 embeds a 48-bit millisecond timestamp in its leading bits, so IDs
// generated later in time sort lexicographically after earlier ones; the
// trailing random bits make concurrent generation collision-free.
func New() string {
	u, err := uuid.NewV7()
	if err != nil {
		// Only fails if the system entropy source is broken, which every
		// major Go library treats as unrecoverable.
		panic("id: uuid.NewV7 failed: " + err.Error())
	}
	return strings.ReplaceAll(u.String(), "-", "")
}
