package xid

import (
	"github.com/google/uuid"
)

// New returns a random identifier. A non-empty prefix is kept for readability
// in logs, e.g. "sale-6f1c...".
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
