package id

import "github.com/google/uuid"

// New returns a random identifier for a compositing session.
func New() string {
	return uuid.NewString()
}

// Short is the first block of id, used to tag log lines.
func Short(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
