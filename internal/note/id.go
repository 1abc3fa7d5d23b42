package note

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a ULID for a fresh note.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// New creates an empty note with a fresh identifier and the current
// timestamp. The note is not persisted until it has content.
func New() (*Note, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &Note{
		ID:        id,
		CreatedAt: time.Now().UnixMilli(),
	}, nil
}
