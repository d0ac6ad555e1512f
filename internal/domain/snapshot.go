package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a named, timestamped full-document backup. The Key mirrors
// the client-side storage key so local and server-side copies of the same
// save can be correlated.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Timestamp string    `json:"timestamp"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
