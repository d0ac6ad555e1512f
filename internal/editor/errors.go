package editor

import "errors"

var (
	// ErrBusy means a layout pass was requested while one is in flight.
	// The request is dropped, not queued; the next mutation re-triggers.
	ErrBusy = errors.New("layout pass already in progress")

	// ErrNoContainer means the content container is not present yet.
	ErrNoContainer = errors.New("content container not found")

	// ErrDeclined means the user declined a destructive-action confirmation.
	ErrDeclined = errors.New("declined by user")

	// ErrNotEligible means no eligible element was found for an edit session.
	ErrNotEligible = errors.New("no eligible element")

	// ErrNoSession means the element has no open edit session.
	ErrNoSession = errors.New("no open edit session")
)
