// Package snapshot persists named, timestamped full-document snapshots to a
// local key-value store, with restore-by-replacing-the-whole-document
// semantics.
package snapshot

import "errors"

var (
	// ErrNotFound means the requested snapshot key does not exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrQuota means the backing store refused a write (size limit,
	// privacy mode). Callers warn and carry on; the editing flow never
	// crashes on a storage failure.
	ErrQuota = errors.New("storage quota exceeded")
)

// KV is the flat string key-value store backing snapshots and autosaves.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
