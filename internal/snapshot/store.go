package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Persisted layout, one entry per snapshot plus three bookkeeping keys:
//   cv-state-<name|timestamp>  full State record (body)
//   cv-saves-list              index: key -> {name, timestamp}
//   cv-last-save               most recent snapshot key
//   cv-edited-content          last auto-saved full document
const (
	bodyKeyPrefix = "cv-state-"
	indexKey      = "cv-saves-list"
	lastSaveKey   = "cv-last-save"
	autosaveKey   = "cv-edited-content"
)

// isoFormat keeps timestamps lexicographically ordered, so listing can sort
// by plain string comparison.
const isoFormat = "2006-01-02T15:04:05.000Z"

// State is one stored snapshot body.
type State struct {
	HTML      string `json:"html"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Key       string `json:"key"`
}

// Meta is one index entry; listing never loads snapshot bodies.
type Meta struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

type indexEntry struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

// Store manages named, timestamped full-document snapshots on a KV store.
type Store struct {
	kv  KV
	now func() time.Time
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Save writes a new snapshot and records it as most recent. Older snapshots
// are never overwritten or removed as a side effect.
func (s *Store) Save(name, html string) (string, error) {
	ts := s.now().UTC()
	timestamp := ts.Format(isoFormat)

	key := bodyKeyPrefix + timestamp
	if name != "" {
		key = bodyKeyPrefix + name
	} else {
		name = "Zapis z " + ts.Local().Format("02.01.2006, 15:04")
	}

	state := State{HTML: html, Timestamp: timestamp, Name: name, Key: key}
	body, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(key, string(body)); err != nil {
		return "", fmt.Errorf("save snapshot body: %w", err)
	}

	index, err := s.readIndex()
	if err != nil {
		return "", err
	}
	index[key] = indexEntry{Name: name, Timestamp: timestamp}
	if err := s.writeIndex(index); err != nil {
		return "", err
	}
	if err := s.kv.Set(lastSaveKey, key); err != nil {
		return "", fmt.Errorf("record last save: %w", err)
	}
	return key, nil
}

// List returns snapshot metadata newest first, reading only the index.
func (s *Store) List() ([]Meta, error) {
	index, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	out := make([]Meta, 0, len(index))
	for key, e := range index {
		out = append(out, Meta{Key: key, Name: e.Name, Timestamp: e.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out, nil
}

// Get loads one snapshot body.
func (s *Store) Get(key string) (State, error) {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, ErrNotFound
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return state, nil
}

// Delete removes the snapshot body and its index entry, clearing the
// most-recent marker when it pointed at the deleted key.
func (s *Store) Delete(key string) error {
	index, err := s.readIndex()
	if err != nil {
		return err
	}
	delete(index, key)
	if err := s.kv.Delete(key); err != nil {
		return err
	}
	if err := s.writeIndex(index); err != nil {
		return err
	}
	if last, ok, _ := s.kv.Get(lastSaveKey); ok && last == key {
		if err := s.kv.Delete(lastSaveKey); err != nil {
			return err
		}
	}
	return nil
}

// LastSaveKey returns the most recent snapshot key, if any.
func (s *Store) LastSaveKey() (string, bool) {
	key, ok, err := s.kv.Get(lastSaveKey)
	if err != nil || key == "" {
		return "", false
	}
	return key, ok
}

// SetAutosave overwrites the last auto-saved full document.
func (s *Store) SetAutosave(html string) error {
	return s.kv.Set(autosaveKey, html)
}

// Autosave returns the last auto-saved full document, if any.
func (s *Store) Autosave() (string, bool, error) {
	return s.kv.Get(autosaveKey)
}

func (s *Store) readIndex() (map[string]indexEntry, error) {
	raw, ok, err := s.kv.Get(indexKey)
	if err != nil {
		return nil, err
	}
	index := make(map[string]indexEntry)
	if !ok || raw == "" {
		return index, nil
	}
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		// corrupted index: start over rather than blocking saves
		return make(map[string]indexEntry), nil
	}
	return index, nil
}

func (s *Store) writeIndex(index map[string]indexEntry) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return err
	}
	if err := s.kv.Set(indexKey, string(raw)); err != nil {
		return fmt.Errorf("update saves index: %w", err)
	}
	return nil
}
