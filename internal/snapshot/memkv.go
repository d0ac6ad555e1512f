package snapshot

import "sync"

// MemKV is an in-memory KV store. Quota, when non-zero, bounds the total
// stored bytes so storage-failure paths can be exercised.
type MemKV struct {
	mu    sync.Mutex
	data  map[string]string
	Quota int
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (m *MemKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Quota > 0 {
		total := len(value)
		for k, v := range m.data {
			if k != key {
				total += len(v)
			}
		}
		if total > m.Quota {
			return ErrQuota
		}
	}
	m.data[key] = value
	return nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
