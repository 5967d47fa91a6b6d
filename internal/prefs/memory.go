package prefs

// MemoryStore is an in-memory Store for tests and the replay harness.
type MemoryStore struct {
	values map[string]int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int64)}
}

func (m *MemoryStore) GetInt(key string) (int, error) {
	return int(m.values[key]), nil
}

func (m *MemoryStore) SetInt(key string, value int) error {
	m.values[key] = int64(value)
	return nil
}

func (m *MemoryStore) GetInt64(key string) (int64, error) {
	return m.values[key], nil
}

func (m *MemoryStore) SetInt64(key string, value int64) error {
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
