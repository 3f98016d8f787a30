package progress

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("not found")

// Entry is the persisted form of a collection: when it happened (epoch
// millis) and the points it awarded.
type Entry struct {
	When   int64 `json:"when"`
	Points int   `json:"points"`
}

// Store is the flat key -> entry mapping that holds progress. Keys are
// "{questID}:{artefactID}".
type Store interface {
	// Get returns ErrNotFound when key has no entry.
	Get(ctx context.Context, key string) (Entry, error)
	// PutIfAbsent stores e unless key already has an entry. It returns the
	// entry now stored under key and whether this call created it.
	PutIfAbsent(ctx context.Context, key string, e Entry) (Entry, bool, error)
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	All(ctx context.Context) (map[string]Entry, error)
}

// IdentityStore persists the installation's player identity.
type IdentityStore interface {
	// LoadIdentity returns ErrNotFound before the first SaveIdentity.
	LoadIdentity(ctx context.Context) (string, error)
	SaveIdentity(ctx context.Context, id string) error
}

// MemoryStore keeps progress in a map. Useful for tests and ephemeral runs.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]Entry
	identity string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) PutIfAbsent(_ context.Context, key string, e Entry) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok {
		return existing, false, nil
	}
	m.entries[key] = e
	return e, true, nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) All(_ context.Context) (map[string]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) LoadIdentity(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == "" {
		return "", ErrNotFound
	}
	return m.identity, nil
}

func (m *MemoryStore) SaveIdentity(_ context.Context, id string) error {
	m.mu.Lock()
	m.identity = id
	m.mu.Unlock()
	return nil
}

// sortedKeys returns the keys of entries in lexical order.
func sortedKeys(entries map[string]Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
