package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local development.
// It honours TTL expiry lazily on read.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]memoryDoc
	locks map[string]bool
	ttl   time.Duration
}

type memoryDoc struct {
	raw     []byte
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		docs:  make(map[string]memoryDoc),
		locks: make(map[string]bool),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok || time.Now().After(doc.expires) {
		delete(m.docs, key)
		return New(key), nil
	}
	var sess Session
	if err := json.Unmarshal(doc.raw, &sess); err != nil {
		return New(key), nil
	}
	return &sess, nil
}

func (m *MemoryStore) Put(_ context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[sess.Sender] = memoryDoc{raw: raw, expires: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.docs))
	for k, doc := range m.docs {
		if time.Now().After(doc.expires) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemoryStore) Lock(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return nil, ErrLocked
	}
	m.locks[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.locks, key)
	}, nil
}
