package sessions

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryStore implementa Store usando un map en memoria.
// Se usa en desarrollo/testing y como fallback cuando Redis no responde.
// No es durable ni compartido entre instancias.
type memoryStore struct {
	prefix string
	data   map[string]memoryEntry
	mu     sync.RWMutex
	closed bool
	hits   int64
	misses int64
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
	noExpire  bool
}

// NewMemory crea un Store en memoria.
func NewMemory(prefix string) *memoryStore {
	return &memoryStore{
		prefix: prefix,
		data:   make(map[string]memoryEntry),
	}
}

func (s *memoryStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	// El prefix configurado suele traer el ":" final; no se duplica.
	if strings.HasSuffix(s.prefix, ":") {
		return s.prefix + k
	}
	return s.prefix + ":" + k
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	entry, ok := s.data[s.key(key)]
	if !ok {
		s.misses++
		return "", ErrNotFound
	}

	// Verificar expiración
	if !entry.noExpire && time.Now().After(entry.expiresAt) {
		s.misses++
		return "", ErrNotFound
	}

	s.hits++
	return entry.value, nil
}

func (s *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	entry := memoryEntry{
		value:    value,
		noExpire: ttl == 0,
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.data[s.key(key)] = entry
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.data, s.key(key))
	return nil
}

func (s *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	entry, ok := s.data[s.key(key)]
	if !ok {
		return false, nil
	}

	if !entry.noExpire && time.Now().After(entry.expiresAt) {
		return false, nil
	}

	return true, nil
}

func (s *memoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	entry, ok := s.data[s.key(key)]
	if !ok {
		return 0, ErrNotFound
	}
	if entry.noExpire {
		return 0, nil
	}

	d := time.Until(entry.expiresAt)
	if d <= 0 {
		return 0, ErrNotFound
	}
	return d, nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marca el store como cerrado. El map queda vacío pero allocado:
// cualquier uso posterior devuelve ErrClosed en lugar de un panic.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = make(map[string]memoryEntry)
	return nil
}

func (s *memoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Contar solo keys no expiradas
	var count int64
	now := time.Now()
	for _, entry := range s.data {
		if entry.noExpire || now.Before(entry.expiresAt) {
			count++
		}
	}

	return Stats{
		Driver: "memory",
		Keys:   count,
		Hits:   s.hits,
		Misses: s.misses,
	}, nil
}

// Cleanup elimina entradas expiradas. Llamar periódicamente.
func (s *memoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, entry := range s.data {
		if !entry.noExpire && now.After(entry.expiresAt) {
			delete(s.data, k)
		}
	}
}
