package memstore

import (
	"sync"

	"github.com/jrsteele09/go-session-manager/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is an in-memory storage.Store, suitable for tests and for hosts
// that do not need sessions to survive a restart.
type Store struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", storage.NotFoundErr
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values[key] = value
	return nil
}

func (s *Store) Remove(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.values, key)
	return nil
}
