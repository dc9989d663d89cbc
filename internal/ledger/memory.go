package ledger

import (
	"context"
	"sync"

	"github.com/wormhole-demo/corebridge/internal/metrics"
)

// MemoryStore keeps the ledger in a map. It is used by tests and by nodes
// that do not need the state to survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (s *MemoryStore) Apply(ctx context.Context, ops ...Op) error {
	if err := validate(ops); err != nil {
		return err
	}
	defer metrics.ObserveApply("memory")()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, writes, err := plan(ctx, func(_ context.Context, key []byte) ([]byte, bool, error) {
		v, ok := s.data[string(key)]
		return v, ok, nil
	}, ops)
	if err != nil {
		return err
	}

	for _, k := range order {
		if v := writes[k]; v == nil {
			delete(s.data, k)
		} else {
			s.data[k] = append([]byte{}, v...)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
