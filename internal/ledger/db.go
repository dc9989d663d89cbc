package ledger

import (
	"context"
	"fmt"
	"sync"

	dbm "github.com/cosmos/cosmos-db"

	"github.com/wormhole-demo/corebridge/internal/metrics"
)

// DBStore persists the ledger in a cosmos-db key-value database (goleveldb on disk).
// Batches are serialized by a store mutex and committed with WriteSync.
type DBStore struct {
	mu sync.Mutex
	db dbm.DB
}

// OpenDBStore opens (or creates) a goleveldb database named name inside dir.
func OpenDBStore(name, dir string) (*DBStore, error) {
	db, err := dbm.NewDB(name, dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("open ledger database %s in %s: %w", name, dir, err)
	}
	return NewDBStore(db), nil
}

// NewDBStore wraps an already opened database, e.g. dbm.NewMemDB().
func NewDBStore(db dbm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Get(_ context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *DBStore) Apply(ctx context.Context, ops ...Op) error {
	if err := validate(ops); err != nil {
		return err
	}
	defer metrics.ObserveApply("cosmos-db")()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, writes, err := plan(ctx, func(_ context.Context, key []byte) ([]byte, bool, error) {
		v, err := s.db.Get(key)
		if err != nil {
			return nil, false, fmt.Errorf("ledger get: %w", err)
		}
		return v, v != nil, nil
	}, ops)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, k := range order {
		if v := writes[k]; v == nil {
			err = batch.Delete([]byte(k))
		} else {
			err = batch.Set([]byte(k), v)
		}
		if err != nil {
			return fmt.Errorf("ledger batch: %w", err)
		}
	}

	if err := batch.WriteSync(); err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}

func (s *DBStore) Close() error {
	return s.db.Close()
}
