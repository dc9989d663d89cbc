package guardian

import (
	"context"
	"errors"
	"fmt"

	"github.com/wormhole-demo/corebridge/internal/ledger"
)

type currentIndex struct {
	Index uint32
}

// Registry reads and installs guardian sets in the ledger.
type Registry struct {
	store ledger.Store
}

func NewRegistry(store ledger.Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Get(ctx context.Context, index uint32) (*Set, error) {
	set, _, err := r.load(ctx, index)
	return set, err
}

func (r *Registry) load(ctx context.Context, index uint32) (*Set, []byte, error) {
	set, raw, err := ledger.Load[Set](ctx, r.store, ledger.GuardianSetKey(index))
	if ledger.IsNotFound(err) {
		return nil, nil, fmt.Errorf("%w: index %d", ErrGuardianSetNotFound, index)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load guardian set %d: %w", index, err)
	}
	return set, raw, nil
}

func (r *Registry) CurrentIndex(ctx context.Context) (uint32, error) {
	cur, _, err := r.loadCurrent(ctx)
	if err != nil {
		return 0, err
	}
	return cur.Index, nil
}

func (r *Registry) loadCurrent(ctx context.Context) (*currentIndex, []byte, error) {
	cur, raw, err := ledger.Load[currentIndex](ctx, r.store, ledger.CurrentGuardianSetKey())
	if ledger.IsNotFound(err) {
		return nil, nil, fmt.Errorf("%w: no current guardian set", ErrGuardianSetNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load current guardian set index: %w", err)
	}
	return cur, raw, nil
}

func (r *Registry) Current(ctx context.Context) (*Set, error) {
	index, err := r.CurrentIndex(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, index)
}

// IsActive reports whether the set with the given index is active at time at.
func (r *Registry) IsActive(ctx context.Context, index uint32, at uint32) (bool, error) {
	set, err := r.Get(ctx, index)
	if err != nil {
		return false, err
	}
	return set.IsActive(at), nil
}

// InitializeOps returns the ops installing the genesis set as current.
func (r *Registry) InitializeOps(set Set) ([]ledger.Op, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	set.ExpirationTime = 0

	setRaw, err := ledger.Encode(set)
	if err != nil {
		return nil, err
	}
	curRaw, err := ledger.Encode(currentIndex{Index: set.Index})
	if err != nil {
		return nil, err
	}

	return []ledger.Op{
		ledger.Create(ledger.CurrentGuardianSetKey(), curRaw),
		ledger.Create(ledger.GuardianSetKey(set.Index), setRaw),
	}, nil
}

// Initialize installs the genesis guardian set. It fails if a current set exists.
func (r *Registry) Initialize(ctx context.Context, set Set) error {
	ops, err := r.InitializeOps(set)
	if err != nil {
		return err
	}
	if err = r.store.Apply(ctx, ops...); err != nil {
		if errors.Is(err, ledger.ErrKeyExists) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("initialize guardian set: %w", err)
	}
	return nil
}

// InstallOps returns the ops replacing the current set with newSet: the
// current set expires at now+ttl and newSet becomes current without expiry.
// newSet.Index must be exactly one above the current index.
func (r *Registry) InstallOps(ctx context.Context, newSet Set, now, ttl uint32) ([]ledger.Op, error) {
	cur, curRaw, err := r.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if newSet.Index != cur.Index+1 {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidGuardianSetIndex, cur.Index+1, newSet.Index)
	}
	if err = newSet.Validate(); err != nil {
		return nil, err
	}

	old, oldRaw, err := r.load(ctx, cur.Index)
	if err != nil {
		return nil, err
	}
	old.ExpirationTime = now + ttl

	newSet.CreationTime = now
	newSet.ExpirationTime = 0

	updatedOld, err := ledger.Encode(old)
	if err != nil {
		return nil, err
	}
	created, err := ledger.Encode(newSet)
	if err != nil {
		return nil, err
	}
	nextCur, err := ledger.Encode(currentIndex{Index: newSet.Index})
	if err != nil {
		return nil, err
	}

	return []ledger.Op{
		ledger.Swap(ledger.GuardianSetKey(old.Index), oldRaw, updatedOld),
		ledger.Create(ledger.GuardianSetKey(newSet.Index), created),
		ledger.Swap(ledger.CurrentGuardianSetKey(), curRaw, nextCur),
	}, nil
}

// Install applies InstallOps on its own.
func (r *Registry) Install(ctx context.Context, newSet Set, now, ttl uint32) error {
	ops, err := r.InstallOps(ctx, newSet, now, ttl)
	if err != nil {
		return err
	}
	if err = r.store.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("install guardian set %d: %w", newSet.Index, err)
	}
	return nil
}
