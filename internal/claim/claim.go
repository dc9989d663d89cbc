// Package claim provides the at-most-once gate for consuming a VAA.
package claim

import (
	"context"
	"errors"
	"fmt"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/metrics"
)

var ErrAlreadyClaimed = errors.New("already claimed")

// Key identifies the message a claim is taken for.
type Key struct {
	EmitterChain   vaaLib.ChainID
	EmitterAddress vaaLib.Address
	Sequence       uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%d", uint16(k.EmitterChain), k.EmitterAddress.String(), k.Sequence)
}

func (k Key) ledgerKey() []byte {
	return ledger.ClaimKey(k.EmitterAddress, uint16(k.EmitterChain), k.Sequence)
}

// Claim is the persisted record. Completion is monotonic.
type Claim struct {
	Key        Key
	IsComplete bool
}

type record struct {
	IsComplete bool
}

// Tracker creates and completes claims in the ledger.
type Tracker struct {
	store ledger.Store
}

func NewTracker(store ledger.Store) *Tracker {
	return &Tracker{store: store}
}

// CreateOp returns the op taking the claim, so a handler can bundle it with
// its side effects in one batch. Pass the batch error through TranslateError.
func CreateOp(key Key, complete bool) ledger.Op {
	return ledger.Create(key.ledgerKey(), ledger.MustEncode(record{IsComplete: complete}))
}

// TranslateError turns a failed creation of the claim for key into
// ErrAlreadyClaimed. Other errors are returned unchanged.
func TranslateError(err error, key Key) error {
	if !errors.Is(err, ledger.ErrKeyExists) {
		return err
	}
	failed, ok := ledger.FailedKey(err)
	if !ok || string(failed) != string(key.ledgerKey()) {
		return err
	}
	return fmt.Errorf("%w: %s", ErrAlreadyClaimed, key)
}

// Claim takes the claim for key. A second claim of the same key fails with ErrAlreadyClaimed.
func (t *Tracker) Claim(ctx context.Context, key Key) (*Claim, error) {
	err := t.store.Apply(ctx, CreateOp(key, false))
	metrics.Claims.WithLabelValues(metrics.Result(TranslateError(err, key), ErrAlreadyClaimed)).Inc()
	if err != nil {
		if err = TranslateError(err, key); errors.Is(err, ErrAlreadyClaimed) {
			return nil, err
		}
		return nil, fmt.Errorf("claim %s: %w", key, err)
	}
	return &Claim{Key: key}, nil
}

// Complete marks the claim complete. Completing a complete claim is a no-op.
func (t *Tracker) Complete(ctx context.Context, key Key) (*Claim, error) {
	rec, raw, err := ledger.Load[record](ctx, t.store, key.ledgerKey())
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", key, err)
	}
	if rec.IsComplete {
		return &Claim{Key: key, IsComplete: true}, nil
	}

	updated := ledger.MustEncode(record{IsComplete: true})
	if err = t.store.Apply(ctx, ledger.Swap(key.ledgerKey(), raw, updated)); err != nil {
		return nil, fmt.Errorf("complete claim %s: %w", key, err)
	}
	return &Claim{Key: key, IsComplete: true}, nil
}

// Get returns ledger.ErrNotFound if the key was never claimed.
func (t *Tracker) Get(ctx context.Context, key Key) (*Claim, error) {
	rec, _, err := ledger.Load[record](ctx, t.store, key.ledgerKey())
	if err != nil {
		return nil, err
	}
	return &Claim{Key: key, IsComplete: rec.IsComplete}, nil
}
