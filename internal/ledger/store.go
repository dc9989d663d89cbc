// Package ledger is the byte-keyed persistent store the bridge keeps its records in.
//
// Every state transition of the bridge is expressed as a list of Ops applied
// atomically: either all of them take effect or none does. Create and Swap give
// the create-if-absent and compare-and-swap primitives the replay and sequence
// guarantees are built on.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrKeyExists = errors.New("key already exists")
	ErrConflict  = errors.New("concurrent modification")
)

// OpKind selects the semantics of an Op.
type OpKind uint8

const (
	// OpCreate writes the value only if the key is absent.
	OpCreate OpKind = iota + 1
	// OpSwap replaces the value only if the current value equals Old.
	OpSwap
	// OpPut writes the value unconditionally.
	OpPut
	// OpDelete removes the key. Deleting a missing key is not an error.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpSwap:
		return "swap"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op is a single mutation inside an atomic batch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Old   []byte
	Value []byte
}

func Create(key, value []byte) Op {
	return Op{Kind: OpCreate, Key: key, Value: value}
}

func Swap(key, old, value []byte) Op {
	return Op{Kind: OpSwap, Key: key, Old: old, Value: value}
}

func Put(key, value []byte) Op {
	return Op{Kind: OpPut, Key: key, Value: value}
}

func Delete(key []byte) Op {
	return Op{Kind: OpDelete, Key: key}
}

// OpError reports which op of a batch failed its precondition.
type OpError struct {
	Kind OpKind
	Key  []byte
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("ledger %s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// FailedKey returns the key of the op that failed, if err carries one.
func FailedKey(err error) ([]byte, bool) {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Key, true
	}
	return nil, false
}

// Store is implemented by every ledger backend.
type Store interface {
	// Get returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Apply executes the ops atomically in order.
	Apply(ctx context.Context, ops ...Op) error
	Close() error
}

func validate(ops []Op) error {
	if len(ops) == 0 {
		return errors.New("ledger: empty batch")
	}
	for _, op := range ops {
		if len(op.Key) == 0 {
			return fmt.Errorf("ledger: %s with empty key", op.Kind)
		}
		switch op.Kind {
		case OpCreate, OpSwap, OpPut, OpDelete:
		default:
			return fmt.Errorf("ledger: unknown op kind %d", op.Kind)
		}
	}
	return nil
}
