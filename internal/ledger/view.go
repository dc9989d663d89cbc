package ledger

import (
	"bytes"
	"context"
	"errors"
)

// reader is the minimal read access a backend offers to the batch planner.
type reader func(ctx context.Context, key []byte) ([]byte, bool, error)

// plan checks every op's precondition against the state as modified by the
// preceding ops of the same batch and returns the resulting writes. A nil
// value in the result means delete.
func plan(ctx context.Context, read reader, ops []Op) ([]string, map[string][]byte, error) {
	overlay := make(map[string][]byte, len(ops))
	order := make([]string, 0, len(ops))

	current := func(key []byte) ([]byte, bool, error) {
		if v, ok := overlay[string(key)]; ok {
			return v, v != nil, nil
		}
		return read(ctx, key)
	}

	for _, op := range ops {
		value, exists, err := current(op.Key)
		if err != nil {
			return nil, nil, err
		}

		switch op.Kind {
		case OpCreate:
			if exists {
				return nil, nil, &OpError{Kind: op.Kind, Key: op.Key, Err: ErrKeyExists}
			}
		case OpSwap:
			if !exists || !bytes.Equal(value, op.Old) {
				return nil, nil, &OpError{Kind: op.Kind, Key: op.Key, Err: ErrConflict}
			}
		}

		k := string(op.Key)
		if _, seen := overlay[k]; !seen {
			order = append(order, k)
		}
		if op.Kind == OpDelete {
			overlay[k] = nil
		} else {
			overlay[k] = nonNil(op.Value)
		}
	}

	return order, overlay, nil
}

func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
