package ledger

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Encode serializes a record with borsh.
func Encode(v interface{}) ([]byte, error) {
	data, err := bin.MarshalBorsh(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// MustEncode is Encode for record types that cannot fail to serialize.
func MustEncode(v interface{}) []byte {
	data, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode deserializes a borsh record into v.
func Decode(data []byte, v interface{}) error {
	if err := bin.UnmarshalBorsh(v, data); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// Load reads and decodes the record at key. The raw bytes are returned as
// well so the caller can Swap against them. The borsh decoder aliases byte
// slices into its input, so the record is decoded from a copy of raw.
func Load[T any](ctx context.Context, store Store, key []byte) (*T, []byte, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	record := new(T)
	if err := Decode(bytes.Clone(raw), record); err != nil {
		return nil, nil, err
	}
	return record, raw, nil
}
