package vaa

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// BodyHeaderLength is the size of the fixed part of a VAA body:
// timestamp(4) nonce(4) emitter chain(2) emitter address(32) sequence(8) consistency level(1).
const BodyHeaderLength = 51

// Body is the signed portion of a VAA. Its hash is the canonical identity of the message.
type Body struct {
	Timestamp        uint32
	Nonce            uint32
	EmitterChain     vaaLib.ChainID
	EmitterAddress   vaaLib.Address
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

// Bytes serializes the body in wire order. All integers are big-endian.
func (b *Body) Bytes() []byte {
	buf := make([]byte, BodyHeaderLength+len(b.Payload))
	binary.BigEndian.PutUint32(buf[0:4], b.Timestamp)
	binary.BigEndian.PutUint32(buf[4:8], b.Nonce)
	binary.BigEndian.PutUint16(buf[8:10], uint16(b.EmitterChain))
	copy(buf[10:42], b.EmitterAddress[:])
	binary.BigEndian.PutUint64(buf[42:50], b.Sequence)
	buf[50] = b.ConsistencyLevel
	copy(buf[BodyHeaderLength:], b.Payload)
	return buf
}

// MessageHash returns keccak256 of the serialized body.
func (b *Body) MessageHash() common.Hash {
	return crypto.Keccak256Hash(b.Bytes())
}

// Digest returns the value guardians sign: keccak256(MessageHash).
func (b *Body) Digest() common.Hash {
	return SigningDigest(b.MessageHash())
}

// SigningDigest hashes a message hash once more to obtain the guardian signing digest.
func SigningDigest(messageHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(messageHash.Bytes())
}

// MessageID renders the emitter/sequence triple the same way the Wormhole SDK does.
func (b *Body) MessageID() string {
	return fmt.Sprintf("%d/%s/%d", uint16(b.EmitterChain), b.EmitterAddress.String(), b.Sequence)
}

// ParseBody decodes a serialized body.
func ParseBody(data []byte) (*Body, error) {
	if len(data) < BodyHeaderLength {
		return nil, fmt.Errorf("%w: body too short: %d bytes", ErrMalformedVAA, len(data))
	}

	b := &Body{
		Timestamp:        binary.BigEndian.Uint32(data[0:4]),
		Nonce:            binary.BigEndian.Uint32(data[4:8]),
		EmitterChain:     vaaLib.ChainID(binary.BigEndian.Uint16(data[8:10])),
		Sequence:         binary.BigEndian.Uint64(data[42:50]),
		ConsistencyLevel: data[50],
	}
	copy(b.EmitterAddress[:], data[10:42])
	b.Payload = append([]byte{}, data[BodyHeaderLength:]...)

	return b, nil
}
