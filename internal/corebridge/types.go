package corebridge

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

// Config is the bridge-wide configuration record.
type Config struct {
	// GuardianSetTTL is how long, in seconds, a superseded guardian set keeps signing.
	GuardianSetTTL uint32
	// MessageFee is charged for every posted message.
	MessageFee uint64
}

// SignatureSet records which guardians of a set have signed a message hash.
type SignatureSet struct {
	MessageHash      common.Hash
	GuardianSetIndex uint32
	Verified         []bool
}

func (s *SignatureSet) key() []byte {
	return ledger.SignatureSetKey(s.MessageHash, s.GuardianSetIndex)
}

// PostedVAA is a VAA body whose signatures reached quorum.
type PostedVAA struct {
	GuardianSetIndex uint32
	MessageHash      common.Hash
	Body             vaa.Body
}

func (p *PostedVAA) SignatureSetKey() []byte {
	return ledger.SignatureSetKey(p.MessageHash, p.GuardianSetIndex)
}

func (p *PostedVAA) Payload() []byte {
	return p.Body.Payload
}

// PayloadParser interprets the opaque payload of a posted VAA.
type PayloadParser[T any] func(payload []byte) (T, error)

// DecodePayload returns a typed view of the posted VAA's payload.
func DecodePayload[T any](p *PostedVAA, parse PayloadParser[T]) (T, error) {
	return parse(p.Body.Payload)
}
