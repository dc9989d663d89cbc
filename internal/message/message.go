// Package message publishes outbound messages for the guardians to observe.
package message

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/vaa"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrInvalidMessageStatus = errors.New("invalid message status")
	ErrAuthorityMismatch    = errors.New("emitter authority mismatch")
	ErrDataOverflow         = errors.New("data overflow")
	ErrEmptyData            = errors.New("empty data")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrPayloadSizeMismatch  = errors.New("payload size mismatch")
)

type Status uint8

const (
	StatusWriting Status = iota + 1
	StatusFinalized
	StatusPublished
)

func (s Status) String() string {
	switch s {
	case StatusWriting:
		return "writing"
	case StatusFinalized:
		return "finalized"
	case StatusPublished:
		return "published"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Message is a draft or published outbound message.
type Message struct {
	ID               uuid.UUID
	Status           Status
	EmitterAuthority vaaLib.Address
	Emitter          vaaLib.Address
	PayloadLength    uint32
	Payload          []byte
	Nonce            uint32
	ConsistencyLevel uint8
	Sequence         uint64
	SubmissionTime   uint32
	Unreliable       bool
}

// Posted is a published message: the body guardians will sign and its identity.
type Posted struct {
	ID          uuid.UUID
	MessageHash common.Hash
	Body        vaa.Body
	Unreliable  bool
}

func (m *Message) body(chain vaaLib.ChainID) vaa.Body {
	return vaa.Body{
		Timestamp:        m.SubmissionTime,
		Nonce:            m.Nonce,
		EmitterChain:     chain,
		EmitterAddress:   m.Emitter,
		Sequence:         m.Sequence,
		ConsistencyLevel: m.ConsistencyLevel,
		Payload:          m.Payload,
	}
}

func (m *Message) checkAuthority(caller vaaLib.Address) error {
	if caller != m.EmitterAuthority {
		return fmt.Errorf("%w: message %s", ErrAuthorityMismatch, m.ID)
	}
	return nil
}

func (m *Message) checkStatus(allowed ...Status) error {
	for _, s := range allowed {
		if m.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: message %s is %s", ErrInvalidMessageStatus, m.ID, m.Status)
}
