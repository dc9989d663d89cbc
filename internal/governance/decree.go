// Package governance applies guardian-signed governance decrees.
package governance

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var (
	ErrInvalidGovernanceAction  = errors.New("invalid governance action")
	ErrInvalidGovernanceEmitter = errors.New("invalid governance emitter")
	ErrGuardianSetMismatch      = errors.New("guardian set mismatch")
	ErrNumericOverflow          = errors.New("numeric overflow")
	ErrInvalidTargetChain       = errors.New("invalid target chain")
	ErrChainAlreadyRegistered   = errors.New("chain already registered")
)

// decreeHeaderLength is module(32) + action(1) + target chain(2).
const decreeHeaderLength = 35

// reservedLength is the zero padding in front of u64 amounts, which the
// decrees encode as u256.
const reservedLength = 24

// Module is the 32-byte, left zero-padded module name of a decree.
type Module [32]byte

func moduleName(name string) Module {
	var m Module
	copy(m[len(m)-len(name):], name)
	return m
}

var (
	ModuleCore        = moduleName("Core")
	ModuleTokenBridge = moduleName("TokenBridge")
)

func (m Module) String() string {
	return strings.TrimLeft(string(m[:]), "\x00")
}

type Action uint8

const (
	ActionContractUpgrade   Action = 1
	ActionGuardianSetUpdate Action = 2
	ActionSetMessageFee     Action = 3
	ActionTransferFees      Action = 4

	ActionRegisterChain Action = 1
)

// Decree is a parsed governance payload.
type Decree struct {
	Module      Module
	Action      Action
	TargetChain vaaLib.ChainID
	Fields      []byte
}

// ActionName renders the action for logs and metrics.
func (d *Decree) ActionName() string {
	switch {
	case d.Module == ModuleCore && d.Action == ActionContractUpgrade:
		return "ContractUpgrade"
	case d.Module == ModuleCore && d.Action == ActionGuardianSetUpdate:
		return "GuardianSetUpdate"
	case d.Module == ModuleCore && d.Action == ActionSetMessageFee:
		return "SetMessageFee"
	case d.Module == ModuleCore && d.Action == ActionTransferFees:
		return "TransferFees"
	case d.Module == ModuleTokenBridge && d.Action == ActionRegisterChain:
		return "RegisterChain"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(d.Action))
	}
}

// ParseDecree splits a governance payload into header and action fields.
func ParseDecree(payload []byte) (*Decree, error) {
	if len(payload) < decreeHeaderLength {
		return nil, fmt.Errorf("%w: payload too short: %d bytes", ErrInvalidGovernanceAction, len(payload))
	}

	d := &Decree{
		Action:      Action(payload[32]),
		TargetChain: vaaLib.ChainID(binary.BigEndian.Uint16(payload[33:35])),
		Fields:      payload[decreeHeaderLength:],
	}
	copy(d.Module[:], payload[:32])
	return d, nil
}

// Bytes encodes the decree as a governance payload.
func (d *Decree) Bytes() []byte {
	buf := make([]byte, 0, decreeHeaderLength+len(d.Fields))
	buf = append(buf, d.Module[:]...)
	buf = append(buf, byte(d.Action))
	buf = binary.BigEndian.AppendUint16(buf, uint16(d.TargetChain))
	return append(buf, d.Fields...)
}

func (d *Decree) expectLength(n int) error {
	if len(d.Fields) != n {
		return fmt.Errorf("%w: %s expects %d bytes of fields, got %d", ErrInvalidGovernanceAction, d.ActionName(), n, len(d.Fields))
	}
	return nil
}

// readAmount reads a u256 that must fit into a u64.
func readAmount(field []byte) (uint64, error) {
	if !bytes.Equal(field[:reservedLength], make([]byte, reservedLength)) {
		return 0, fmt.Errorf("%w: %w: non-zero reserved bytes", ErrInvalidGovernanceAction, ErrNumericOverflow)
	}
	return binary.BigEndian.Uint64(field[reservedLength:32]), nil
}

func writeAmount(buf []byte, amount uint64) []byte {
	buf = append(buf, make([]byte, reservedLength)...)
	return binary.BigEndian.AppendUint64(buf, amount)
}

// GuardianSetUpdate replaces the current guardian set.
type GuardianSetUpdate struct {
	NewIndex uint32
	Keys     []common.Address
}

func (d *Decree) GuardianSetUpdate() (*GuardianSetUpdate, error) {
	if len(d.Fields) < 5 {
		return nil, fmt.Errorf("%w: guardian set update too short", ErrInvalidGovernanceAction)
	}
	n := int(d.Fields[4])
	if err := d.expectLength(5 + n*common.AddressLength); err != nil {
		return nil, err
	}

	u := &GuardianSetUpdate{
		NewIndex: binary.BigEndian.Uint32(d.Fields[0:4]),
		Keys:     make([]common.Address, n),
	}
	for i := range u.Keys {
		start := 5 + i*common.AddressLength
		u.Keys[i] = common.BytesToAddress(d.Fields[start : start+common.AddressLength])
	}
	return u, nil
}

func (u *GuardianSetUpdate) Fields() []byte {
	buf := binary.BigEndian.AppendUint32(nil, u.NewIndex)
	buf = append(buf, uint8(len(u.Keys)))
	for _, k := range u.Keys {
		buf = append(buf, k.Bytes()...)
	}
	return buf
}

// SetMessageFee changes the fee charged per published message.
type SetMessageFee struct {
	Fee uint64
}

func (d *Decree) SetMessageFee() (*SetMessageFee, error) {
	if err := d.expectLength(32); err != nil {
		return nil, err
	}
	fee, err := readAmount(d.Fields)
	if err != nil {
		return nil, err
	}
	return &SetMessageFee{Fee: fee}, nil
}

func (s *SetMessageFee) Fields() []byte {
	return writeAmount(nil, s.Fee)
}

// TransferFees pays collected fees out to a recipient.
type TransferFees struct {
	Amount    uint64
	Recipient vaaLib.Address
}

func (d *Decree) TransferFees() (*TransferFees, error) {
	if err := d.expectLength(64); err != nil {
		return nil, err
	}
	amount, err := readAmount(d.Fields[:32])
	if err != nil {
		return nil, err
	}
	t := &TransferFees{Amount: amount}
	copy(t.Recipient[:], d.Fields[32:64])
	return t, nil
}

func (t *TransferFees) Fields() []byte {
	return append(writeAmount(nil, t.Amount), t.Recipient[:]...)
}

// RegisterChain registers the token bridge contract of a foreign chain.
type RegisterChain struct {
	Chain    vaaLib.ChainID
	Contract vaaLib.Address
}

func (d *Decree) RegisterChain() (*RegisterChain, error) {
	if err := d.expectLength(34); err != nil {
		return nil, err
	}
	r := &RegisterChain{Chain: vaaLib.ChainID(binary.BigEndian.Uint16(d.Fields[0:2]))}
	copy(r.Contract[:], d.Fields[2:34])
	return r, nil
}

func (r *RegisterChain) Fields() []byte {
	buf := binary.BigEndian.AppendUint16(nil, uint16(r.Chain))
	return append(buf, r.Contract[:]...)
}
