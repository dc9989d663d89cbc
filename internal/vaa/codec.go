package vaa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	// SupportedVersion is the only VAA version accepted by Parse.
	SupportedVersion uint8 = 1

	// SignatureLength is the size of one encoded signature: guardian index + r + s + v.
	SignatureLength = 66

	headerLength = 6
)

// ErrMalformedVAA is returned for any violation of the VAA wire format.
var ErrMalformedVAA = errors.New("malformed VAA")

// Signature is a guardian signature over the body digest.
type Signature struct {
	GuardianIndex uint8
	Signature     [65]byte
}

// VAA is a parsed, not yet verified, VAA.
type VAA struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []Signature
	Body
}

// Parse decodes a v1 VAA:
//
//	version:u8 ∥ guardian_set_index:u32 ∥ n:u8 ∥ n*{index:u8, r:32, s:32, v:u8} ∥ body
func Parse(data []byte) (*VAA, error) {
	if len(data) < headerLength {
		return nil, fmt.Errorf("%w: VAA too short: %d bytes", ErrMalformedVAA, len(data))
	}

	version := data[0]
	if version != SupportedVersion {
		return nil, fmt.Errorf("%w: unsupported VAA version: %d", ErrMalformedVAA, version)
	}

	guardianSetIndex := binary.BigEndian.Uint32(data[1:5])
	signatureCount := int(data[5])

	signaturesEnd := headerLength + signatureCount*SignatureLength
	if len(data) < signaturesEnd {
		return nil, fmt.Errorf("%w: VAA too short for %d signatures", ErrMalformedVAA, signatureCount)
	}

	signatures := make([]Signature, signatureCount)
	for i := range signatures {
		start := headerLength + i*SignatureLength
		signatures[i].GuardianIndex = data[start]
		copy(signatures[i].Signature[:], data[start+1:start+SignatureLength])
	}

	body, err := ParseBody(data[signaturesEnd:])
	if err != nil {
		return nil, err
	}

	return &VAA{
		Version:          version,
		GuardianSetIndex: guardianSetIndex,
		Signatures:       signatures,
		Body:             *body,
	}, nil
}

// Marshal encodes the VAA in wire format.
func (v *VAA) Marshal() ([]byte, error) {
	if len(v.Signatures) > 255 {
		return nil, fmt.Errorf("too many signatures: %d", len(v.Signatures))
	}

	body := v.Body.Bytes()
	buf := make([]byte, headerLength, headerLength+len(v.Signatures)*SignatureLength+len(body))
	buf[0] = v.Version
	binary.BigEndian.PutUint32(buf[1:5], v.GuardianSetIndex)
	buf[5] = uint8(len(v.Signatures))
	for _, sig := range v.Signatures {
		buf = append(buf, sig.GuardianIndex)
		buf = append(buf, sig.Signature[:]...)
	}

	return append(buf, body...), nil
}

// FromSDK converts a Wormhole SDK VAA.
func FromSDK(v *vaaLib.VAA) *VAA {
	sigs := make([]Signature, len(v.Signatures))
	for i, s := range v.Signatures {
		sigs[i] = Signature{GuardianIndex: s.Index, Signature: s.Signature}
	}

	return &VAA{
		Version:          v.Version,
		GuardianSetIndex: v.GuardianSetIndex,
		Signatures:       sigs,
		Body: Body{
			Timestamp:        uint32(v.Timestamp.Unix()),
			Nonce:            v.Nonce,
			EmitterChain:     v.EmitterChain,
			EmitterAddress:   v.EmitterAddress,
			Sequence:         v.Sequence,
			ConsistencyLevel: v.ConsistencyLevel,
			Payload:          v.Payload,
		},
	}
}

// SDK converts the VAA into the Wormhole SDK representation.
func (v *VAA) SDK() *vaaLib.VAA {
	sigs := make([]*vaaLib.Signature, len(v.Signatures))
	for i, s := range v.Signatures {
		sigs[i] = &vaaLib.Signature{Index: s.GuardianIndex, Signature: s.Signature}
	}

	return &vaaLib.VAA{
		Version:          v.Version,
		GuardianSetIndex: v.GuardianSetIndex,
		Signatures:       sigs,
		Timestamp:        time.Unix(int64(v.Timestamp), 0),
		Nonce:            v.Nonce,
		Sequence:         v.Sequence,
		ConsistencyLevel: v.ConsistencyLevel,
		EmitterChain:     v.EmitterChain,
		EmitterAddress:   v.EmitterAddress,
		Payload:          v.Payload,
	}
}
