package internal

import (
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

type VAAData struct {
	VAA         *vaa.VAA // The parsed VAA
	RawBytes    []byte   // Raw VAA bytes
	ChainID     uint16   // Emitter chain ID
	EmitterHex  string   // Hex-encoded emitter address, 64 chars
	Sequence    uint64   // VAA sequence number
	MessageHash string   // keccak256 of the body
}
