package vaa

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// Fields returns the zap fields describing the VAA header and body.
func (v *VAA) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint8("version", v.Version),
		zap.Uint32("guardianSetIndex", v.GuardianSetIndex),
		zap.Int("signatureCount", len(v.Signatures)),
		zap.Uint32("timestamp", v.Timestamp),
		zap.Uint32("nonce", v.Nonce),
		zap.Uint16("emitterChain", uint16(v.EmitterChain)),
		zap.String("emitterAddress", hex.EncodeToString(v.EmitterAddress[:])),
		zap.Uint64("sequence", v.Sequence),
		zap.Uint8("consistencyLevel", v.ConsistencyLevel),
		zap.Stringer("messageHash", v.MessageHash()),
		zap.Int("payloadLength", len(v.Payload)),
	}
}

// LogFull logs all fields of a VAA, including signatures, at debug level.
func LogFull(logger *zap.Logger, v *VAA, rawBytes []byte) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}

	fields := append(v.Fields(),
		zap.String("payloadHex", hex.EncodeToString(v.Payload)),
		zap.Int("rawBytesLength", len(rawBytes)),
	)
	logger.Debug("=== Full VAA Details ===", fields...)

	for i, sig := range v.Signatures {
		logger.Debug("VAA Signature",
			zap.Int("index", i),
			zap.Uint8("guardianIndex", sig.GuardianIndex),
			zap.String("signature", hex.EncodeToString(sig.Signature[:])),
		)
	}
}
