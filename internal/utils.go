package internal

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/governance"
)

// normalizeEmitterHex removes the 0x prefix, lowercases and left-pads to 64 chars.
func normalizeEmitterHex(addr string) string {
	if addr == "" {
		return ""
	}
	addr = strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(addr) < 64 {
		addr = strings.Repeat("0", 64-len(addr)) + addr
	}
	return addr
}

// describePayload logs the payload at debug level, decoding governance decrees.
func describePayload(logger *zap.Logger, payload []byte) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}

	if d, err := governance.ParseDecree(payload); err == nil {
		logger.Debug("Governance payload parsed",
			zap.String("module", d.Module.String()),
			zap.String("action", d.ActionName()),
			zap.Uint16("targetChain", uint16(d.TargetChain)),
			zap.Int("fieldsLength", len(d.Fields)))
		return
	}

	const maxLogged = 64
	shown := payload
	if len(shown) > maxLogged {
		shown = shown[:maxLogged]
	}
	logger.Debug("Payload",
		zap.Int("length", len(payload)),
		zap.String("rawHex", fmt.Sprintf("0x%x", shown)))
}
