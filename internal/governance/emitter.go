package governance

import (
	"context"
	"fmt"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/ledger"
)

// RegisteredEmitter is the token bridge contract trusted on a foreign chain.
type RegisteredEmitter struct {
	Chain    vaaLib.ChainID
	Contract vaaLib.Address
}

// RegisteredEmitterOf returns the emitter registered for chain.
func RegisteredEmitterOf(ctx context.Context, store ledger.Store, chain vaaLib.ChainID) (*RegisteredEmitter, error) {
	e, _, err := ledger.Load[RegisteredEmitter](ctx, store, ledger.RegisteredEmitterKey(uint16(chain)))
	if err != nil {
		return nil, fmt.Errorf("registered emitter of chain %d: %w", chain, err)
	}
	return e, nil
}

// LegacyRegisteredEmitterOf returns the record keyed by both chain and contract.
func LegacyRegisteredEmitterOf(ctx context.Context, store ledger.Store, chain vaaLib.ChainID, contract vaaLib.Address) (*RegisteredEmitter, error) {
	e, _, err := ledger.Load[RegisteredEmitter](ctx, store, ledger.LegacyRegisteredEmitterKey(uint16(chain), contract))
	if err != nil {
		return nil, fmt.Errorf("legacy registered emitter of chain %d: %w", chain, err)
	}
	return e, nil
}

func registerChainOps(r *RegisterChain) []ledger.Op {
	record := ledger.MustEncode(RegisteredEmitter{Chain: r.Chain, Contract: r.Contract})
	return []ledger.Op{
		ledger.Create(ledger.RegisteredEmitterKey(uint16(r.Chain)), record),
		ledger.Create(ledger.LegacyRegisteredEmitterKey(uint16(r.Chain), r.Contract), record),
	}
}
