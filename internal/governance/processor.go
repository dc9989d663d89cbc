package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/metrics"
)

// Applied describes a decree that took effect.
type Applied struct {
	MessageHash common.Hash
	Decree      *Decree
	Claim       claim.Key
}

type Processor struct {
	bridge            *corebridge.Bridge
	claims            *claim.Tracker
	fees              corebridge.FeeCollector
	localChain        vaaLib.ChainID
	governanceChain   vaaLib.ChainID
	governanceEmitter vaaLib.Address
	logger            *zap.Logger
}

type Option func(*Processor)

// WithGovernanceEmitter overrides the emitter decrees must come from.
func WithGovernanceEmitter(chain vaaLib.ChainID, emitter vaaLib.Address) Option {
	return func(p *Processor) {
		p.governanceChain = chain
		p.governanceEmitter = emitter
	}
}

// NewProcessor creates a processor for a bridge running on localChain.
// Decrees are accepted from the Wormhole governance emitter unless overridden
// with WithGovernanceEmitter: vaaLib.GovernanceChain (Solana, chain 1) and
// vaaLib.GovernanceEmitter (0x...04), the values mainnet guardians sign with.
func NewProcessor(bridge *corebridge.Bridge, fees corebridge.FeeCollector, localChain vaaLib.ChainID, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		bridge:            bridge,
		claims:            claim.NewTracker(bridge.Store()),
		fees:              fees,
		localChain:        localChain,
		governanceChain:   vaaLib.GovernanceChain,
		governanceEmitter: vaaLib.GovernanceEmitter,
		logger:            logger.With(zap.String("component", "governance")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsGovernanceEmitter reports whether chain/emitter is the configured governance emitter.
func (p *Processor) IsGovernanceEmitter(chain vaaLib.ChainID, emitter vaaLib.Address) bool {
	return chain == p.governanceChain && emitter == p.governanceEmitter
}

// Apply executes the decree carried by the posted VAA with the given hash.
// The claim of the VAA and the decree's effects are applied in one batch.
func (p *Processor) Apply(ctx context.Context, messageHash common.Hash) (*Applied, error) {
	applied, err := p.apply(ctx, messageHash)

	module, action := "unknown", "unknown"
	if applied != nil {
		module, action = applied.Decree.Module.String(), applied.Decree.ActionName()
	}
	metrics.Decrees.WithLabelValues(module, action, metrics.Result(err, claim.ErrAlreadyClaimed)).Inc()
	metrics.Claims.WithLabelValues(metrics.Result(err, claim.ErrAlreadyClaimed)).Inc()

	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (p *Processor) apply(ctx context.Context, messageHash common.Hash) (*Applied, error) {
	posted, err := p.bridge.PostedVAA(ctx, messageHash)
	if err != nil {
		return nil, err
	}

	body := posted.Body
	if !p.IsGovernanceEmitter(body.EmitterChain, body.EmitterAddress) {
		return nil, fmt.Errorf("%w: %d/%s", ErrInvalidGovernanceEmitter, body.EmitterChain, body.EmitterAddress)
	}

	current, err := p.bridge.Guardians().CurrentIndex(ctx)
	if err != nil {
		return nil, err
	}
	if posted.GuardianSetIndex != current {
		return nil, fmt.Errorf("%w: signed by set %d, current set is %d", ErrGuardianSetMismatch, posted.GuardianSetIndex, current)
	}

	key := claim.Key{EmitterChain: body.EmitterChain, EmitterAddress: body.EmitterAddress, Sequence: body.Sequence}
	if _, err = p.claims.Get(ctx, key); err == nil {
		return nil, fmt.Errorf("%w: %s", claim.ErrAlreadyClaimed, key)
	} else if !ledger.IsNotFound(err) {
		return nil, err
	}

	decree, err := ParseDecree(body.Payload)
	if err != nil {
		return nil, err
	}
	applied := &Applied{MessageHash: messageHash, Decree: decree, Claim: key}

	ops, err := p.ops(ctx, decree)
	if err != nil {
		return applied, err
	}

	ops = append([]ledger.Op{claim.CreateOp(key, true)}, ops...)
	if err = p.bridge.Store().Apply(ctx, ops...); err != nil {
		err = claim.TranslateError(err, key)
		if !errors.Is(err, claim.ErrAlreadyClaimed) && decree.Module == ModuleTokenBridge && errors.Is(err, ledger.ErrKeyExists) {
			err = fmt.Errorf("%w: %v", ErrChainAlreadyRegistered, err)
		}
		return applied, err
	}

	p.logger.Info("Governance decree applied",
		zap.Stringer("messageHash", messageHash),
		zap.Stringer("module", decree.Module),
		zap.String("action", decree.ActionName()),
		zap.Uint16("targetChain", uint16(decree.TargetChain)),
		zap.Stringer("claim", key))
	return applied, nil
}

func (p *Processor) ops(ctx context.Context, d *Decree) ([]ledger.Op, error) {
	switch d.Module {
	case ModuleCore:
		switch d.Action {
		case ActionGuardianSetUpdate:
			return p.guardianSetUpdate(ctx, d)
		case ActionSetMessageFee:
			return p.setMessageFee(ctx, d)
		case ActionTransferFees:
			return p.transferFees(ctx, d)
		case ActionContractUpgrade:
			return nil, fmt.Errorf("%w: contract upgrades are not supported", ErrInvalidGovernanceAction)
		}
	case ModuleTokenBridge:
		if d.Action == ActionRegisterChain {
			return p.registerChain(d)
		}
	default:
		return nil, fmt.Errorf("%w: unknown module %x", ErrInvalidGovernanceAction, d.Module[:])
	}
	return nil, fmt.Errorf("%w: unknown %s action %d", ErrInvalidGovernanceAction, d.Module, d.Action)
}

// checkTarget accepts decrees addressed to every chain or to this one.
func (p *Processor) checkTarget(d *Decree) error {
	if d.TargetChain != 0 && d.TargetChain != p.localChain {
		return fmt.Errorf("%w: %s targets chain %d", ErrInvalidTargetChain, d.ActionName(), d.TargetChain)
	}
	return nil
}

func (p *Processor) guardianSetUpdate(ctx context.Context, d *Decree) ([]ledger.Op, error) {
	if d.TargetChain != 0 {
		return nil, fmt.Errorf("%w: guardian set updates must target all chains", ErrInvalidTargetChain)
	}
	u, err := d.GuardianSetUpdate()
	if err != nil {
		return nil, err
	}
	cfg, err := p.bridge.Config(ctx)
	if err != nil {
		return nil, err
	}

	ops, err := p.bridge.Guardians().InstallOps(ctx, guardian.Set{Index: u.NewIndex, Keys: u.Keys}, p.bridge.Now(), cfg.GuardianSetTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGovernanceAction, err)
	}
	return ops, nil
}

func (p *Processor) setMessageFee(ctx context.Context, d *Decree) ([]ledger.Op, error) {
	if err := p.checkTarget(d); err != nil {
		return nil, err
	}
	s, err := d.SetMessageFee()
	if err != nil {
		return nil, err
	}
	op, err := p.bridge.SetMessageFeeOp(ctx, s.Fee)
	if err != nil {
		return nil, err
	}
	return []ledger.Op{op}, nil
}

func (p *Processor) transferFees(ctx context.Context, d *Decree) ([]ledger.Op, error) {
	if err := p.checkTarget(d); err != nil {
		return nil, err
	}
	t, err := d.TransferFees()
	if err != nil {
		return nil, err
	}
	return p.fees.TransferOps(ctx, t.Recipient, t.Amount)
}

func (p *Processor) registerChain(d *Decree) ([]ledger.Op, error) {
	if err := p.checkTarget(d); err != nil {
		return nil, err
	}
	r, err := d.RegisterChain()
	if err != nil {
		return nil, err
	}
	if r.Chain == 0 || r.Chain == p.localChain {
		return nil, fmt.Errorf("%w: can't register chain %d", ErrInvalidGovernanceAction, r.Chain)
	}
	return registerChainOps(r), nil
}
