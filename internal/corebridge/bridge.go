// Package corebridge verifies and stores VAAs and holds the bridge configuration.
package corebridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/metrics"
	"github.com/wormhole-demo/corebridge/internal/quorum"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

var (
	ErrAlreadyInitialized   = errors.New("bridge already initialized")
	ErrNotInitialized       = errors.New("bridge not initialized")
	ErrAlreadyPosted        = errors.New("VAA already posted")
	ErrPostedVAANotFound    = errors.New("posted VAA not found")
	ErrSignatureSetNotFound = errors.New("signature set not found")
)

// Clock returns the current time. Guardian set expiry is evaluated against it.
type Clock func() time.Time

type Bridge struct {
	store     ledger.Store
	guardians *guardian.Registry
	clock     Clock
	logger    *zap.Logger
}

type Option func(*Bridge)

func WithClock(clock Clock) Option {
	return func(b *Bridge) {
		b.clock = clock
	}
}

func New(store ledger.Store, logger *zap.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		store:     store,
		guardians: guardian.NewRegistry(store),
		clock:     time.Now,
		logger:    logger.With(zap.String("component", "corebridge")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Now returns the bridge clock as unix seconds.
func (b *Bridge) Now() uint32 {
	return uint32(b.clock().Unix())
}

func (b *Bridge) Guardians() *guardian.Registry {
	return b.guardians
}

func (b *Bridge) Store() ledger.Store {
	return b.store
}

// InitParams is the genesis state of a bridge.
type InitParams struct {
	GuardianSet guardian.Set
	Config      Config
}

// Initialize writes the bridge config and the genesis guardian set.
func (b *Bridge) Initialize(ctx context.Context, params InitParams) error {
	if params.GuardianSet.CreationTime == 0 {
		params.GuardianSet.CreationTime = b.Now()
	}

	ops, err := b.guardians.InitializeOps(params.GuardianSet)
	if err != nil {
		return err
	}
	cfg, err := ledger.Encode(params.Config)
	if err != nil {
		return err
	}
	ops = append([]ledger.Op{ledger.Create(ledger.ConfigKey(), cfg)}, ops...)

	if err = b.store.Apply(ctx, ops...); err != nil {
		if errors.Is(err, ledger.ErrKeyExists) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("initialize bridge: %w", err)
	}

	b.logger.Info("Bridge initialized",
		zap.Uint32("guardianSetIndex", params.GuardianSet.Index),
		zap.Int("guardians", len(params.GuardianSet.Keys)),
		zap.Uint32("guardianSetTTL", params.Config.GuardianSetTTL),
		zap.Uint64("messageFee", params.Config.MessageFee))
	return nil
}

func (b *Bridge) Config(ctx context.Context) (*Config, error) {
	cfg, _, err := b.loadConfig(ctx)
	return cfg, err
}

func (b *Bridge) loadConfig(ctx context.Context) (*Config, []byte, error) {
	cfg, raw, err := ledger.Load[Config](ctx, b.store, ledger.ConfigKey())
	if ledger.IsNotFound(err) {
		return nil, nil, ErrNotInitialized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load bridge config: %w", err)
	}
	return cfg, raw, nil
}

// SetMessageFeeOp returns the op replacing the configured message fee.
func (b *Bridge) SetMessageFeeOp(ctx context.Context, fee uint64) (ledger.Op, error) {
	cfg, raw, err := b.loadConfig(ctx)
	if err != nil {
		return ledger.Op{}, err
	}
	cfg.MessageFee = fee

	updated, err := ledger.Encode(cfg)
	if err != nil {
		return ledger.Op{}, err
	}
	return ledger.Swap(ledger.ConfigKey(), raw, updated), nil
}

// VerifySignatures checks sigs over the body against guardian set
// guardianSetIndex and merges the signers into the message's signature set.
// It may be called several times for one message; quorum is only required by PostVAA.
func (b *Bridge) VerifySignatures(ctx context.Context, body vaa.Body, guardianSetIndex uint32, sigs []vaa.Signature) (*SignatureSet, error) {
	set, err := b.guardians.Get(ctx, guardianSetIndex)
	if err != nil {
		return nil, err
	}
	if !set.IsActive(b.Now()) {
		return nil, fmt.Errorf("%w: set %d", quorum.ErrGuardianSetExpired, guardianSetIndex)
	}

	verified, err := quorum.Check(body.Digest(), set, sigs)
	if err != nil {
		return nil, err
	}

	sigSet := &SignatureSet{
		MessageHash:      body.MessageHash(),
		GuardianSetIndex: guardianSetIndex,
		Verified:         verified,
	}

	existing, raw, err := ledger.Load[SignatureSet](ctx, b.store, sigSet.key())
	var op ledger.Op
	switch {
	case ledger.IsNotFound(err):
		op = ledger.Create(sigSet.key(), ledger.MustEncode(sigSet))
	case err != nil:
		return nil, fmt.Errorf("load signature set: %w", err)
	default:
		for i, v := range existing.Verified {
			if i < len(sigSet.Verified) {
				sigSet.Verified[i] = sigSet.Verified[i] || v
			}
		}
		op = ledger.Swap(sigSet.key(), raw, ledger.MustEncode(sigSet))
	}

	if err = b.store.Apply(ctx, op); err != nil {
		return nil, fmt.Errorf("store signature set: %w", err)
	}

	b.logger.Debug("Signatures verified",
		zap.Stringer("messageHash", sigSet.MessageHash),
		zap.Uint32("guardianSetIndex", guardianSetIndex),
		zap.Int("verified", quorum.Count(sigSet.Verified)),
		zap.Int("quorum", set.Quorum()))
	return sigSet, nil
}

// PostVAA posts the body once the signature set built for it reaches quorum.
// The signature set is looked up by the body's own hash, so a body that was
// not the one signed finds no set.
func (b *Bridge) PostVAA(ctx context.Context, body vaa.Body, guardianSetIndex uint32) (*PostedVAA, error) {
	hash := body.MessageHash()

	sigSet, _, err := ledger.Load[SignatureSet](ctx, b.store, ledger.SignatureSetKey(hash, guardianSetIndex))
	if ledger.IsNotFound(err) {
		return nil, fmt.Errorf("%w: message %s, guardian set %d", ErrSignatureSetNotFound, hash.Hex(), guardianSetIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("load signature set: %w", err)
	}

	set, err := b.guardians.Get(ctx, guardianSetIndex)
	if err != nil {
		return nil, err
	}
	if err = quorum.Require(set, sigSet.Verified, b.Now()); err != nil {
		b.observePost(err)
		return nil, err
	}

	posted := &PostedVAA{GuardianSetIndex: guardianSetIndex, MessageHash: hash, Body: body}
	if err = b.store.Apply(ctx, ledger.Create(ledger.PostedVAAKey(hash), ledger.MustEncode(posted))); err != nil {
		err = translatePostError(err, hash)
		b.observePost(err)
		return nil, err
	}

	b.observePost(nil)
	b.logger.Info("VAA posted", zap.Stringer("messageHash", hash), zap.String("messageID", body.MessageID()))
	return posted, nil
}

// VerifyAndPost parses a signed VAA, verifies quorum against its guardian set
// and stores the signature set and the posted VAA in one batch.
func (b *Bridge) VerifyAndPost(ctx context.Context, raw []byte) (*PostedVAA, error) {
	v, err := vaa.Parse(raw)
	if err != nil {
		b.observePost(err)
		return nil, err
	}

	set, err := b.guardians.Get(ctx, v.GuardianSetIndex)
	if err != nil {
		b.observePost(err)
		return nil, err
	}

	verified, err := quorum.Verify(v.Digest(), set, v.Signatures, b.Now())
	if err != nil {
		b.observePost(err)
		return nil, err
	}

	hash := v.MessageHash()
	sigSet := &SignatureSet{MessageHash: hash, GuardianSetIndex: v.GuardianSetIndex, Verified: verified}
	posted := &PostedVAA{GuardianSetIndex: v.GuardianSetIndex, MessageHash: hash, Body: v.Body}

	err = b.store.Apply(ctx,
		ledger.Put(sigSet.key(), ledger.MustEncode(sigSet)),
		ledger.Create(ledger.PostedVAAKey(hash), ledger.MustEncode(posted)),
	)
	if err != nil {
		err = translatePostError(err, hash)
		b.observePost(err)
		return nil, err
	}

	b.observePost(nil)
	b.logger.Info("VAA verified and posted",
		zap.Stringer("messageHash", hash),
		zap.String("messageID", v.MessageID()),
		zap.Uint32("guardianSetIndex", v.GuardianSetIndex),
		zap.Int("signatures", len(v.Signatures)))
	return posted, nil
}

func translatePostError(err error, hash common.Hash) error {
	if errors.Is(err, ledger.ErrKeyExists) {
		return fmt.Errorf("%w: %s", ErrAlreadyPosted, hash.Hex())
	}
	return fmt.Errorf("store posted VAA: %w", err)
}

func (b *Bridge) observePost(err error) {
	metrics.VAAPosts.WithLabelValues(metrics.Result(err, ErrAlreadyPosted)).Inc()
}

func (b *Bridge) PostedVAA(ctx context.Context, hash common.Hash) (*PostedVAA, error) {
	posted, _, err := ledger.Load[PostedVAA](ctx, b.store, ledger.PostedVAAKey(hash))
	if ledger.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrPostedVAANotFound, hash.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("load posted VAA: %w", err)
	}
	return posted, nil
}

func (b *Bridge) SignatureSet(ctx context.Context, hash common.Hash, guardianSetIndex uint32) (*SignatureSet, error) {
	sigSet, _, err := ledger.Load[SignatureSet](ctx, b.store, ledger.SignatureSetKey(hash, guardianSetIndex))
	if ledger.IsNotFound(err) {
		return nil, fmt.Errorf("%w: message %s, guardian set %d", ErrSignatureSetNotFound, hash.Hex(), guardianSetIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("load signature set: %w", err)
	}
	return sigSet, nil
}

// ClosePostedVAA removes a posted VAA together with its signature set.
func (b *Bridge) ClosePostedVAA(ctx context.Context, hash common.Hash) error {
	posted, raw, err := ledger.Load[PostedVAA](ctx, b.store, ledger.PostedVAAKey(hash))
	if ledger.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrPostedVAANotFound, hash.Hex())
	}
	if err != nil {
		return fmt.Errorf("load posted VAA: %w", err)
	}

	// The swap guards against a concurrent close.
	err = b.store.Apply(ctx,
		ledger.Swap(ledger.PostedVAAKey(hash), raw, raw),
		ledger.Delete(ledger.PostedVAAKey(hash)),
		ledger.Delete(posted.SignatureSetKey()),
	)
	if err != nil {
		return fmt.Errorf("close posted VAA %s: %w", hash.Hex(), err)
	}

	b.logger.Info("Posted VAA closed", zap.Stringer("messageHash", hash))
	return nil
}
