package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/metrics"
	"github.com/wormhole-demo/corebridge/internal/submitter"
)

const DefaultSubmitTimeout = time.Minute

type VAAProcessor interface {
	// ProcessVAA hands the VAA to the submitter and returns its message hash.
	// An empty hash and nil error mean the VAA was filtered out.
	ProcessVAA(ctx context.Context, vaaData VAAData) (string, error)
}

type VAAProcessorConfig struct {
	ChainIDs       []uint16      // Emitter chains to accept (empty = all)
	EmitterAddress string        // Hex-encoded emitter address to filter (empty = no filter)
	SubmitTimeout  time.Duration // Per-VAA submission timeout
}

type DefaultVAAProcessor struct {
	config    VAAProcessorConfig
	chains    map[uint16]bool
	logger    *zap.Logger
	submitter submitter.VAASubmitter
}

func NewDefaultVAAProcessor(logger *zap.Logger, config VAAProcessorConfig, submitter submitter.VAASubmitter) *DefaultVAAProcessor {
	config.EmitterAddress = normalizeEmitterHex(config.EmitterAddress)
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = DefaultSubmitTimeout
	}

	chains := make(map[uint16]bool, len(config.ChainIDs))
	for _, id := range config.ChainIDs {
		chains[id] = true
	}

	return &DefaultVAAProcessor{
		config:    config,
		chains:    chains,
		logger:    logger.With(zap.String("component", "DefaultVAAProcessor")),
		submitter: submitter,
	}
}

func (p *DefaultVAAProcessor) ProcessVAA(ctx context.Context, vaaData VAAData) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.SubmitTimeout)
	defer cancel()

	p.logger.Debug("VAA Details",
		zap.Uint16("emitterChain", vaaData.ChainID),
		zap.String("emitterAddress", vaaData.EmitterHex),
		zap.Uint64("sequence", vaaData.Sequence),
		zap.Uint32("timestamp", vaaData.VAA.Timestamp),
		zap.Int("payloadLength", len(vaaData.VAA.Payload)),
		zap.String("messageHash", vaaData.MessageHash))
	describePayload(p.logger, vaaData.VAA.Payload)

	if len(p.chains) > 0 && !p.chains[vaaData.ChainID] {
		p.logger.Debug("Skipping VAA (not from configured chain)",
			zap.Uint64("sequence", vaaData.Sequence),
			zap.Uint16("chain", vaaData.ChainID))
		metrics.RelayedVAAs.WithLabelValues("skipped").Inc()
		return "", nil
	}

	if p.config.EmitterAddress != "" && vaaData.EmitterHex != p.config.EmitterAddress {
		p.logger.Debug("Skipping VAA (not from configured emitter)",
			zap.Uint64("sequence", vaaData.Sequence),
			zap.String("emitter", vaaData.EmitterHex),
			zap.String("expectedEmitter", p.config.EmitterAddress))
		metrics.RelayedVAAs.WithLabelValues("skipped").Inc()
		return "", nil
	}

	hash, err := p.submitter.SubmitVAA(ctx, vaaData.RawBytes)
	metrics.RelayedVAAs.WithLabelValues(metrics.Result(err, corebridge.ErrAlreadyPosted, claim.ErrAlreadyClaimed)).Inc()
	switch {
	case errors.Is(err, corebridge.ErrAlreadyPosted), errors.Is(err, claim.ErrAlreadyClaimed):
		// The spy repeats VAAs; a replay is not a failure.
		p.logger.Debug("VAA already processed", zap.String("messageHash", vaaData.MessageHash))
		return vaaData.MessageHash, nil
	case err != nil:
		if ctx.Err() != nil {
			p.logger.Warn("VAA submission cancelled or timed out", zap.Error(ctx.Err()))
			return "", fmt.Errorf("submission interrupted: %w", ctx.Err())
		}

		p.logger.Error("Failed to submit VAA",
			zap.Uint64("sequence", vaaData.Sequence),
			zap.String("messageHash", vaaData.MessageHash),
			zap.Error(err))
		return "", fmt.Errorf("submit VAA %s: %w", vaaData.MessageHash, err)
	}

	p.logger.Info("VAA posted",
		zap.Uint16("chain", vaaData.ChainID),
		zap.Uint64("sequence", vaaData.Sequence),
		zap.String("messageHash", hash))

	return hash, nil
}
