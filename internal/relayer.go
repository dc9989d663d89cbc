package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/metrics"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

const resubscribeDelay = 5 * time.Second

// Relayer feeds signed VAAs from the spy into a VAAProcessor.
type Relayer struct {
	source       clients.VAASource
	vaaProcessor VAAProcessor
	logger       *zap.Logger
}

// NewRelayer creates a new relayer instance
func NewRelayer(logger *zap.Logger, source clients.VAASource, processor VAAProcessor) (*Relayer, error) {
	if source == nil {
		return nil, fmt.Errorf("VAA source is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("VAA processor is required")
	}

	return &Relayer{
		logger:       logger.With(zap.String("component", "Relayer")),
		source:       source,
		vaaProcessor: processor,
	}, nil
}

// Close cleans up resources used by the relayer
func (r *Relayer) Close() {
	r.source.Close()
}

// Start listens for VAAs until ctx is cancelled. In-flight VAAs are processed
// to completion before it returns.
func (r *Relayer) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		r.logger.Info("Waiting for all VAA processing to complete")
		wg.Wait()
	}()

	stream, err := r.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to VAA stream: %w", err)
	}

	r.logger.Info("Listening for VAAs")

	// Processing outlives ctx so accepted VAAs are not abandoned half way.
	processingCtx, cancelProcessing := context.WithCancel(context.Background())
	defer cancelProcessing()

	for {
		resp, err := stream.Recv()
		if ctx.Err() != nil {
			r.logger.Info("Shutting down relayer")
			return nil
		}
		if err != nil {
			r.logger.Warn("Stream error, resubscribing", zap.Error(err), zap.Duration("retryIn", resubscribeDelay))
			select {
			case <-time.After(resubscribeDelay):
			case <-ctx.Done():
				r.logger.Info("Shutting down relayer")
				return nil
			}

			stream, err = r.source.Subscribe(ctx)
			if err != nil {
				return fmt.Errorf("subscribe to VAA stream after retry: %w", err)
			}
			continue
		}

		wg.Add(1)
		go func(vaaBytes []byte) {
			defer wg.Done()
			r.processVAA(processingCtx, vaaBytes)
		}(resp.VaaBytes)
	}
}

func (r *Relayer) processVAA(ctx context.Context, vaaBytes []byte) {
	parsed, err := vaa.Parse(vaaBytes)
	if err != nil {
		metrics.RelayedVAAs.WithLabelValues("malformed").Inc()
		r.logger.Error("Failed to parse VAA", zap.Error(err))
		return
	}
	vaa.LogFull(r.logger, parsed, vaaBytes)

	vaaData := &VAAData{
		VAA:         parsed,
		RawBytes:    vaaBytes,
		ChainID:     uint16(parsed.EmitterChain),
		EmitterHex:  parsed.EmitterAddress.String(),
		Sequence:    parsed.Sequence,
		MessageHash: parsed.MessageHash().Hex(),
	}

	r.logger.Debug("Processing VAA",
		zap.Uint16("chain", vaaData.ChainID),
		zap.Uint64("sequence", vaaData.Sequence),
		zap.String("emitter", vaaData.EmitterHex),
		zap.String("messageHash", vaaData.MessageHash))

	if _, err := r.vaaProcessor.ProcessVAA(ctx, *vaaData); err != nil {
		r.logger.Error("Error processing VAA", zap.String("messageHash", vaaData.MessageHash), zap.Error(err))
	}
}
