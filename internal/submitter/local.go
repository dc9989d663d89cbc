package submitter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

// LocalSubmitter posts VAAs into a bridge running in this process and executes
// the decrees of governance VAAs right after posting them.
type LocalSubmitter struct {
	bridge     *corebridge.Bridge
	governance *governance.Processor
	logger     *zap.Logger
}

// NewLocalSubmitter creates a submitter. A nil processor disables governance.
func NewLocalSubmitter(logger *zap.Logger, bridge *corebridge.Bridge, gov *governance.Processor) *LocalSubmitter {
	return &LocalSubmitter{
		bridge:     bridge,
		governance: gov,
		logger:     logger.With(zap.String("component", "LocalSubmitter")),
	}
}

// SubmitVAA posts the VAA and applies its decree when it comes from the
// governance emitter. A governance VAA that is already posted is applied again
// so a decree interrupted after posting is not lost; the claim keeps the
// decree from running twice.
func (s *LocalSubmitter) SubmitVAA(ctx context.Context, vaaBytes []byte) (string, error) {
	var body vaa.Body
	posted, postErr := s.bridge.VerifyAndPost(ctx, vaaBytes)
	switch {
	case postErr == nil:
		body = posted.Body
	case errors.Is(postErr, corebridge.ErrAlreadyPosted):
		parsed, err := vaa.Parse(vaaBytes)
		if err != nil {
			return "", postErr
		}
		body = parsed.Body
	default:
		return "", postErr
	}
	messageHash := body.MessageHash()
	hash := messageHash.Hex()

	if s.governance == nil || !s.governance.IsGovernanceEmitter(body.EmitterChain, body.EmitterAddress) {
		return hash, postErr
	}

	applied, err := s.governance.Apply(ctx, messageHash)
	if err != nil {
		if errors.Is(err, claim.ErrAlreadyClaimed) {
			return hash, err
		}
		if errors.Is(err, governance.ErrInvalidGovernanceAction) {
			// The VAA stays posted; only its decree is rejected.
			s.logger.Warn("Governance VAA posted but not applied", zap.String("messageHash", hash), zap.Error(err))
			return hash, postErr
		}
		return "", fmt.Errorf("apply governance VAA %s: %w", hash, err)
	}

	s.logger.Info("Governance decree applied",
		zap.String("messageHash", hash),
		zap.String("module", applied.Decree.Module.String()),
		zap.String("action", applied.Decree.ActionName()),
		zap.Bool("resubmitted", postErr != nil))
	return hash, nil
}
