package submitter

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
)

// RemoteSubmitter posts VAAs through the HTTP API of another bridge node.
type RemoteSubmitter struct {
	client          *clients.BridgeAPIClient
	applyGovernance bool
	logger          *zap.Logger
}

// NewRemoteSubmitter creates a submitter. With applyGovernance every posted VAA
// is also offered to the governance endpoint; non-governance VAAs are rejected
// there and ignored.
func NewRemoteSubmitter(logger *zap.Logger, client *clients.BridgeAPIClient, applyGovernance bool) *RemoteSubmitter {
	return &RemoteSubmitter{
		client:          client,
		applyGovernance: applyGovernance,
		logger:          logger.With(zap.String("component", "RemoteSubmitter")),
	}
}

// SubmitVAA posts the VAA and, with applyGovernance, offers it to the
// governance endpoint. Already posted VAAs are offered again so an interrupted
// decree still runs; the node's claim keeps it from running twice.
func (s *RemoteSubmitter) SubmitVAA(ctx context.Context, vaaBytes []byte) (string, error) {
	res, err := s.client.PostVAA(ctx, vaaBytes)
	if err != nil {
		return "", err
	}

	var postErr error
	if res.AlreadyPosted {
		postErr = fmt.Errorf("%w: %s", corebridge.ErrAlreadyPosted, res.MessageHash)
	}

	if !s.applyGovernance {
		return res.MessageHash, postErr
	}

	applied, err := s.client.ApplyGovernance(ctx, common.HexToHash(res.MessageHash))
	if err != nil {
		s.logger.Debug("Governance not applied", zap.String("messageHash", res.MessageHash), zap.Error(err))
		return res.MessageHash, postErr
	}

	s.logger.Info("Governance decree applied",
		zap.String("messageHash", res.MessageHash),
		zap.String("action", applied.Action),
		zap.Bool("resubmitted", res.AlreadyPosted))
	return res.MessageHash, nil
}
