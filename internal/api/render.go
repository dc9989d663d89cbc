package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/message"
	"github.com/wormhole-demo/corebridge/internal/quorum"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	enc := json.NewEncoder(w)
	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		enc.SetIndent("", "  ")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := enc.Encode(res); err != nil {
		LoggerFromContext(r.Context()).Error("Failed to marshal JSON result", zap.Error(err))
	}
}

// StatusCode maps a bridge error to the HTTP status reported for it.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, vaa.ErrMalformedVAA),
		errors.Is(err, governance.ErrInvalidGovernanceAction),
		errors.Is(err, message.ErrDataOverflow),
		errors.Is(err, message.ErrEmptyData),
		errors.Is(err, message.ErrPayloadTooLarge),
		errors.Is(err, message.ErrPayloadSizeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, message.ErrAuthorityMismatch):
		return http.StatusForbidden
	case errors.Is(err, guardian.ErrGuardianSetNotFound),
		errors.Is(err, corebridge.ErrPostedVAANotFound),
		errors.Is(err, corebridge.ErrSignatureSetNotFound),
		errors.Is(err, message.ErrMessageNotFound),
		errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, claim.ErrAlreadyClaimed),
		errors.Is(err, corebridge.ErrAlreadyPosted),
		errors.Is(err, governance.ErrChainAlreadyRegistered),
		errors.Is(err, message.ErrInvalidMessageStatus),
		errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, quorum.ErrInvalidSignature),
		errors.Is(err, quorum.ErrQuorumNotMet),
		errors.Is(err, quorum.ErrGuardianSetExpired),
		errors.Is(err, governance.ErrGuardianSetMismatch),
		errors.Is(err, governance.ErrInvalidGovernanceEmitter),
		errors.Is(err, governance.ErrInvalidTargetChain),
		errors.Is(err, corebridge.ErrInsufficientFees):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	logger := LoggerFromContext(r.Context())
	if status == http.StatusInternalServerError {
		logger.Error("Request handling failed", zap.Error(err))
	} else {
		logger.Info("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	JSON(w, r, status, ErrorResponse{Success: false, Error: err.Error()})
}
