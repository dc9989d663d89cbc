package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/api"
)

// BridgeAPIClient talks to the HTTP API of a core bridge node.
type BridgeAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewBridgeAPIClient(logger *zap.Logger, baseURL string) *BridgeAPIClient {
	return &BridgeAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With(zap.String("component", "BridgeAPIClient")),
	}
}

// APIError is a non-2xx answer of the bridge API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge API returned %d: %s", e.StatusCode, e.Message)
}

func (c *BridgeAPIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Received response from bridge API",
		zap.String("path", path),
		zap.Int("statusCode", resp.StatusCode))

	if resp.StatusCode >= http.StatusMultipleChoices {
		var errRes api.ErrorResponse
		if err := json.Unmarshal(data, &errRes); err != nil || errRes.Error == "" {
			errRes.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errRes.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// PostVAA verifies and posts a signed VAA on the remote bridge.
func (c *BridgeAPIClient) PostVAA(ctx context.Context, vaaBytes []byte) (*api.PostVAAResponse, error) {
	c.logger.Debug("Posting VAA to bridge", zap.Int("vaaLength", len(vaaBytes)))

	var res api.PostVAAResponse
	if err := c.do(ctx, http.MethodPost, "/v1/vaas", api.PostVAARequest{VAABytes: hexutil.Encode(vaaBytes)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ApplyGovernance executes the decree of a posted governance VAA.
func (c *BridgeAPIClient) ApplyGovernance(ctx context.Context, messageHash common.Hash) (*api.GovernanceResult, error) {
	var res api.GovernanceResult
	if err := c.do(ctx, http.MethodPost, "/v1/governance/"+messageHash.Hex(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *BridgeAPIClient) PostedVAA(ctx context.Context, messageHash common.Hash) (*api.PostedVAAResult, error) {
	var res api.PostedVAAResult
	if err := c.do(ctx, http.MethodGet, "/v1/vaas/"+messageHash.Hex(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Publish posts a message in one step on the remote bridge.
func (c *BridgeAPIClient) Publish(ctx context.Context, req api.PublishRequest) (*api.PublishResult, error) {
	var res api.PublishResult
	if err := c.do(ctx, http.MethodPost, "/v1/messages", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *BridgeAPIClient) GuardianSet(ctx context.Context, index uint32) (*api.GuardianSetResult, error) {
	var res api.GuardianSetResult
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/guardian-sets/%d", index), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *BridgeAPIClient) CurrentGuardianSet(ctx context.Context) (*api.GuardianSetResult, error) {
	var res api.GuardianSetResult
	if err := c.do(ctx, http.MethodGet, "/v1/guardian-sets/current", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckHealth returns an error unless the bridge reports healthy.
func (c *BridgeAPIClient) CheckHealth(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("bridge unhealthy: %w", err)
	}
	return nil
}
