package clients

import (
	"context"
	"fmt"
	"time"

	publicrpcv1 "github.com/certusone/wormhole/node/pkg/proto/publicrpc/v1"
	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// VAAStream yields signed VAAs.
type VAAStream interface {
	Recv() (*spyv1.SubscribeSignedVAAResponse, error)
}

// VAASource opens VAA streams.
type VAASource interface {
	Subscribe(ctx context.Context) (VAAStream, error)
	Close()
}

// SpyClient handles connections to the Wormhole spy service
type SpyClient struct {
	endpoint   string
	conn       *grpc.ClientConn
	filters    []*spyv1.FilterEntry
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewSpyClient creates a new client for the Wormhole spy service.
// Filters restrict the subscription to the given emitters; none means all VAAs.
func NewSpyClient(logger *zap.Logger, endpoint string, filters ...*spyv1.FilterEntry) (*SpyClient, error) {
	client := &SpyClient{
		endpoint:   endpoint,
		filters:    filters,
		maxRetries: 5,
		retryDelay: 2 * time.Second,
		logger:     logger.With(zap.String("component", "SpyClient")),
	}

	client.logger.Info("Connecting to spy service", zap.String("endpoint", endpoint))
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to spy: %w", err)
	}

	client.conn = conn
	return client, nil
}

// EmitterFilter builds a spy filter for a single emitter.
func EmitterFilter(chain uint16, emitterHex string) *spyv1.FilterEntry {
	return &spyv1.FilterEntry{
		Filter: &spyv1.FilterEntry_EmitterFilter{
			EmitterFilter: &spyv1.EmitterFilter{
				ChainId:        publicrpcv1.ChainID(chain),
				EmitterAddress: emitterHex,
			},
		},
	}
}

// Close closes the connection to the spy service
func (c *SpyClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Subscribe subscribes to signed VAAs with retry logic
func (c *SpyClient) Subscribe(ctx context.Context) (VAAStream, error) {
	c.logger.Debug("Subscribing to signed VAAs", zap.Int("filters", len(c.filters)))

	client := spyv1.NewSpyRPCServiceClient(c.conn)

	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var stream spyv1.SpyRPCService_SubscribeSignedVAAClient
		stream, err = client.SubscribeSignedVAA(ctx, &spyv1.SubscribeSignedVAARequest{Filters: c.filters})
		if err == nil {
			return stream, nil
		}

		if attempt < c.maxRetries {
			c.logger.Warn("Subscribe attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
				zap.Duration("retryIn", c.retryDelay))

			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("failed to subscribe to %s after %d attempts: %w", c.endpoint, c.maxRetries, err)
}
