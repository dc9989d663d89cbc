package clients_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/api"
	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/message"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

func newBridgeServer(t *testing.T) (*httptest.Server, *guardiantest.Guardians) {
	t.Helper()

	clock := func() time.Time { return time.Unix(1700000000, 0) }
	guardians := guardiantest.New(t, 0, 3)
	store := ledger.NewMemoryStore()
	bridge := corebridge.New(store, zap.NewNop(), corebridge.WithClock(clock))
	require.NoError(t, bridge.Initialize(context.Background(), corebridge.InitParams{
		GuardianSet: guardian.Set{Keys: guardians.Addresses()},
		Config:      corebridge.Config{GuardianSetTTL: 60},
	}))

	fees := corebridge.NewLedgerFeeCollector(store)
	server := api.NewServer(zap.NewNop(), bridge,
		governance.NewProcessor(bridge, fees, vaaLib.ChainIDSolana, zap.NewNop()),
		message.NewPublisher(store, bridge, fees, vaaLib.ChainIDSolana, zap.NewNop()),
		fees)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv, guardians
}

func TestBridgeAPIClient(t *testing.T) {
	t.Parallel()

	srv, guardians := newBridgeServer(t)
	client := clients.NewBridgeAPIClient(zap.NewNop(), srv.URL+"/")
	ctx := context.Background()

	require.NoError(t, client.CheckHealth(ctx))

	set, err := client.CurrentGuardianSet(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, len(set.Keys))

	byIndex, err := client.GuardianSet(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, set, byIndex)

	_, err = client.GuardianSet(ctx, 1)
	var notFound *clients.APIError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, http.StatusNotFound, notFound.StatusCode)

	body := vaa.Body{
		Timestamp:      1700000000,
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: guardiantest.Emitter(1),
		Sequence:       5,
		Payload:        []byte("hi"),
	}
	raw := guardians.SignBytes(t, body, guardians.All())

	res, err := client.PostVAA(ctx, raw)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, body.MessageHash().Hex(), res.MessageHash)

	res, err = client.PostVAA(ctx, raw)
	require.NoError(t, err)
	require.True(t, res.AlreadyPosted)

	posted, err := client.PostedVAA(ctx, body.MessageHash())
	require.NoError(t, err)
	require.Equal(t, uint64(5), posted.Sequence)

	published, err := client.Publish(ctx, api.PublishRequest{EmitterAuthority: "0x0a", Payload: "0x01"})
	require.NoError(t, err)
	require.Equal(t, uint64(0), published.Sequence)

	_, err = client.ApplyGovernance(ctx, body.MessageHash())
	var apiErr *clients.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestBridgeAPIClientRejected(t *testing.T) {
	t.Parallel()

	srv, guardians := newBridgeServer(t)
	client := clients.NewBridgeAPIClient(zap.NewNop(), srv.URL)

	raw := guardians.SignBytes(t, vaa.Body{EmitterChain: vaaLib.ChainIDEthereum}, []int{0})
	_, err := client.PostVAA(context.Background(), raw)

	var apiErr *clients.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.NotEmpty(t, apiErr.Message)
}

func TestBridgeAPIClientUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := clients.NewBridgeAPIClient(zap.NewNop(), srv.URL).CheckHealth(context.Background())
	require.Error(t, err)
}
