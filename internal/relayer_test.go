package internal

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

type fakeStream struct {
	ctx   context.Context
	items chan []byte
}

func (s *fakeStream) Recv() (*spyv1.SubscribeSignedVAAResponse, error) {
	select {
	case b, ok := <-s.items:
		if !ok {
			return nil, io.EOF
		}
		return &spyv1.SubscribeSignedVAAResponse{VaaBytes: b}, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

type fakeSource struct {
	items  chan []byte
	closed bool
}

func (s *fakeSource) Subscribe(ctx context.Context) (clients.VAAStream, error) {
	return &fakeStream{ctx: ctx, items: s.items}, nil
}

func (s *fakeSource) Close() {
	s.closed = true
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted [][]byte
	err       error
	done      chan struct{}
}

func (s *fakeSubmitter) SubmitVAA(_ context.Context, vaaBytes []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, vaaBytes)
	if s.done != nil {
		s.done <- struct{}{}
	}
	if s.err != nil {
		return "", s.err
	}
	v, err := vaa.Parse(vaaBytes)
	if err != nil {
		return "", err
	}
	return v.MessageHash().Hex(), nil
}

func signed(t *testing.T, chain vaaLib.ChainID, emitter byte, sequence uint64) ([]byte, VAAData) {
	t.Helper()

	g := guardiantest.New(t, 0, 1)
	v := g.Sign(vaa.Body{EmitterChain: chain, EmitterAddress: guardiantest.Emitter(emitter), Sequence: sequence}, g.All())
	raw, err := v.Marshal()
	require.NoError(t, err)

	return raw, VAAData{
		VAA:         v,
		RawBytes:    raw,
		ChainID:     uint16(chain),
		EmitterHex:  v.EmitterAddress.String(),
		Sequence:    sequence,
		MessageHash: v.MessageHash().Hex(),
	}
}

func TestNormalizeEmitterHex(t *testing.T) {
	require.Equal(t, "", normalizeEmitterHex(""))
	require.Equal(t, "00000000000000000000000000000000000000000000000000000000000000ab", normalizeEmitterHex("0xAB"))
	require.Len(t, normalizeEmitterHex(vaaLib.GovernanceEmitter.String()), 64)
}

func TestProcessorFilters(t *testing.T) {
	sub := &fakeSubmitter{}
	p := NewDefaultVAAProcessor(zap.NewNop(), VAAProcessorConfig{
		ChainIDs:       []uint16{uint16(vaaLib.ChainIDEthereum)},
		EmitterAddress: "0x0a",
	}, sub)
	ctx := context.Background()

	_, wrongChain := signed(t, vaaLib.ChainIDSolana, 0x0a, 1)
	hash, err := p.ProcessVAA(ctx, wrongChain)
	require.NoError(t, err)
	require.Empty(t, hash)

	_, wrongEmitter := signed(t, vaaLib.ChainIDEthereum, 0x0b, 1)
	hash, err = p.ProcessVAA(ctx, wrongEmitter)
	require.NoError(t, err)
	require.Empty(t, hash)

	_, match := signed(t, vaaLib.ChainIDEthereum, 0x0a, 1)
	hash, err = p.ProcessVAA(ctx, match)
	require.NoError(t, err)
	require.Equal(t, match.MessageHash, hash)
	require.Len(t, sub.submitted, 1)
}

func TestProcessorErrors(t *testing.T) {
	ctx := context.Background()
	_, data := signed(t, vaaLib.ChainIDEthereum, 1, 1)

	dup := NewDefaultVAAProcessor(zap.NewNop(), VAAProcessorConfig{}, &fakeSubmitter{err: corebridge.ErrAlreadyPosted})
	hash, err := dup.ProcessVAA(ctx, data)
	require.NoError(t, err)
	require.Equal(t, data.MessageHash, hash)

	boom := errors.New("boom")
	failing := NewDefaultVAAProcessor(zap.NewNop(), VAAProcessorConfig{}, &fakeSubmitter{err: boom})
	_, err = failing.ProcessVAA(ctx, data)
	require.ErrorIs(t, err, boom)
}

func TestNewRelayerRequiresDependencies(t *testing.T) {
	_, err := NewRelayer(zap.NewNop(), nil, NewDefaultVAAProcessor(zap.NewNop(), VAAProcessorConfig{}, &fakeSubmitter{}))
	require.Error(t, err)
	_, err = NewRelayer(zap.NewNop(), &fakeSource{}, nil)
	require.Error(t, err)
}

func TestRelayerProcessesStream(t *testing.T) {
	source := &fakeSource{items: make(chan []byte, 3)}
	sub := &fakeSubmitter{done: make(chan struct{}, 3)}
	relayer, err := NewRelayer(zap.NewNop(), source, NewDefaultVAAProcessor(zap.NewNop(), VAAProcessorConfig{}, sub))
	require.NoError(t, err)

	first, _ := signed(t, vaaLib.ChainIDEthereum, 1, 1)
	second, _ := signed(t, vaaLib.ChainIDEthereum, 1, 2)
	source.items <- first
	source.items <- []byte{0x01, 0x02}
	source.items <- second

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- relayer.Start(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-sub.done:
		case <-time.After(5 * time.Second):
			t.Fatal("VAA was not submitted")
		}
	}

	cancel()
	require.NoError(t, <-errCh)
	relayer.Close()
	require.True(t, source.closed)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.submitted, 2)
}
