package corebridge_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/quorum"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

const genesisTime = 1700000000

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newBridge(t *testing.T, guardians *guardiantest.Guardians) (*corebridge.Bridge, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(genesisTime, 0)}
	bridge := corebridge.New(ledger.NewMemoryStore(), zap.NewNop(), corebridge.WithClock(clock.Now))
	err := bridge.Initialize(context.Background(), corebridge.InitParams{
		GuardianSet: guardian.Set{Index: guardians.SetIndex, Keys: guardians.Addresses()},
		Config:      corebridge.Config{GuardianSetTTL: 86400, MessageFee: 100},
	})
	require.NoError(t, err)
	return bridge, clock
}

func testBody(sequence uint64) vaa.Body {
	return vaa.Body{
		Timestamp:        genesisTime,
		Nonce:            7,
		EmitterChain:     vaaLib.ChainIDEthereum,
		EmitterAddress:   guardiantest.Emitter(0xee),
		Sequence:         sequence,
		ConsistencyLevel: 200,
		Payload:          []byte("hello from ethereum"),
	}
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 3)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	cfg, err := bridge.Config(ctx)
	require.NoError(t, err)
	require.Equal(t, corebridge.Config{GuardianSetTTL: 86400, MessageFee: 100}, *cfg)

	set, err := bridge.Guardians().Current(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(genesisTime), set.CreationTime)

	err = bridge.Initialize(ctx, corebridge.InitParams{
		GuardianSet: guardian.Set{Index: 0, Keys: guardians.Addresses()},
	})
	require.ErrorIs(t, err, corebridge.ErrAlreadyInitialized)

	uninitialized := corebridge.New(ledger.NewMemoryStore(), zap.NewNop())
	_, err = uninitialized.Config(ctx)
	require.ErrorIs(t, err, corebridge.ErrNotInitialized)
}

func TestVerifyAndPostQuorumScenario(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 5, 19)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	signers := []int{1, 2, 3, 4, 6, 8, 9, 11, 12, 13, 15, 17, 18}

	body := testBody(1)
	posted, err := bridge.VerifyAndPost(ctx, guardians.SignBytes(t, body, signers))
	require.NoError(t, err)
	require.Equal(t, body.MessageHash(), posted.MessageHash)
	require.Equal(t, uint32(5), posted.GuardianSetIndex)

	stored, err := bridge.PostedVAA(ctx, body.MessageHash())
	require.NoError(t, err)
	require.Equal(t, body, stored.Body)

	sigSet, err := bridge.SignatureSet(ctx, body.MessageHash(), 5)
	require.NoError(t, err)
	require.Equal(t, 13, quorum.Count(sigSet.Verified))

	short := testBody(2)
	_, err = bridge.VerifyAndPost(ctx, guardians.SignBytes(t, short, signers[:12]))
	require.ErrorIs(t, err, quorum.ErrQuorumNotMet)

	_, err = bridge.PostedVAA(ctx, short.MessageHash())
	require.ErrorIs(t, err, corebridge.ErrPostedVAANotFound)
}

func TestVerifyAndPostRejects(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 4)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	raw := guardians.SignBytes(t, testBody(1), guardians.All())
	_, err := bridge.VerifyAndPost(ctx, raw)
	require.NoError(t, err)

	_, err = bridge.VerifyAndPost(ctx, raw)
	require.ErrorIs(t, err, corebridge.ErrAlreadyPosted)

	_, err = bridge.VerifyAndPost(ctx, raw[:20])
	require.ErrorIs(t, err, vaa.ErrMalformedVAA)

	other := guardiantest.New(t, 3, 4)
	_, err = bridge.VerifyAndPost(ctx, other.SignBytes(t, testBody(2), other.All()))
	require.ErrorIs(t, err, guardian.ErrGuardianSetNotFound)

	forged := guardiantest.New(t, 0, 4)
	_, err = bridge.VerifyAndPost(ctx, forged.SignBytes(t, testBody(3), forged.All()))
	require.ErrorIs(t, err, quorum.ErrInvalidSignature)

	tampered := append([]byte{}, guardians.SignBytes(t, testBody(4), guardians.All())...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = bridge.VerifyAndPost(ctx, tampered)
	require.ErrorIs(t, err, quorum.ErrInvalidSignature)
}

func TestExpiredGuardianSet(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 3)
	bridge, clock := newBridge(t, guardians)
	ctx := context.Background()

	next := guardiantest.New(t, 1, 3)
	require.NoError(t, bridge.Guardians().Install(ctx, guardian.Set{Index: 1, Keys: next.Addresses()}, bridge.Now(), 86400))

	// The superseded set keeps signing until its TTL runs out.
	clock.now = clock.now.Add(86400 * time.Second)
	_, err := bridge.VerifyAndPost(ctx, guardians.SignBytes(t, testBody(1), guardians.All()))
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Second)
	_, err = bridge.VerifyAndPost(ctx, guardians.SignBytes(t, testBody(2), guardians.All()))
	require.ErrorIs(t, err, quorum.ErrGuardianSetExpired)

	_, err = bridge.VerifySignatures(ctx, testBody(2), 0, guardians.Sign(testBody(2), guardians.All()).Signatures)
	require.ErrorIs(t, err, quorum.ErrGuardianSetExpired)

	_, err = bridge.VerifyAndPost(ctx, next.SignBytes(t, testBody(2), next.All()))
	require.NoError(t, err)
}

func TestIncrementalVerification(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 4)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	body := testBody(9)
	signed := guardians.Sign(body, guardians.All())

	sigSet, err := bridge.VerifySignatures(ctx, body, 0, signed.Signatures[:2])
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, false, false}, sigSet.Verified)

	_, err = bridge.PostVAA(ctx, body, 0)
	require.ErrorIs(t, err, quorum.ErrQuorumNotMet)

	sigSet, err = bridge.VerifySignatures(ctx, body, 0, signed.Signatures[3:])
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, false, true}, sigSet.Verified)

	mismatched := body
	mismatched.Payload = []byte("something else")
	_, err = bridge.PostVAA(ctx, mismatched, 0)
	require.ErrorIs(t, err, corebridge.ErrSignatureSetNotFound)

	posted, err := bridge.PostVAA(ctx, body, 0)
	require.NoError(t, err)
	require.Equal(t, body.MessageHash(), posted.MessageHash)

	_, err = bridge.PostVAA(ctx, body, 0)
	require.ErrorIs(t, err, corebridge.ErrAlreadyPosted)

	_, err = bridge.VerifySignatures(ctx, body, 0, guardians.Sign(mismatched, []int{2}).Signatures)
	require.ErrorIs(t, err, quorum.ErrInvalidSignature)
}

func TestClosePostedVAA(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 1)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	body := testBody(1)
	_, err := bridge.VerifyAndPost(ctx, guardians.SignBytes(t, body, guardians.All()))
	require.NoError(t, err)

	require.NoError(t, bridge.ClosePostedVAA(ctx, body.MessageHash()))

	_, err = bridge.PostedVAA(ctx, body.MessageHash())
	require.ErrorIs(t, err, corebridge.ErrPostedVAANotFound)
	_, err = bridge.SignatureSet(ctx, body.MessageHash(), 0)
	require.ErrorIs(t, err, corebridge.ErrSignatureSetNotFound)

	err = bridge.ClosePostedVAA(ctx, body.MessageHash())
	require.ErrorIs(t, err, corebridge.ErrPostedVAANotFound)
}

type transfer struct {
	Amount uint64
}

func parseTransfer(payload []byte) (transfer, error) {
	if len(payload) != 8 {
		return transfer{}, errors.New("bad transfer")
	}
	return transfer{Amount: binary.BigEndian.Uint64(payload)}, nil
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 1)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	body := testBody(1)
	body.Payload = binary.BigEndian.AppendUint64(nil, 12345)
	posted, err := bridge.VerifyAndPost(ctx, guardians.SignBytes(t, body, guardians.All()))
	require.NoError(t, err)

	tr, err := corebridge.DecodePayload(posted, parseTransfer)
	require.NoError(t, err)
	require.Equal(t, uint64(12345), tr.Amount)
}

func TestSetMessageFeeOp(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 1)
	bridge, _ := newBridge(t, guardians)
	ctx := context.Background()

	op, err := bridge.SetMessageFeeOp(ctx, 777)
	require.NoError(t, err)
	stale, err := bridge.SetMessageFeeOp(ctx, 888)
	require.NoError(t, err)

	require.NoError(t, bridge.Store().Apply(ctx, op))
	require.ErrorIs(t, bridge.Store().Apply(ctx, stale), ledger.ErrConflict)

	cfg, err := bridge.Config(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(777), cfg.MessageFee)
	require.Equal(t, uint32(86400), cfg.GuardianSetTTL)
}
