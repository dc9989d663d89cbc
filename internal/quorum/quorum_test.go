package quorum_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/quorum"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

func body() vaa.Body {
	return vaa.Body{
		Timestamp:        1700000000,
		Nonce:            1,
		EmitterChain:     vaaLib.ChainIDEthereum,
		EmitterAddress:   guardiantest.Emitter(0x42),
		Sequence:         99,
		ConsistencyLevel: 1,
		Payload:          []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func setFor(g *guardiantest.Guardians) *guardian.Set {
	return &guardian.Set{Index: g.SetIndex, Keys: g.Addresses(), CreationTime: 1}
}

func TestVerifyQuorumBoundary(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 5, 19)
	set := setFor(guardians)
	b := body()

	thirteen := []int{0, 1, 3, 4, 6, 9, 10, 12, 13, 15, 16, 17, 18}
	require.Len(t, thirteen, 13)

	signed := guardians.Sign(b, thirteen)
	verified, err := quorum.Verify(signed.Digest(), set, signed.Signatures, 1700000000)
	require.NoError(t, err)
	require.Equal(t, 13, quorum.Count(verified))
	require.True(t, verified[18])
	require.False(t, verified[2])

	signed = guardians.Sign(b, thirteen[:12])
	_, err = quorum.Verify(signed.Digest(), set, signed.Signatures, 1700000000)
	require.ErrorIs(t, err, quorum.ErrQuorumNotMet)
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 4)
	set := setFor(guardians)
	b := body()

	t.Run("duplicate index", func(t *testing.T) {
		signed := guardians.Sign(b, []int{0, 1, 2})
		signed.Signatures = append(signed.Signatures, signed.Signatures[2])
		_, err := quorum.Verify(signed.Digest(), set, signed.Signatures, 0)
		require.ErrorIs(t, err, quorum.ErrInvalidSignature)
	})

	t.Run("decreasing index", func(t *testing.T) {
		signed := guardians.Sign(b, []int{2, 1, 0})
		_, err := quorum.Verify(signed.Digest(), set, signed.Signatures, 0)
		require.ErrorIs(t, err, quorum.ErrInvalidSignature)
	})

	t.Run("index out of range", func(t *testing.T) {
		signed := guardians.Sign(b, []int{0, 1, 2})
		signed.Signatures[2].GuardianIndex = 7
		_, err := quorum.Verify(signed.Digest(), set, signed.Signatures, 0)
		require.ErrorIs(t, err, quorum.ErrInvalidSignature)
	})

	t.Run("signature by wrong guardian", func(t *testing.T) {
		signed := guardians.Sign(b, []int{0, 1, 2})
		signed.Signatures[1].GuardianIndex = 3
		signed.Signatures[2].GuardianIndex = 3
		signed.Signatures = signed.Signatures[:2]
		_, err := quorum.Check(signed.Digest(), set, signed.Signatures)
		require.ErrorIs(t, err, quorum.ErrInvalidSignature)
	})

	t.Run("different body", func(t *testing.T) {
		signed := guardians.Sign(b, []int{0, 1, 2})
		other := b
		other.Sequence++
		_, err := quorum.Verify(other.Digest(), set, signed.Signatures, 0)
		require.ErrorIs(t, err, quorum.ErrInvalidSignature)
	})

	t.Run("expired set", func(t *testing.T) {
		expired := *set
		expired.ExpirationTime = 100
		signed := guardians.Sign(b, guardians.All())
		_, err := quorum.Verify(signed.Digest(), &expired, signed.Signatures, 101)
		require.ErrorIs(t, err, quorum.ErrGuardianSetExpired)

		_, err = quorum.Verify(signed.Digest(), &expired, signed.Signatures, 100)
		require.NoError(t, err)
	})
}

func TestRecoverSignerAcceptsEthereumRecoveryID(t *testing.T) {
	t.Parallel()

	guardians := guardiantest.New(t, 0, 1)
	signed := guardians.Sign(body(), guardians.All())

	sig := signed.Signatures[0].Signature
	sig[64] += 27

	signer, err := quorum.RecoverSigner(signed.Digest(), sig)
	require.NoError(t, err)
	require.Equal(t, guardians.Addresses()[0], signer)
}
