package vaa_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

func testBody() vaa.Body {
	return vaa.Body{
		Timestamp:        1700000000,
		Nonce:            420,
		EmitterChain:     vaaLib.ChainIDEthereum,
		EmitterAddress:   guardiantest.Emitter(0xaa),
		Sequence:         7,
		ConsistencyLevel: 15,
		Payload:          []byte("All your base are belong to us."),
	}
}

func TestBodyLayout(t *testing.T) {
	body := testBody()
	raw := body.Bytes()

	require.Len(t, raw, vaa.BodyHeaderLength+len(body.Payload))
	require.Equal(t, "6553f100", hex.EncodeToString(raw[0:4]))
	require.Equal(t, "000001a4", hex.EncodeToString(raw[4:8]))
	require.Equal(t, "0002", hex.EncodeToString(raw[8:10]))
	require.Equal(t, byte(0xaa), raw[41])
	require.Equal(t, "0000000000000007", hex.EncodeToString(raw[42:50]))
	require.Equal(t, byte(15), raw[50])
	require.Equal(t, body.Payload, raw[vaa.BodyHeaderLength:])

	parsed, err := vaa.ParseBody(raw)
	require.NoError(t, err)
	require.Equal(t, body, *parsed)
}

func TestMessageHashDeterministic(t *testing.T) {
	body := testBody()
	require.Equal(t, body.MessageHash(), body.MessageHash())
	require.Equal(t, crypto.Keccak256Hash(body.Bytes()), body.MessageHash())
	require.Equal(t, crypto.Keccak256Hash(body.MessageHash().Bytes()), body.Digest())
}

func TestMessageHashDistinguishesFields(t *testing.T) {
	base := testBody()
	mutations := []func(b *vaa.Body){
		func(b *vaa.Body) { b.Timestamp++ },
		func(b *vaa.Body) { b.Nonce++ },
		func(b *vaa.Body) { b.EmitterChain++ },
		func(b *vaa.Body) { b.EmitterAddress[0] = 1 },
		func(b *vaa.Body) { b.Sequence++ },
		func(b *vaa.Body) { b.ConsistencyLevel++ },
		func(b *vaa.Body) { b.Payload = append([]byte{}, b.Payload...); b.Payload[0] ^= 0xff },
		func(b *vaa.Body) { b.Payload = nil },
	}

	seen := map[string]bool{base.MessageHash().Hex(): true}
	for i, mutate := range mutations {
		b := base
		mutate(&b)
		h := b.MessageHash().Hex()
		require.False(t, seen[h], "mutation %d collided", i)
		seen[h] = true
	}
}

func TestDigestMatchesSDK(t *testing.T) {
	guardians := guardiantest.New(t, 0, 3)
	signed := guardians.Sign(testBody(), guardians.All())
	require.Len(t, signed.Signatures, 3)

	addrs := guardians.Addresses()
	for _, sig := range signed.Signatures {
		pub, err := crypto.SigToPub(signed.Digest().Bytes(), sig.Signature[:])
		require.NoError(t, err)
		require.Equal(t, addrs[sig.GuardianIndex], crypto.PubkeyToAddress(*pub))
	}
}

func TestParseMatchesSDKEncoding(t *testing.T) {
	guardians := guardiantest.New(t, 4, 2)
	signed := guardians.Sign(testBody(), guardians.All())

	sdkRaw, err := signed.SDK().Marshal()
	require.NoError(t, err)

	ours, err := signed.Marshal()
	require.NoError(t, err)
	require.True(t, bytes.Equal(sdkRaw, ours))

	parsed, err := vaa.Parse(sdkRaw)
	require.NoError(t, err)
	require.Equal(t, uint32(4), parsed.GuardianSetIndex)
	require.Equal(t, signed.Signatures, parsed.Signatures)
	require.Equal(t, signed.Body, parsed.Body)
}

func TestParseMalformed(t *testing.T) {
	guardians := guardiantest.New(t, 0, 1)
	raw := guardians.SignBytes(t, testBody(), guardians.All())

	wrongVersion := append([]byte{}, raw...)
	wrongVersion[0] = 2

	tooManySigs := append([]byte{}, raw...)
	tooManySigs[5] = 200

	for name, data := range map[string][]byte{
		"empty":          nil,
		"short header":   raw[:5],
		"wrong version":  wrongVersion,
		"truncated sigs": raw[:6+30],
		"sig count lies": tooManySigs,
		"truncated body": raw[:6+vaa.SignatureLength+vaa.BodyHeaderLength-1],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := vaa.Parse(data)
			require.Error(t, err)
			require.True(t, errors.Is(err, vaa.ErrMalformedVAA))
		})
	}
}

func TestParseEmptyPayload(t *testing.T) {
	body := testBody()
	body.Payload = nil

	raw, err := (&vaa.VAA{Version: vaa.SupportedVersion, Body: body}).Marshal()
	require.NoError(t, err)

	parsed, err := vaa.Parse(raw)
	require.NoError(t, err)
	require.Empty(t, parsed.Payload)
	require.Equal(t, body.MessageHash(), parsed.MessageHash())
}
