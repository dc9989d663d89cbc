// Package guardiantest builds guardian keys and signed VAAs for tests.
package guardiantest

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/vaa"
)

// Guardians is a mock guardian set able to sign VAAs.
type Guardians struct {
	SetIndex uint32
	Keys     []*ecdsa.PrivateKey
}

// New generates n random guardian keys for the given set index.
func New(t testing.TB, setIndex uint32, n int) *Guardians {
	t.Helper()

	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
	}

	return &Guardians{SetIndex: setIndex, Keys: keys}
}

// Addresses returns the ethereum addresses of the guardian keys in set order.
func (g *Guardians) Addresses() []common.Address {
	addrs := make([]common.Address, len(g.Keys))
	for i, key := range g.Keys {
		addrs[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	return addrs
}

// All returns the indices 0..n-1.
func (g *Guardians) All() []int {
	indices := make([]int, len(g.Keys))
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// Sign signs the body with the guardians at the given indices using the Wormhole SDK.
func (g *Guardians) Sign(body vaa.Body, indices []int) *vaa.VAA {
	v := &vaa.VAA{
		Version:          vaa.SupportedVersion,
		GuardianSetIndex: g.SetIndex,
		Body:             body,
	}

	sdkVAA := v.SDK()
	for _, i := range indices {
		sdkVAA.AddSignature(g.Keys[i], uint8(i))
	}

	return vaa.FromSDK(sdkVAA)
}

// SignBytes signs the body and returns the wire encoding.
func (g *Guardians) SignBytes(t testing.TB, body vaa.Body, indices []int) []byte {
	t.Helper()

	raw, err := g.Sign(body, indices).Marshal()
	require.NoError(t, err)
	return raw
}

// GovernanceVAA signs a governance payload emitted by the SDK's governance emitter.
func (g *Guardians) GovernanceVAA(t testing.TB, sequence uint64, payload []byte) []byte {
	t.Helper()

	sdkVAA := vaaLib.CreateGovernanceVAA(time.Unix(1700000000, 0), 0, sequence, g.SetIndex, payload)
	for _, i := range g.All() {
		sdkVAA.AddSignature(g.Keys[i], uint8(i))
	}

	raw, err := sdkVAA.Marshal()
	require.NoError(t, err)
	return raw
}

// Emitter returns a deterministic 32-byte emitter address ending in b.
func Emitter(b byte) vaaLib.Address {
	var addr vaaLib.Address
	addr[31] = b
	return addr
}
