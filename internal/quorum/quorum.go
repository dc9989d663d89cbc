// Package quorum verifies guardian signatures over a VAA digest.
package quorum

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

// recoveryIDIndex is the byte position of v in r||s||v.
const recoveryIDIndex = 64

var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrQuorumNotMet       = errors.New("quorum not met")
	ErrGuardianSetExpired = errors.New("guardian set expired")
)

// Quorum returns the number of valid signatures required from n guardians.
func Quorum(n int) int {
	return guardian.Quorum(n)
}

// RecoverSigner returns the address that produced sig over digest.
// Both raw (0/1) and ethereum (27/28) recovery ids are accepted.
func RecoverSigner(digest common.Hash, sig [65]byte) (common.Address, error) {
	normalized := sig
	switch normalized[recoveryIDIndex] {
	case 27:
		normalized[recoveryIDIndex] = 0
	case 28:
		normalized[recoveryIDIndex] = 1
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized[:])
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Check verifies every signature against the guardian set and returns one
// flag per guardian key marking the guardians that signed. Guardian indices
// must be strictly increasing. A single bad signature fails the whole check.
// Quorum and guardian set activity are not checked.
func Check(digest common.Hash, set *guardian.Set, sigs []vaa.Signature) ([]bool, error) {
	verified := make([]bool, len(set.Keys))

	for i, sig := range sigs {
		if i > 0 && sig.GuardianIndex <= sigs[i-1].GuardianIndex {
			return nil, fmt.Errorf("%w: guardian indices not strictly increasing at position %d", ErrInvalidSignature, i)
		}
		if int(sig.GuardianIndex) >= len(set.Keys) {
			return nil, fmt.Errorf("%w: guardian index %d out of range for set %d with %d keys",
				ErrInvalidSignature, sig.GuardianIndex, set.Index, len(set.Keys))
		}

		signer, err := RecoverSigner(digest, sig.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: can't recover signer of signature %d: %v", ErrInvalidSignature, i, err)
		}
		if signer != set.Keys[sig.GuardianIndex] {
			return nil, fmt.Errorf("%w: signature %d recovers to %s, guardian %d is %s",
				ErrInvalidSignature, i, signer.Hex(), sig.GuardianIndex, set.Keys[sig.GuardianIndex].Hex())
		}
		verified[sig.GuardianIndex] = true
	}

	return verified, nil
}

// Count returns the number of set flags.
func Count(verified []bool) int {
	n := 0
	for _, v := range verified {
		if v {
			n++
		}
	}
	return n
}

// Verify runs Check and then requires quorum and an active guardian set at time now.
func Verify(digest common.Hash, set *guardian.Set, sigs []vaa.Signature, now uint32) ([]bool, error) {
	verified, err := Check(digest, set, sigs)
	if err != nil {
		return nil, err
	}
	if err = Require(set, verified, now); err != nil {
		return nil, err
	}
	return verified, nil
}

// Require checks that the verified flags reach quorum and that set is active at now.
func Require(set *guardian.Set, verified []bool, now uint32) error {
	if got, want := Count(verified), set.Quorum(); got < want {
		return fmt.Errorf("%w: required %d, got %d", ErrQuorumNotMet, want, got)
	}
	if !set.IsActive(now) {
		return fmt.Errorf("%w: set %d expired at %d", ErrGuardianSetExpired, set.Index, set.ExpirationTime)
	}
	return nil
}
