// Package guardian tracks the versioned guardian sets VAAs are verified against.
package guardian

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// The first mainnet guardian set was created with a zero expiration time and
// can never be expired by an update, so it is treated as inactive outright.
const (
	legacyIndex        uint32 = 0
	legacyCreationTime uint32 = 1628099186
)

var (
	ErrGuardianSetNotFound     = errors.New("guardian set not found")
	ErrInvalidGuardianSetIndex = errors.New("invalid guardian set index")
	ErrInvalidGuardianSet      = errors.New("invalid guardian set")
	ErrAlreadyInitialized      = errors.New("guardian sets already initialized")
)

// Set is one version of the guardian set.
type Set struct {
	Index          uint32
	Keys           []common.Address
	CreationTime   uint32
	ExpirationTime uint32
}

// IsActive reports whether signatures of this set are accepted at the given unix time.
func (s *Set) IsActive(at uint32) bool {
	if s.Index == legacyIndex && s.CreationTime == legacyCreationTime {
		return false
	}
	return s.ExpirationTime == 0 || s.ExpirationTime >= at
}

// Quorum returns the number of signatures required from this set.
func (s *Set) Quorum() int {
	return Quorum(len(s.Keys))
}

// Quorum returns floor(2n/3)+1.
func Quorum(n int) int {
	return n*2/3 + 1
}

// Validate checks the key list of a set about to be installed.
func (s *Set) Validate() error {
	if len(s.Keys) == 0 {
		return fmt.Errorf("%w: no guardian keys", ErrInvalidGuardianSet)
	}
	if len(s.Keys) > 255 {
		return fmt.Errorf("%w: %d guardian keys", ErrInvalidGuardianSet, len(s.Keys))
	}

	seen := make(map[common.Address]bool, len(s.Keys))
	for i, key := range s.Keys {
		if key == (common.Address{}) {
			return fmt.Errorf("%w: guardian key %d is zero", ErrInvalidGuardianSet, i)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate guardian key %s", ErrInvalidGuardianSet, key.Hex())
		}
		seen[key] = true
	}
	return nil
}
