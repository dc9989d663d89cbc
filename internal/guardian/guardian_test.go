package guardian_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/ledger"
)

func TestQuorum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, quorum int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{6, 5},
		{7, 5},
		{13, 9},
		{19, 13},
		{20, 14},
	}
	for _, tt := range tests {
		require.Equal(t, tt.quorum, guardian.Quorum(tt.n), "n=%d", tt.n)
	}
}

func TestIsActive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		set    guardian.Set
		at     uint32
		active bool
	}{
		{"unbounded", guardian.Set{Index: 3, ExpirationTime: 0}, 1 << 31, true},
		{"before expiry", guardian.Set{Index: 3, ExpirationTime: 100}, 99, true},
		{"at expiry", guardian.Set{Index: 3, ExpirationTime: 100}, 100, true},
		{"after expiry", guardian.Set{Index: 3, ExpirationTime: 100}, 101, false},
		{"legacy first set", guardian.Set{Index: 0, CreationTime: 1628099186}, 0, false},
		{"other first set", guardian.Set{Index: 0, CreationTime: 1628099187}, 0, true},
		{"legacy time other index", guardian.Set{Index: 1, CreationTime: 1628099186}, 0, true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.active, tt.set.IsActive(tt.at), tt.name)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")

	require.NoError(t, (&guardian.Set{Keys: []common.Address{a, b}}).Validate())
	require.ErrorIs(t, (&guardian.Set{}).Validate(), guardian.ErrInvalidGuardianSet)
	require.ErrorIs(t, (&guardian.Set{Keys: []common.Address{a, {}}}).Validate(), guardian.ErrInvalidGuardianSet)
	require.ErrorIs(t, (&guardian.Set{Keys: []common.Address{a, b, a}}).Validate(), guardian.ErrInvalidGuardianSet)
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := guardian.NewRegistry(ledger.NewMemoryStore())

	_, err := registry.Current(ctx)
	require.ErrorIs(t, err, guardian.ErrGuardianSetNotFound)

	genesis := guardiantest.New(t, 0, 3)
	require.NoError(t, registry.Initialize(ctx, guardian.Set{Index: 0, Keys: genesis.Addresses(), CreationTime: 10}))
	require.ErrorIs(t, registry.Initialize(ctx, guardian.Set{Index: 0, Keys: genesis.Addresses()}), guardian.ErrAlreadyInitialized)

	current, err := registry.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, genesis.Addresses(), current.Keys)
	require.Zero(t, current.ExpirationTime)

	next := guardiantest.New(t, 1, 5)
	err = registry.Install(ctx, guardian.Set{Index: 2, Keys: next.Addresses()}, 1000, 86400)
	require.ErrorIs(t, err, guardian.ErrInvalidGuardianSetIndex)
	err = registry.Install(ctx, guardian.Set{Index: 0, Keys: next.Addresses()}, 1000, 86400)
	require.ErrorIs(t, err, guardian.ErrInvalidGuardianSetIndex)

	require.NoError(t, registry.Install(ctx, guardian.Set{Index: 1, Keys: next.Addresses()}, 1000, 86400))

	index, err := registry.CurrentIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), index)

	old, err := registry.Get(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(1000+86400), old.ExpirationTime)
	require.Equal(t, genesis.Addresses(), old.Keys)

	installed, err := registry.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1000), installed.CreationTime)
	require.Zero(t, installed.ExpirationTime)

	active, err := registry.IsActive(ctx, 0, 1000+86400)
	require.NoError(t, err)
	require.True(t, active)
	active, err = registry.IsActive(ctx, 0, 1000+86401)
	require.NoError(t, err)
	require.False(t, active)
	active, err = registry.IsActive(ctx, 1, 1<<31)
	require.NoError(t, err)
	require.True(t, active)

	_, err = registry.Get(ctx, 7)
	require.ErrorIs(t, err, guardian.ErrGuardianSetNotFound)
}

func TestInstallOpsConflictOnRace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	registry := guardian.NewRegistry(store)

	genesis := guardiantest.New(t, 0, 1)
	require.NoError(t, registry.Initialize(ctx, guardian.Set{Index: 0, Keys: genesis.Addresses()}))

	first, err := registry.InstallOps(ctx, guardian.Set{Index: 1, Keys: guardiantest.New(t, 1, 1).Addresses()}, 5, 10)
	require.NoError(t, err)
	second, err := registry.InstallOps(ctx, guardian.Set{Index: 1, Keys: guardiantest.New(t, 1, 2).Addresses()}, 5, 10)
	require.NoError(t, err)

	require.NoError(t, store.Apply(ctx, first...))
	require.Error(t, store.Apply(ctx, second...))

	set, err := registry.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
}
