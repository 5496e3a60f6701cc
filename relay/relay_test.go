package relay

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/state"
)

func newTestDB(t *testing.T) *rawdb.PebbleDB {
	t.Helper()
	db, err := rawdb.NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	deployer = common.HexToAddress("0x0000000000000000000000000000000000005c01")
	alice    = common.HexToAddress("0xa11ce")
)

func TestAddressIsDeterministic(t *testing.T) {
	r := New(newTestDB(t), deployer, 1)

	a := r.Address(alice, 1)
	require.Equal(t, a, r.Address(alice, 1))
	require.Equal(t, gethcrypto.CreateAddress2(deployer, Salt(alice, 1, 1), CodeHash.Bytes()), a)

	require.NotEqual(t, a, r.Address(alice, 2), "domain is part of the salt")
	require.NotEqual(t, a, New(newTestDB(t), deployer, 2).Address(alice, 1), "chain id is part of the salt")
	require.NotEqual(t, a, New(newTestDB(t), alice, 1).Address(alice, 1), "deployer is part of the address")
}

func TestResolveOrCreate(t *testing.T) {
	r := New(newTestDB(t), deployer, 1)
	addr := r.Address(alice, 3)
	require.False(t, r.IsAuthorized(addr))

	_, err := r.Info(addr)
	require.ErrorIs(t, err, ErrNotRelay)

	got, err := r.ResolveOrCreate(alice, 3)
	require.NoError(t, err)
	require.Equal(t, addr, got)
	require.True(t, r.IsAuthorized(addr))

	info, err := r.Info(addr)
	require.NoError(t, err)
	require.Equal(t, alice, info.OriginalAddress)
	require.Equal(t, uint64(3), info.OriginalDomain)

	again, err := r.ResolveOrCreate(alice, 3)
	require.NoError(t, err)
	require.Equal(t, addr, again)
}

func TestAuthorizationFollowsStateRevert(t *testing.T) {
	st := state.New(newTestDB(t))
	r := New(st, deployer, 1)

	snap := st.Snapshot()
	addr, err := r.ResolveOrCreate(alice, 1)
	require.NoError(t, err)
	require.True(t, r.IsAuthorized(addr))

	require.NoError(t, st.RevertToSnapshot(snap))
	require.False(t, r.IsAuthorized(addr))
	require.Equal(t, addr, r.Address(alice, 1))
}
