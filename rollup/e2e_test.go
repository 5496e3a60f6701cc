package rollup

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/shield"
)

// setupTwoDomains creates A and B at the zero root and loads a transition
// moving both when the settlement layer calls set(42) on target in A.
func setupTwoDomains(t *testing.T) (env *testEnv, a, b uint64, relay common.Address) {
	env = newTestEnv(t)
	a = env.createDomain(vkA, common.Hash{})
	b = env.createDomain(vkB, common.Hash{})

	relay, err := env.engine.CreateRelay(target, a)
	require.NoError(t, err)

	call := types.NewCall(a, target, nil, []byte("set(42)"), alice, types.SettlementDomainID, nil)
	env.load(transition(call, ok(""),
		delta(a, common.Hash{}, h("h1"), 0),
		delta(b, common.Hash{}, h("h2"), 0),
	))
	return env, a, b, relay
}

func TestAtomicCrossDomainCall(t *testing.T) {
	env, a, b, relay := setupTwoDomains(t)

	_, err := env.sim.Transact(alice, relay, nil, []byte("set(42)"))
	require.NoError(t, err)
	require.Equal(t, h("h1"), env.domain(a).StateRoot)
	require.Equal(t, h("h2"), env.domain(b).StateRoot)
	require.False(t, env.st.Dirty(), "the transaction committed")
}

func TestCrossDomainCallAfterOutOfBandUpdate(t *testing.T) {
	env, a, b, relay := setupTwoDomains(t)
	require.NoError(t, env.engine.SetStateRoot(owner, b, h("moved")))

	_, err := env.sim.Transact(alice, relay, nil, []byte("set(42)"))
	require.ErrorIs(t, err, ErrTransitionNotFound)
	require.Equal(t, common.Hash{}, env.domain(a).StateRoot)
	require.Equal(t, h("moved"), env.domain(b).StateRoot)
}

func TestShieldedLoad(t *testing.T) {
	env := newTestEnv(t)
	a := env.createDomain(vkA, h("a0"))
	sh := shield.New(env.st, env.sim, env.engine, shield.Config{})

	tx := types.NewTx(a, []byte("tx"))
	ts := []*types.Transition{transition(tx, ok("shielded"), delta(a, h("a0"), h("a1"), 0))}
	proof := env.proveLoad(ts...)
	secret := common.HexToHash("0x5ec7e7")

	require.NoError(t, sh.Commit(alice, shield.Commitment(ts, proof, secret)))
	require.ErrorIs(t, sh.Reveal(alice, ts, proof, secret), shield.ErrCommitmentTooNew)

	env.advance(1)
	require.NoError(t, sh.Reveal(alice, ts, proof, secret))
	require.Equal(t, uint64(1), env.cacheCount(tx))
	require.ErrorIs(t, sh.Reveal(alice, ts, proof, secret), shield.ErrCommitmentNotFound)

	ret, err := env.engine.ExecuteDomainTx(a, []byte("tx"))
	require.NoError(t, err)
	require.Equal(t, []byte("shielded"), ret)
}

func TestShieldedLoadWithBadProofKeepsCommitment(t *testing.T) {
	env := newTestEnv(t)
	a := env.createDomain(vkA, h("a0"))
	sh := shield.New(env.st, env.sim, env.engine, shield.Config{})

	ts := []*types.Transition{transition(types.NewTx(a, nil), ok(""), delta(a, h("a0"), h("a1"), 0))}
	junk := []byte("junk")
	secret := common.HexToHash("0x01")
	require.NoError(t, sh.Commit(alice, shield.Commitment(ts, junk, secret)))
	env.advance(1)

	require.ErrorIs(t, sh.Reveal(alice, ts, junk, secret), ErrInvalidProof)
	_, err := rawdb.ReadCommitment(env.st, shield.Commitment(ts, junk, secret))
	require.NoError(t, err)
}

func TestEngineStatePersists(t *testing.T) {
	dir := t.TempDir()
	db, err := rawdb.NewPebbleDB(dir, 0)
	require.NoError(t, err)

	env := openTestEnv(t, db, DefaultConfig())
	a := env.createDomain(vkA, h("a0"))
	tx := types.NewTx(a, []byte("tx"))
	env.advance(4)
	env.load(transition(tx, ok(""), delta(a, h("a0"), h("a1"), 0)))
	relay, err := env.engine.CreateRelay(alice, a)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = rawdb.NewPebbleDB(dir, 0)
	require.NoError(t, err)
	defer db.Close()
	env = openTestEnv(t, db, DefaultConfig())

	require.Equal(t, uint64(4), env.sim.Tick())
	require.Equal(t, h("a0"), env.domain(a).StateRoot)
	require.True(t, env.engine.IsRelay(relay))
	inserted, err := env.engine.CacheInsertionTime(tx.Hash(), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(4), inserted)

	_, err = env.engine.ExecuteDomainTx(a, []byte("tx"))
	require.NoError(t, err)
	require.Equal(t, h("a1"), env.domain(a).StateRoot)
}
