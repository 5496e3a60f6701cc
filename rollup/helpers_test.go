package rollup

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/state"
	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/crypto"
	"github.com/eth2030/syncrollups/host"
	"github.com/eth2030/syncrollups/log"
	"github.com/eth2030/syncrollups/metrics"
	"github.com/eth2030/syncrollups/proofs"
	"github.com/eth2030/syncrollups/relay"
)

func newTestDB(t *testing.T) *rawdb.PebbleDB {
	t.Helper()
	db, err := rawdb.NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

const testChainID = 1

var (
	owner  = common.HexToAddress("0x000000000000000000000000000000000000000e")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	target = common.HexToAddress("0x000000000000000000000000000000000000face")

	vkA = common.HexToHash("0xa0")
	vkB = common.HexToHash("0xb0")
	vkC = common.HexToHash("0xc0")
)

// h returns a distinct test root.
func h(s string) common.Hash { return crypto.Keccak256Hash([]byte(s)) }

type testEnv struct {
	t       *testing.T
	db      rawdb.Database
	st      *state.StateDB
	sim     *host.Simulator
	relays  *relay.Registry
	prover  *proofs.HashVerifier
	metrics *metrics.Metrics
	engine  *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, DefaultConfig())
}

func newTestEnvWithConfig(t *testing.T, config Config) *testEnv {
	t.Helper()
	return openTestEnv(t, newTestDB(t), config)
}

func openTestEnv(t *testing.T, db rawdb.Database, config Config) *testEnv {
	t.Helper()
	st := state.New(db)
	sim, err := host.New(st, testChainID, common.HexToHash("0x5eed"))
	require.NoError(t, err)
	relays := relay.New(st, config.Address, testChainID)
	prover := proofs.NewHashVerifier([]byte("test prover"))
	m := metrics.New(nil)
	eng, err := New(config, Backend{
		State:    st,
		Host:     sim,
		Verifier: prover,
		Relays:   relays,
		Metrics:  m,
		Logger:   log.Discard(),
	})
	require.NoError(t, err)
	sim.SetRelayHandler(eng)
	return &testEnv{t: t, db: db, st: st, sim: sim, relays: relays, prover: prover, metrics: m, engine: eng}
}

func (env *testEnv) createDomain(vk, root common.Hash) uint64 {
	env.t.Helper()
	id, err := env.engine.CreateDomain(owner, vk, root)
	require.NoError(env.t, err)
	return id
}

func (env *testEnv) domain(id uint64) *types.Domain {
	env.t.Helper()
	d, err := env.engine.Domain(id)
	require.NoError(env.t, err)
	return d
}

func (env *testEnv) fund(addr common.Address, amount uint64) {
	env.t.Helper()
	require.NoError(env.t, env.sim.SetBalance(addr, uint256.NewInt(amount)))
}

func (env *testEnv) deposit(id uint64, amount uint64) {
	env.t.Helper()
	env.fund(owner, amount)
	require.NoError(env.t, env.engine.Deposit(owner, id, uint256.NewInt(amount)))
}

func (env *testEnv) hostBalance(addr common.Address) uint64 {
	env.t.Helper()
	bal, err := env.sim.Balance(addr)
	require.NoError(env.t, err)
	return bal.Uint64()
}

// proveLoad returns a valid proof for loading ts.
func (env *testEnv) proveLoad(ts ...*types.Transition) []byte {
	env.t.Helper()
	input, err := env.engine.ExecutionPublicInput(ts)
	require.NoError(env.t, err)
	return env.prover.Prove(input)
}

func (env *testEnv) load(ts ...*types.Transition) {
	env.t.Helper()
	require.NoError(env.t, env.engine.LoadExecutions(ts, env.proveLoad(ts...)))
}

func (env *testEnv) proveBatch(cs []types.StateCommitment, blobs uint64, shared []byte) []byte {
	env.t.Helper()
	input, err := env.engine.BatchPublicInput(cs, blobs, shared)
	require.NoError(env.t, err)
	return env.prover.Prove(input)
}

func (env *testEnv) advance(n uint64) {
	env.t.Helper()
	require.NoError(env.t, env.sim.AdvanceTick(n))
}

func (env *testEnv) cacheCount(action types.Action) uint64 {
	env.t.Helper()
	n, err := env.engine.CacheCount(action.Hash())
	require.NoError(env.t, err)
	return n
}

func delta(id uint64, cur, next common.Hash, balance int64) types.StateDelta {
	return types.StateDelta{DomainID: id, CurrentRoot: cur, NewRoot: next, BalanceDelta: big.NewInt(balance)}
}

func transition(trigger, next types.Action, deltas ...types.StateDelta) *types.Transition {
	return &types.Transition{Deltas: deltas, ActionHash: trigger.Hash(), NextAction: next}
}

func ok(data string) types.Action { return types.NewResult(0, false, []byte(data)) }
