package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/rollup"
	"github.com/eth2030/syncrollups/shield"
)

const (
	ownerHex = "0x000000000000000000000000000000000000000e"
	userHex  = "0x00000000000000000000000000000000000a11ce"
	appHex   = "0x00000000000000000000000000000000000000d0"
)

// cliRunner runs the command line against one data directory.
type cliRunner struct {
	t       *testing.T
	datadir string
}

func newRunner(t *testing.T) *cliRunner {
	return &cliRunner{t: t, datadir: t.TempDir()}
}

func (r *cliRunner) exec(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	full := append([]string{app.Name, "--datadir", r.datadir, "--verbosity", "0"}, args...)
	err := app.Run(full)
	return strings.TrimSpace(stdout.String()), err
}

func (r *cliRunner) run(args ...string) string {
	r.t.Helper()
	out, err := r.exec(args...)
	require.NoError(r.t, err, "syncrollups %s", strings.Join(args, " "))
	return out
}

func (r *cliRunner) file(name, content string) string {
	r.t.Helper()
	path := filepath.Join(r.t.TempDir(), name)
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (r *cliRunner) domain(id string) domainView {
	r.t.Helper()
	var v domainView
	require.NoError(r.t, yaml.Unmarshal([]byte(r.run("domain", "show", id)), &v))
	return v
}

// setup creates domain 1 at root 0x01 holding 40 wei.
func (r *cliRunner) setup() {
	r.t.Helper()
	r.run("account", "fund", "--address", ownerHex, "--amount", "100")
	require.Equal(r.t, "1", r.run("domain", "create", "--owner", ownerHex, "--vk", "0xa0", "--root", "0x01"))
	r.run("deposit", "--from", ownerHex, "--domain", "1", "--amount", "40")
}

func root(b byte) string { return common.BytesToHash([]byte{b}).Hex() }

const txTransitions = `
transitions:
  - action:
      type: tx
      domain: 1
      data: "0x01"
    deltas:
      - domain: 1
        current_root: "0x01"
        new_root: "0x02"
    next:
      type: result
      domain: 1
      data: "0xbeef"
`

func TestDomainLifecycle(t *testing.T) {
	r := newRunner(t)
	r.setup()

	d := r.domain("1")
	require.Equal(t, "40", d.Balance)
	require.Equal(t, root(1), d.StateRoot)
	require.Equal(t, common.HexToAddress(ownerHex).Hex(), d.Owner)

	require.Equal(t, "60", r.run("account", "balance", ownerHex))
	require.Equal(t, "40", r.run("account", "balance", rollup.DefaultAddress.Hex()))

	_, err := r.exec("domain", "set-root", "--caller", userHex, "--domain", "1", "--root", "0x09")
	require.ErrorIs(t, err, rollup.ErrUnauthorizedCaller)
	r.run("domain", "set-root", "--caller", ownerHex, "--domain", "1", "--root", "0x09")
	require.Equal(t, root(9), r.domain("1").StateRoot)

	r.run("domain", "transfer", "--caller", ownerHex, "--domain", "1", "--owner", userHex)
	_, err = r.exec("domain", "set-vk", "--caller", ownerHex, "--domain", "1", "--vk", "0x01")
	require.ErrorIs(t, err, rollup.ErrUnauthorizedCaller)

	_, err = r.exec("domain", "show", "7")
	require.ErrorIs(t, err, rollup.ErrDomainNotFound)
}

func TestLoadAndExecuteTx(t *testing.T) {
	r := newRunner(t)
	r.setup()

	path := r.file("transitions.yaml", txTransitions)
	r.run("load", "--prove", path)

	actionHash := types.NewTx(1, []byte{0x01}).Hash().Hex()
	require.Equal(t, "1", r.run("cache", "count", "--action-hash", actionHash))
	require.Equal(t, "0", r.run("cache", "tick", "--action-hash", actionHash, "--index", "0"))
	require.Equal(t, actionHash+" 1", r.run("cache", "list"))

	require.Equal(t, "0xbeef", r.run("tx", "--domain", "1", "--data", "0x01"))
	require.Equal(t, "0", r.run("cache", "count", "--action-hash", actionHash))
	require.Empty(t, r.run("cache", "list"))
	require.Equal(t, root(2), r.domain("1").StateRoot)

	_, err := r.exec("tx", "--domain", "1", "--data", "0x01")
	require.ErrorIs(t, err, rollup.ErrTransitionNotFound)
}

func TestLoadRejectsBadProof(t *testing.T) {
	r := newRunner(t)
	r.setup()

	path := r.file("transitions.yaml", txTransitions+"proof: \"0xdead\"\n")
	_, err := r.exec("load", path)
	require.ErrorIs(t, err, rollup.ErrInvalidProof)
}

func TestEvict(t *testing.T) {
	r := newRunner(t)
	r.setup()
	r.run("load", "--prove", r.file("transitions.yaml", txTransitions))

	actionHash := types.NewTx(1, []byte{0x01}).Hash().Hex()
	_, err := r.exec("evict", "--action-hash", actionHash, "--max-age", "2")
	require.ErrorIs(t, err, rollup.ErrNothingToEvict)

	require.Equal(t, "3", r.run("tick", "advance", "--n", "3"))
	require.Equal(t, "1", r.run("evict", "--action-hash", actionHash, "--max-age", "2"))
	require.Equal(t, "0", r.run("cache", "count", "--action-hash", actionHash))
}

func TestShieldedLoad(t *testing.T) {
	r := newRunner(t)
	r.setup()
	path := r.file("transitions.yaml", txTransitions)
	secret := "0x5ec2e7"

	commitment := r.run("shield", "commit", "--from", userHex, "--secret", secret, "--prove", path)
	require.Len(t, commitment, 2+2*common.HashLength)

	_, err := r.exec("shield", "reveal", "--from", userHex, "--secret", secret, "--prove", path)
	require.ErrorIs(t, err, shield.ErrCommitmentTooNew)

	r.run("tick", "advance")
	_, err = r.exec("shield", "reveal", "--from", ownerHex, "--secret", secret, "--prove", path)
	require.ErrorIs(t, err, shield.ErrCommitmentNotFound)

	r.run("shield", "reveal", "--from", userHex, "--secret", secret, "--prove", path)
	actionHash := types.NewTx(1, []byte{0x01}).Hash().Hex()
	require.Equal(t, "1", r.run("cache", "count", "--action-hash", actionHash))
}

func TestBatchExcludesSameTickExecution(t *testing.T) {
	r := newRunner(t)
	r.setup()

	batch := r.file("batch.yaml", `
commitments:
  - domain: 1
    new_root: "0x03"
    increment: "0"
blob_hashes:
  - "0x01a1"
shared_data: "0x1234"
`)
	r.run("batch", "--prove", batch)
	require.Equal(t, root(3), r.domain("1").StateRoot)

	_, err := r.exec("load", "--prove", r.file("transitions.yaml", txTransitions))
	require.ErrorIs(t, err, rollup.ErrAlreadyUpdatedThisTick)

	var status struct {
		Tick       uint64 `yaml:"tick"`
		Domains    uint64 `yaml:"domains"`
		LastUpdate struct {
			Tick   uint64 `yaml:"tick"`
			Source string `yaml:"source"`
		} `yaml:"last_update"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(r.run("status")), &status))
	require.Equal(t, uint64(1), status.Domains)
	require.Equal(t, "batch", status.LastUpdate.Source)

	r.run("tick", "advance")
	r.run("load", "--prove", r.file("transitions.yaml", txTransitions))
}

func TestCallThroughRelay(t *testing.T) {
	r := newRunner(t)
	r.setup()

	relayAddr := r.run("relay", "create", "--address", appHex, "--domain", "1")
	require.Equal(t, relayAddr, r.run("relay", "address", "--address", appHex, "--domain", "1"))

	r.run("load", "--prove", r.file("transitions.yaml", `
transitions:
  - action:
      type: call
      domain: 1
      destination: "`+appHex+`"
      source: "`+userHex+`"
    deltas:
      - domain: 1
        current_root: "0x01"
        new_root: "0x05"
    next:
      type: result
      domain: 1
      data: "0x2a"
`))
	require.Equal(t, "0x2a", r.run("call", "--from", userHex, "--to", relayAddr))
	require.Equal(t, root(5), r.domain("1").StateRoot)

	// The relay withdraws from its domain's balance.
	r.run("withdraw", "--relay", relayAddr, "--to", userHex, "--amount", "15")
	require.Equal(t, "25", r.domain("1").Balance)
	require.Equal(t, "15", r.run("account", "balance", userHex))
}

func TestActionHash(t *testing.T) {
	r := newRunner(t)
	path := r.file("action.yaml", "type: tx\ndomain: 3\ndata: \"0xff\"\n")
	require.Equal(t, types.NewTx(3, []byte{0xff}).Hash().Hex(), r.run("cache", "hash", path))
}

func TestConfigFileAndMetrics(t *testing.T) {
	r := newRunner(t)
	cfgPath := r.file("config.yaml", "chain_id: 5\nlog:\n  format: json\n")
	r.run("--config", cfgPath, "account", "fund", "--address", ownerHex, "--amount", "1")
	out := r.run("--config", cfgPath, "--metrics", "domain", "create", "--owner", ownerHex)
	require.Contains(t, out, "syncrollups_last_update_tick")

	bad := r.file("bad.yaml", "verifier:\n  kind: snark\n")
	_, err := r.exec("--config", bad, "status")
	require.Error(t, err)
}

func TestRunExitCode(t *testing.T) {
	require.Equal(t, 0, run([]string{"--version"}))
	require.Equal(t, 1, run([]string{"--datadir", t.TempDir(), "--verbosity", "0", "domain", "show", "1"}))
}
