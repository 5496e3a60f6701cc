package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eth2030/syncrollups/config"
	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/state"
	"github.com/eth2030/syncrollups/crypto"
	"github.com/eth2030/syncrollups/host"
	"github.com/eth2030/syncrollups/log"
	"github.com/eth2030/syncrollups/metrics"
	"github.com/eth2030/syncrollups/proofs"
	"github.com/eth2030/syncrollups/relay"
	"github.com/eth2030/syncrollups/rollup"
	"github.com/eth2030/syncrollups/shield"
)

// counterAddress hosts a counter contract on every node, so cross-domain
// calls have a settlement-layer target with observable storage.
var counterAddress = common.HexToAddress("0x000000000000000000000000000000000000c0de")

var errNoProver = errors.New("--prove needs the hash verifier")

// node is the engine wired onto a pebble data directory.
type node struct {
	db       *rawdb.PebbleDB
	state    *state.StateDB
	sim      *host.Simulator
	relays   *relay.Registry
	verifier proofs.Verifier
	prover   *proofs.HashVerifier // nil unless the hash verifier is configured
	engine   *rollup.Engine
	shield   *shield.Shield
}

func openNode(cfg *config.Config, reg prometheus.Registerer) (*node, error) {
	db, err := rawdb.NewPebbleDB(cfg.DBPath(), cfg.CacheMB<<20)
	if err != nil {
		return nil, err
	}
	n, err := newNode(cfg, db, reg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

func newNode(cfg *config.Config, db *rawdb.PebbleDB, reg prometheus.Registerer) (*node, error) {
	st := state.New(db)
	sim, err := host.New(st, cfg.ChainID, crypto.Keccak256Hash([]byte(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	sim.Deploy(counterAddress, host.Counter())

	n := &node{db: db, state: st, sim: sim}
	switch cfg.Verifier.Kind {
	case config.VerifierHash:
		n.prover = proofs.NewHashVerifier([]byte(cfg.Verifier.HashKey))
		n.verifier = n.prover
	case config.VerifierBLS:
		keys, err := cfg.CommitteeKeys()
		if err != nil {
			return nil, err
		}
		if n.verifier, err = proofs.NewBLSCommitteeVerifier(keys); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown verifier kind %q", cfg.Verifier.Kind)
	}

	engineCfg := rollup.Config{
		Address:       cfg.EngineAddress(),
		DefaultMaxAge: cfg.Engine.DefaultMaxAge,
		MaxScopeDepth: cfg.Engine.MaxScopeDepth,
	}
	n.relays = relay.New(st, engineCfg.Address, cfg.ChainID)
	n.engine, err = rollup.New(engineCfg, rollup.Backend{
		State:    st,
		Host:     sim,
		Verifier: n.verifier,
		Relays:   n.relays,
		Metrics:  metrics.New(reg),
		Logger:   log.Default(),
	})
	if err != nil {
		return nil, err
	}
	sim.SetRelayHandler(n.engine)
	n.shield = shield.New(st, sim, n.engine, shield.Config{
		MinDelay: cfg.Shield.MinDelay,
		MaxAge:   cfg.Shield.MaxAge,
	})
	return n, nil
}

// prove returns a proof for publicInput made with the configured hash key.
func (n *node) prove(publicInput common.Hash) ([]byte, error) {
	if n.prover == nil {
		return nil, errNoProver
	}
	return n.prover.Prove(publicInput), nil
}

func (n *node) Close() error {
	if n.state.Dirty() {
		log.Warn("Discarding uncommitted writes")
		n.state.Discard()
	}
	return n.db.Close()
}
