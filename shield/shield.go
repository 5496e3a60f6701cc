// Package shield implements commit-reveal admission of transition lists.
// A submitter first commits to a hash of the transitions, the proof and a
// secret, and reveals them no sooner than MinDelay ticks later, so the
// content cannot be front-run while it is pending.
package shield

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/state"
	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/crypto"
	"github.com/eth2030/syncrollups/log"
)

var (
	ErrAlreadyCommitted   = errors.New("shield: commitment already pending")
	ErrCommitmentNotFound = errors.New("shield: commitment not found")
	ErrCommitmentTooNew   = errors.New("shield: commitment too new")
	ErrCommitmentTooOld   = errors.New("shield: commitment too old")
)

const (
	DefaultMinDelay = 1
	DefaultMaxAge   = 256
)

// Loader admits revealed transitions.
type Loader interface {
	LoadExecutions(ts []*types.Transition, proof []byte) error
}

// Clock reports the current tick.
type Clock interface {
	Tick() uint64
}

// Config holds the reveal window.
type Config struct {
	MinDelay uint64
	MaxAge   uint64
}

// Shield holds pending commitments in the shared StateDB.
type Shield struct {
	state  *state.StateDB
	clock  Clock
	loader Loader
	config Config
	log    *log.Logger
}

// New returns a shield forwarding revealed transitions to loader.
func New(st *state.StateDB, clock Clock, loader Loader, config Config) *Shield {
	if config.MinDelay == 0 {
		config.MinDelay = DefaultMinDelay
	}
	if config.MaxAge == 0 {
		config.MaxAge = DefaultMaxAge
	}
	return &Shield{
		state:  st,
		clock:  clock,
		loader: loader,
		config: config,
		log:    log.Default().Module("shield"),
	}
}

// Commitment computes what a submitter commits to.
func Commitment(ts []*types.Transition, proof []byte, secret common.Hash) common.Hash {
	transitions := types.TransitionsHash(ts)
	return crypto.Keccak256Hash(transitions[:], crypto.Keccak256(proof), secret[:])
}

func (s *Shield) expired(rec *rawdb.CommitmentRecord, now uint64) bool {
	return now-rec.Tick > s.config.MaxAge
}

// Commit records a commitment for sender. A commitment may be reused once
// its previous use expired.
func (s *Shield) Commit(sender common.Address, commitment common.Hash) error {
	return s.state.Atomic(func() error {
		now := s.clock.Tick()
		rec, err := rawdb.ReadCommitment(s.state, commitment)
		switch {
		case err == nil && !s.expired(rec, now):
			return fmt.Errorf("%w: %s", ErrAlreadyCommitted, commitment)
		case err != nil && !errors.Is(err, rawdb.ErrNotFound):
			return err
		}
		s.log.Debug("Committed", "sender", sender, "commitment", commitment, "tick", now)
		return rawdb.WriteCommitment(s.state, commitment, &rawdb.CommitmentRecord{Owner: sender, Tick: now})
	})
}

// Reveal opens a commitment made by sender and loads the transitions. The
// commitment is consumed only if loading succeeds.
func (s *Shield) Reveal(sender common.Address, ts []*types.Transition, proof []byte, secret common.Hash) error {
	commitment := Commitment(ts, proof, secret)
	return s.state.Atomic(func() error {
		rec, err := rawdb.ReadCommitment(s.state, commitment)
		if errors.Is(err, rawdb.ErrNotFound) || (err == nil && rec.Owner != sender) {
			return fmt.Errorf("%w: %s", ErrCommitmentNotFound, commitment)
		}
		if err != nil {
			return err
		}
		now := s.clock.Tick()
		switch {
		case now-rec.Tick < s.config.MinDelay:
			return fmt.Errorf("%w: committed at %d, now %d", ErrCommitmentTooNew, rec.Tick, now)
		case s.expired(rec, now):
			return fmt.Errorf("%w: committed at %d, now %d", ErrCommitmentTooOld, rec.Tick, now)
		}
		if err := rawdb.DeleteCommitment(s.state, commitment); err != nil {
			return err
		}
		if err := s.loader.LoadExecutions(ts, proof); err != nil {
			return err
		}
		s.log.Info("Revealed", "sender", sender, "commitment", commitment, "transitions", len(ts))
		return nil
	})
}
