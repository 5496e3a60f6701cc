package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/eth2030/syncrollups/core/types"
)

// Input files are YAML. Hashes, addresses and byte strings are 0x-prefixed
// hex, amounts are decimal or 0x-prefixed hex strings.

type actionInput struct {
	Type         string   `yaml:"type"`
	Domain       uint64   `yaml:"domain"`
	Destination  string   `yaml:"destination"`
	Value        string   `yaml:"value"`
	Data         string   `yaml:"data"`
	Failed       bool     `yaml:"failed"`
	Source       string   `yaml:"source"`
	SourceDomain uint64   `yaml:"source_domain"`
	Scope        []uint64 `yaml:"scope"`
}

type deltaInput struct {
	Domain       uint64 `yaml:"domain"`
	CurrentRoot  string `yaml:"current_root"`
	NewRoot      string `yaml:"new_root"`
	BalanceDelta string `yaml:"balance_delta"`
}

// transitionInput names the triggering action either by fingerprint or in
// full.
type transitionInput struct {
	ActionHash string       `yaml:"action_hash"`
	Action     *actionInput `yaml:"action"`
	Deltas     []deltaInput `yaml:"deltas"`
	Next       actionInput  `yaml:"next"`
}

type transitionsInput struct {
	Transitions []transitionInput `yaml:"transitions"`
	Proof       string            `yaml:"proof"`
}

type commitmentInput struct {
	Domain    uint64 `yaml:"domain"`
	NewRoot   string `yaml:"new_root"`
	Increment string `yaml:"increment"`
}

type batchInput struct {
	Commitments []commitmentInput `yaml:"commitments"`
	BlobHashes  []string          `yaml:"blob_hashes"`
	SharedData  string            `yaml:"shared_data"`
	Proof       string            `yaml:"proof"`
}

// readYAML decodes the file at path into out, rejecting unknown keys.
func readYAML(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func parseHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %d bytes", s, len(b))
	}
	return common.BytesToHash(b), nil
}

func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) > common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address %q: %d bytes", s, len(b))
	}
	return common.BytesToAddress(b), nil
}

func parseBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data %q: %w", s, err)
	}
	return b, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	if strings.HasPrefix(s, "0x") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

func parseSigned(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func (in *actionInput) action() (types.Action, error) {
	typ, err := types.ParseActionType(in.Type)
	if err != nil {
		return types.Action{}, err
	}
	data, err := parseBytes(in.Data)
	if err != nil {
		return types.Action{}, err
	}
	switch typ {
	case types.ActionCall:
		dest, err := parseAddress(in.Destination)
		if err != nil {
			return types.Action{}, err
		}
		source, err := parseAddress(in.Source)
		if err != nil {
			return types.Action{}, err
		}
		value, err := parseAmount(in.Value)
		if err != nil {
			return types.Action{}, err
		}
		return types.NewCall(in.Domain, dest, value, data, source, in.SourceDomain, in.Scope), nil
	case types.ActionResult:
		return types.NewResult(in.Domain, in.Failed, data), nil
	case types.ActionTx:
		return types.NewTx(in.Domain, data), nil
	case types.ActionRevert:
		return types.NewRevert(in.Domain, in.Scope), nil
	default:
		return types.NewRevertContinue(in.Domain), nil
	}
}

func (in *transitionInput) transition() (*types.Transition, error) {
	t := new(types.Transition)
	switch {
	case in.Action != nil && in.ActionHash != "":
		return nil, errors.New("transition sets both action and action_hash")
	case in.Action != nil:
		a, err := in.Action.action()
		if err != nil {
			return nil, err
		}
		t.ActionHash = a.Hash()
	default:
		h, err := parseHash(in.ActionHash)
		if err != nil {
			return nil, err
		}
		t.ActionHash = h
	}
	for _, d := range in.Deltas {
		cur, err := parseHash(d.CurrentRoot)
		if err != nil {
			return nil, err
		}
		next, err := parseHash(d.NewRoot)
		if err != nil {
			return nil, err
		}
		delta, err := parseSigned(d.BalanceDelta)
		if err != nil {
			return nil, err
		}
		t.Deltas = append(t.Deltas, types.StateDelta{
			DomainID:     d.Domain,
			CurrentRoot:  cur,
			NewRoot:      next,
			BalanceDelta: delta,
		})
	}
	next, err := in.Next.action()
	if err != nil {
		return nil, err
	}
	t.NextAction = next
	return t, nil
}

func (in *transitionsInput) transitions() ([]*types.Transition, error) {
	ts := make([]*types.Transition, len(in.Transitions))
	for i := range in.Transitions {
		t, err := in.Transitions[i].transition()
		if err != nil {
			return nil, fmt.Errorf("transition %d: %w", i, err)
		}
		ts[i] = t
	}
	return ts, nil
}

func (in *batchInput) commitments() ([]types.StateCommitment, error) {
	cs := make([]types.StateCommitment, len(in.Commitments))
	for i, c := range in.Commitments {
		root, err := parseHash(c.NewRoot)
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", i, err)
		}
		inc, err := parseSigned(c.Increment)
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", i, err)
		}
		cs[i] = types.StateCommitment{DomainID: c.Domain, NewRoot: root, BalanceIncrement: inc}
	}
	return cs, nil
}

func (in *batchInput) blobHashes() ([]common.Hash, error) {
	hashes := make([]common.Hash, len(in.BlobHashes))
	for i, s := range in.BlobHashes {
		h, err := parseHash(s)
		if err != nil {
			return nil, fmt.Errorf("blob hash %d: %w", i, err)
		}
		hashes[i] = h
	}
	return hashes, nil
}
