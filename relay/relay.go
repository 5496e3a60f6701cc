// Package relay derives and authorizes the relay accounts the engine
// executes cross-domain calls through. A relay stands in on the settlement
// layer for one account of one domain; its address is derived CREATE2-style
// from the engine address, so it is known before it exists.
package relay

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/crypto"
	"github.com/eth2030/syncrollups/log"
)

// ErrNotRelay is returned for addresses that were never authorized.
var ErrNotRelay = errors.New("relay: not an authorized relay")

// CodeHash stands in for the init code hash of the relay contract.
var CodeHash = crypto.Keccak256Hash([]byte("syncrollups/relay/v1"))

const addressCacheSize = 4096

type key struct {
	original common.Address
	domain   uint64
}

// Registry derives relay addresses and keeps the set of authorized relays
// in db.
type Registry struct {
	db       rawdb.KeyValueStore
	deployer common.Address
	chainID  uint64
	addrs    *lru.Cache[key, common.Address]
	log      *log.Logger
}

// New returns a registry deriving relays deployed by deployer on chainID.
func New(db rawdb.KeyValueStore, deployer common.Address, chainID uint64) *Registry {
	addrs, err := lru.New[key, common.Address](addressCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Registry{
		db:       db,
		deployer: deployer,
		chainID:  chainID,
		addrs:    addrs,
		log:      log.Default().Module("relay"),
	}
}

// Salt binds a relay to the account it acts for and the chain it lives on.
func Salt(original common.Address, domain, chainID uint64) common.Hash {
	return crypto.Keccak256Hash(
		original.Bytes(),
		common.BigToHash(new(big.Int).SetUint64(domain)).Bytes(),
		common.BigToHash(new(big.Int).SetUint64(chainID)).Bytes(),
	)
}

// Address derives the relay address of (original, domain). It is pure and
// does not authorize anything.
func (r *Registry) Address(original common.Address, domain uint64) common.Address {
	k := key{original, domain}
	if addr, ok := r.addrs.Get(k); ok {
		return addr
	}
	addr := gethcrypto.CreateAddress2(r.deployer, Salt(original, domain, r.chainID), CodeHash.Bytes())
	r.addrs.Add(k, addr)
	return addr
}

// ResolveOrCreate derives the relay address and authorizes it on first use.
func (r *Registry) ResolveOrCreate(original common.Address, domain uint64) (common.Address, error) {
	addr := r.Address(original, domain)
	if r.IsAuthorized(addr) {
		return addr, nil
	}
	info := &types.RelayInfo{OriginalAddress: original, OriginalDomain: domain}
	if err := rawdb.WriteRelay(r.db, addr, info); err != nil {
		return common.Address{}, fmt.Errorf("relay: authorize %s: %w", addr, err)
	}
	r.log.Debug("Created relay", "relay", addr, "original", original, "domain", domain)
	return addr, nil
}

// IsAuthorized reports whether addr is a relay created by this registry.
func (r *Registry) IsAuthorized(addr common.Address) bool {
	return rawdb.HasRelay(r.db, addr)
}

// Info returns the account a relay acts for.
func (r *Registry) Info(addr common.Address) (*types.RelayInfo, error) {
	info, err := rawdb.ReadRelay(r.db, addr)
	if errors.Is(err, rawdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotRelay, addr)
	}
	return info, err
}
