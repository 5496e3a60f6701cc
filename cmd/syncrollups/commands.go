package main

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/shield"
)

var (
	fromFlag       = &cli.StringFlag{Name: "from", Usage: "sending account", Required: true}
	callerFlag     = &cli.StringFlag{Name: "caller", Usage: "calling account", Required: true}
	domainFlag     = &cli.Uint64Flag{Name: "domain", Usage: "domain id", Required: true}
	amountFlag     = &cli.StringFlag{Name: "amount", Usage: "amount in wei", Required: true}
	proveFlag      = &cli.BoolFlag{Name: "prove", Usage: "prove with the hash verifier key instead of reading the proof from the file"}
	secretFlag     = &cli.StringFlag{Name: "secret", Usage: "commitment secret", Required: true}
	actionHashFlag = &cli.StringFlag{Name: "action-hash", Usage: "action fingerprint", Required: true}
)

// withNode opens the node for the duration of one command.
func (cc *cliContext) withNode(fn func(c *cli.Context, n *node) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		n, err := openNode(&cc.cfg, cc.registry)
		if err != nil {
			return err
		}
		defer n.Close()
		return fn(c, n)
	}
}

func commands(cc *cliContext) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "status",
			Usage:  "print the clock and registry summary",
			Action: cc.withNode(statusCmd),
		},
		{
			Name:  "account",
			Usage: "settlement-layer accounts",
			Subcommands: []*cli.Command{
				{
					Name:   "fund",
					Usage:  "set the balance of an account",
					Flags:  []cli.Flag{&cli.StringFlag{Name: "address", Required: true}, amountFlag},
					Action: cc.withNode(fundCmd),
				},
				{
					Name:      "balance",
					Usage:     "print the balance of an account",
					ArgsUsage: "<address>",
					Action:    cc.withNode(balanceCmd),
				},
				{
					Name:      "storage",
					Usage:     "print a storage slot of an account",
					ArgsUsage: "<address> [slot]",
					Action:    cc.withNode(storageCmd),
				},
			},
		},
		{
			Name:  "domain",
			Usage: "domain registry",
			Subcommands: []*cli.Command{
				{
					Name:  "create",
					Usage: "register a domain and print its id",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "owner", Required: true},
						&cli.StringFlag{Name: "vk", Usage: "verification key"},
						&cli.StringFlag{Name: "root", Usage: "initial state root"},
					},
					Action: cc.withNode(domainCreateCmd),
				},
				{
					Name:      "show",
					Usage:     "print a domain record",
					ArgsUsage: "<id>",
					Action:    cc.withNode(domainShowCmd),
				},
				{
					Name:   "set-root",
					Usage:  "force the state root (owner only)",
					Flags:  []cli.Flag{callerFlag, domainFlag, &cli.StringFlag{Name: "root", Required: true}},
					Action: cc.withNode(domainSetRootCmd),
				},
				{
					Name:   "set-vk",
					Usage:  "replace the verification key (owner only)",
					Flags:  []cli.Flag{callerFlag, domainFlag, &cli.StringFlag{Name: "vk", Required: true}},
					Action: cc.withNode(domainSetVKCmd),
				},
				{
					Name:   "transfer",
					Usage:  "transfer ownership (owner only)",
					Flags:  []cli.Flag{callerFlag, domainFlag, &cli.StringFlag{Name: "owner", Required: true}},
					Action: cc.withNode(domainTransferCmd),
				},
			},
		},
		{
			Name:   "deposit",
			Usage:  "deposit native asset into a domain",
			Flags:  []cli.Flag{fromFlag, domainFlag, amountFlag},
			Action: cc.withNode(depositCmd),
		},
		{
			Name:   "withdraw",
			Usage:  "withdraw native asset from a relay's domain",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "relay", Required: true}, &cli.StringFlag{Name: "to", Required: true}, amountFlag},
			Action: cc.withNode(withdrawCmd),
		},
		{
			Name:      "batch",
			Usage:     "post a proven batch of state commitments",
			ArgsUsage: "<batch.yaml>",
			Flags:     []cli.Flag{proveFlag},
			Action:    cc.withNode(batchCmd),
		},
		{
			Name:      "load",
			Usage:     "load a proven list of transitions into the execution cache",
			ArgsUsage: "<transitions.yaml>",
			Flags:     []cli.Flag{proveFlag},
			Action:    cc.withNode(loadCmd),
		},
		{
			Name:  "shield",
			Usage: "commit-reveal admission of transitions",
			Subcommands: []*cli.Command{
				{
					Name:      "commit",
					Usage:     "commit to a transitions file and print the commitment",
					ArgsUsage: "<transitions.yaml>",
					Flags:     []cli.Flag{fromFlag, secretFlag, proveFlag},
					Action:    cc.withNode(shieldCommitCmd),
				},
				{
					Name:      "reveal",
					Usage:     "reveal a committed transitions file and load it",
					ArgsUsage: "<transitions.yaml>",
					Flags:     []cli.Flag{fromFlag, secretFlag, proveFlag},
					Action:    cc.withNode(shieldRevealCmd),
				},
			},
		},
		{
			Name:   "tx",
			Usage:  "execute a raw domain transaction",
			Flags:  []cli.Flag{domainFlag, &cli.StringFlag{Name: "data", Usage: "raw transaction"}},
			Action: cc.withNode(txCmd),
		},
		{
			Name:  "call",
			Usage: "send a settlement-layer transaction, typically to a relay",
			Flags: []cli.Flag{
				fromFlag,
				&cli.StringFlag{Name: "to", Required: true},
				&cli.StringFlag{Name: "value"},
				&cli.StringFlag{Name: "data"},
			},
			Action: cc.withNode(callCmd),
		},
		{
			Name:   "evict",
			Usage:  "evict expired transitions and print how many were removed",
			Flags:  []cli.Flag{actionHashFlag, &cli.Uint64Flag{Name: "max-age", Usage: "age in ticks (0 selects the configured default)"}},
			Action: cc.withNode(evictCmd),
		},
		{
			Name:  "cache",
			Usage: "execution cache queries",
			Subcommands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "print every cached action fingerprint with its transition count",
					Action: cc.withNode(cacheListCmd),
				},
				{
					Name:   "count",
					Usage:  "print the number of transitions cached for an action",
					Flags:  []cli.Flag{actionHashFlag},
					Action: cc.withNode(cacheCountCmd),
				},
				{
					Name:   "tick",
					Usage:  "print the insertion tick of a cached transition",
					Flags:  []cli.Flag{actionHashFlag, &cli.Uint64Flag{Name: "index", Required: true}},
					Action: cc.withNode(cacheTickCmd),
				},
				{
					Name:      "hash",
					Usage:     "print the fingerprint of the action in a YAML file",
					ArgsUsage: "<action.yaml>",
					Action:    actionHashCmd,
				},
			},
		},
		{
			Name:  "relay",
			Usage: "relays of settlement-layer accounts into domains",
			Subcommands: []*cli.Command{
				{
					Name:   "create",
					Usage:  "authorize the relay of an account and print its address",
					Flags:  []cli.Flag{&cli.StringFlag{Name: "address", Required: true}, domainFlag},
					Action: cc.withNode(relayCreateCmd),
				},
				{
					Name:   "address",
					Usage:  "print the relay address of an account",
					Flags:  []cli.Flag{&cli.StringFlag{Name: "address", Required: true}, domainFlag},
					Action: cc.withNode(relayAddressCmd),
				},
			},
		},
		{
			Name:  "tick",
			Usage: "settlement-layer clock",
			Subcommands: []*cli.Command{
				{
					Name:   "advance",
					Usage:  "advance the clock",
					Flags:  []cli.Flag{&cli.Uint64Flag{Name: "n", Value: 1, Usage: "number of ticks"}},
					Action: cc.withNode(tickAdvanceCmd),
				},
			},
		},
	}
}

func output(c *cli.Context, a ...any) {
	fmt.Fprintln(c.App.Writer, a...)
}

func addressFlag(c *cli.Context, name string) (common.Address, error) {
	return parseAddress(c.String(name))
}

func hashFlag(c *cli.Context, name string) (common.Hash, error) {
	return parseHash(c.String(name))
}

func uintArg(c *cli.Context, i int) (uint64, error) {
	s := c.Args().Get(i)
	if s == "" {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	return strconv.ParseUint(s, 0, 64)
}

func statusCmd(c *cli.Context, n *node) error {
	count, err := n.engine.DomainCount()
	if err != nil {
		return err
	}
	tick, batch, err := n.engine.LastUpdate()
	if err != nil {
		return err
	}
	source := "execution"
	if batch {
		source = "batch"
	}
	out, err := yaml.Marshal(map[string]any{
		"tick":        n.sim.Tick(),
		"randomness":  n.sim.Randomness().Hex(),
		"domains":     count,
		"last_update": map[string]any{"tick": tick, "source": source},
	})
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func fundCmd(c *cli.Context, n *node) error {
	addr, err := addressFlag(c, "address")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String(amountFlag.Name))
	if err != nil {
		return err
	}
	return n.sim.SetBalance(addr, amount)
}

func balanceCmd(c *cli.Context, n *node) error {
	addr, err := parseAddress(c.Args().First())
	if err != nil {
		return err
	}
	bal, err := n.sim.Balance(addr)
	if err != nil {
		return err
	}
	output(c, bal.Dec())
	return nil
}

func storageCmd(c *cli.Context, n *node) error {
	addr, err := parseAddress(c.Args().Get(0))
	if err != nil {
		return err
	}
	slot, err := parseHash(c.Args().Get(1))
	if err != nil {
		return err
	}
	val, err := n.sim.Storage(addr, slot)
	if err != nil {
		return err
	}
	output(c, val.Hex())
	return nil
}

func domainCreateCmd(c *cli.Context, n *node) error {
	owner, err := addressFlag(c, "owner")
	if err != nil {
		return err
	}
	vk, err := hashFlag(c, "vk")
	if err != nil {
		return err
	}
	root, err := hashFlag(c, "root")
	if err != nil {
		return err
	}
	var id uint64
	err = n.sim.Do(func() error {
		id, err = n.engine.CreateDomain(owner, vk, root)
		return err
	})
	if err != nil {
		return err
	}
	output(c, id)
	return nil
}

type domainView struct {
	ID              uint64 `yaml:"id"`
	Owner           string `yaml:"owner"`
	VerificationKey string `yaml:"verification_key"`
	StateRoot       string `yaml:"state_root"`
	Balance         string `yaml:"balance"`
}

func domainShowCmd(c *cli.Context, n *node) error {
	id, err := uintArg(c, 0)
	if err != nil {
		return err
	}
	d, err := n.engine.Domain(id)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(&domainView{
		ID:              id,
		Owner:           d.Owner.Hex(),
		VerificationKey: d.VerificationKey.Hex(),
		StateRoot:       d.StateRoot.Hex(),
		Balance:         d.Balance.Dec(),
	})
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func domainSetRootCmd(c *cli.Context, n *node) error {
	caller, err := addressFlag(c, callerFlag.Name)
	if err != nil {
		return err
	}
	root, err := hashFlag(c, "root")
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.SetStateRoot(caller, c.Uint64(domainFlag.Name), root)
	})
}

func domainSetVKCmd(c *cli.Context, n *node) error {
	caller, err := addressFlag(c, callerFlag.Name)
	if err != nil {
		return err
	}
	vk, err := hashFlag(c, "vk")
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.SetVerificationKey(caller, c.Uint64(domainFlag.Name), vk)
	})
}

func domainTransferCmd(c *cli.Context, n *node) error {
	caller, err := addressFlag(c, callerFlag.Name)
	if err != nil {
		return err
	}
	owner, err := addressFlag(c, "owner")
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.TransferOwnership(caller, c.Uint64(domainFlag.Name), owner)
	})
}

func depositCmd(c *cli.Context, n *node) error {
	from, err := addressFlag(c, fromFlag.Name)
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String(amountFlag.Name))
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.Deposit(from, c.Uint64(domainFlag.Name), amount)
	})
}

func withdrawCmd(c *cli.Context, n *node) error {
	relayAddr, err := addressFlag(c, "relay")
	if err != nil {
		return err
	}
	to, err := addressFlag(c, "to")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String(amountFlag.Name))
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.Withdraw(relayAddr, to, amount)
	})
}

func batchCmd(c *cli.Context, n *node) error {
	var in batchInput
	if err := readYAML(c.Args().First(), &in); err != nil {
		return err
	}
	commitments, err := in.commitments()
	if err != nil {
		return err
	}
	blobs, err := in.blobHashes()
	if err != nil {
		return err
	}
	shared, err := parseBytes(in.SharedData)
	if err != nil {
		return err
	}
	n.sim.AttachBlobHashes(blobs...)
	blobCount := uint64(len(blobs))

	var proof []byte
	if c.Bool(proveFlag.Name) {
		input, err := n.engine.BatchPublicInput(commitments, blobCount, shared)
		if err != nil {
			return err
		}
		if proof, err = n.prove(input); err != nil {
			return err
		}
	} else if proof, err = parseBytes(in.Proof); err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.PostBatch(commitments, blobCount, shared, proof)
	})
}

// readTransitions reads a transitions file and its proof, proving with the
// hash key when --prove is set.
func readTransitions(c *cli.Context, n *node) ([]*types.Transition, []byte, error) {
	var in transitionsInput
	if err := readYAML(c.Args().First(), &in); err != nil {
		return nil, nil, err
	}
	ts, err := in.transitions()
	if err != nil {
		return nil, nil, err
	}
	if c.Bool(proveFlag.Name) {
		input, err := n.engine.ExecutionPublicInput(ts)
		if err != nil {
			return nil, nil, err
		}
		proof, err := n.prove(input)
		return ts, proof, err
	}
	proof, err := parseBytes(in.Proof)
	return ts, proof, err
}

func loadCmd(c *cli.Context, n *node) error {
	ts, proof, err := readTransitions(c, n)
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.engine.LoadExecutions(ts, proof)
	})
}

func shieldCommitCmd(c *cli.Context, n *node) error {
	from, err := addressFlag(c, fromFlag.Name)
	if err != nil {
		return err
	}
	secret, err := hashFlag(c, secretFlag.Name)
	if err != nil {
		return err
	}
	ts, proof, err := readTransitions(c, n)
	if err != nil {
		return err
	}
	commitment := shield.Commitment(ts, proof, secret)
	if err := n.sim.Do(func() error { return n.shield.Commit(from, commitment) }); err != nil {
		return err
	}
	output(c, commitment.Hex())
	return nil
}

func shieldRevealCmd(c *cli.Context, n *node) error {
	from, err := addressFlag(c, fromFlag.Name)
	if err != nil {
		return err
	}
	secret, err := hashFlag(c, secretFlag.Name)
	if err != nil {
		return err
	}
	ts, proof, err := readTransitions(c, n)
	if err != nil {
		return err
	}
	return n.sim.Do(func() error {
		return n.shield.Reveal(from, ts, proof, secret)
	})
}

func txCmd(c *cli.Context, n *node) error {
	data, err := parseBytes(c.String("data"))
	if err != nil {
		return err
	}
	var ret []byte
	err = n.sim.Do(func() error {
		ret, err = n.engine.ExecuteDomainTx(c.Uint64(domainFlag.Name), data)
		return err
	})
	if err != nil {
		return err
	}
	output(c, hexutil.Encode(ret))
	return nil
}

func callCmd(c *cli.Context, n *node) error {
	from, err := addressFlag(c, fromFlag.Name)
	if err != nil {
		return err
	}
	to, err := addressFlag(c, "to")
	if err != nil {
		return err
	}
	value, err := parseAmount(c.String("value"))
	if err != nil {
		return err
	}
	data, err := parseBytes(c.String("data"))
	if err != nil {
		return err
	}
	ret, err := n.sim.Transact(from, to, value, data)
	if err != nil {
		return err
	}
	output(c, hexutil.Encode(ret))
	return nil
}

func evictCmd(c *cli.Context, n *node) error {
	action, err := hashFlag(c, actionHashFlag.Name)
	if err != nil {
		return err
	}
	var evicted int
	err = n.sim.Do(func() error {
		evicted, err = n.engine.EvictExpired(action, c.Uint64("max-age"))
		return err
	})
	if err != nil {
		return err
	}
	output(c, evicted)
	return nil
}

func cacheListCmd(c *cli.Context, n *node) error {
	return rawdb.IterateCacheCounts(n.db, func(action common.Hash, count uint64) bool {
		output(c, action.Hex(), count)
		return true
	})
}

func cacheCountCmd(c *cli.Context, n *node) error {
	action, err := hashFlag(c, actionHashFlag.Name)
	if err != nil {
		return err
	}
	count, err := n.engine.CacheCount(action)
	if err != nil {
		return err
	}
	output(c, count)
	return nil
}

func cacheTickCmd(c *cli.Context, n *node) error {
	action, err := hashFlag(c, actionHashFlag.Name)
	if err != nil {
		return err
	}
	tick, err := n.engine.CacheInsertionTime(action, c.Uint64("index"))
	if err != nil {
		return err
	}
	output(c, tick)
	return nil
}

func actionHashCmd(c *cli.Context) error {
	var in actionInput
	if err := readYAML(c.Args().First(), &in); err != nil {
		return err
	}
	a, err := in.action()
	if err != nil {
		return err
	}
	output(c, a.Hash().Hex())
	return nil
}

func relayCreateCmd(c *cli.Context, n *node) error {
	addr, err := addressFlag(c, "address")
	if err != nil {
		return err
	}
	var relayAddr common.Address
	err = n.sim.Do(func() error {
		relayAddr, err = n.engine.CreateRelay(addr, c.Uint64(domainFlag.Name))
		return err
	})
	if err != nil {
		return err
	}
	output(c, relayAddr.Hex())
	return nil
}

func relayAddressCmd(c *cli.Context, n *node) error {
	addr, err := addressFlag(c, "address")
	if err != nil {
		return err
	}
	output(c, n.engine.RelayAddress(addr, c.Uint64(domainFlag.Name)).Hex())
	return nil
}

func tickAdvanceCmd(c *cli.Context, n *node) error {
	if err := n.sim.AdvanceTick(c.Uint64("n")); err != nil {
		return err
	}
	output(c, n.sim.Tick())
	return nil
}
