package rollup

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/syncrollups/core/types"
)

// scopeOutcome is what a scope hands back to its parent: either the next
// action to continue with, or an abort naming the reverted domain and the
// root it had at the Revert.
type scopeOutcome struct {
	next types.Action

	abort    bool
	domainID uint64
	root     common.Hash
}

func continueWith(next types.Action) scopeOutcome {
	return scopeOutcome{next: next}
}

func abortWith(domainID uint64, root common.Hash) scopeOutcome {
	return scopeOutcome{abort: true, domainID: domainID, root: root}
}

// isChildScope reports whether target lies strictly below scope.
func isChildScope(scope, target []uint64) bool {
	return len(target) > len(scope) && slices.Equal(scope, target[:len(scope)])
}

// enterScope runs the call tree rooted at scope. When the subtree aborts,
// every effect it had is rolled back and the aborted domain is pinned to the
// root captured at the Revert. The RevertContinue transition is then
// consumed against that state and its continuation returned for the caller
// to carry on with. The pin is applied again afterwards, so a continuation
// delta on the reverted domain itself does not outlive the restore.
func (e *Engine) enterScope(scope []uint64, action types.Action) (types.Action, error) {
	snap := e.state.Snapshot()
	out, err := e.newScope(scope, action)
	if err != nil {
		return types.Action{}, err
	}
	if !out.abort {
		return out.next, nil
	}
	if err := e.state.RevertToSnapshot(snap); err != nil {
		return types.Action{}, err
	}
	if err := e.registry.setStateRoot(out.domainID, out.root); err != nil {
		return types.Action{}, err
	}
	cont, err := e.matchAndApply(types.NewRevertContinue(out.domainID))
	if err != nil {
		return types.Action{}, err
	}
	if err := e.registry.setStateRoot(out.domainID, out.root); err != nil {
		return types.Action{}, err
	}
	e.metrics.ScopeReverts.Inc()
	e.log.Debug("Reverted scope", "scope", scope, "domain", out.domainID, "root", out.root, "next", cont.Type)
	return cont, nil
}

// newScope drives execution at scope until an action surfaces that belongs
// to an ancestor, or the scope aborts.
func (e *Engine) newScope(scope []uint64, action types.Action) (scopeOutcome, error) {
	if len(scope) > e.config.MaxScopeDepth {
		return scopeOutcome{}, fmt.Errorf("%w: depth %d", ErrScopeTooDeep, len(scope))
	}
	next := action
	for {
		switch next.Type {
		case types.ActionCall:
			switch {
			case isChildScope(scope, next.Scope):
				child := append(slices.Clone(scope), next.Scope[len(scope)])
				resolved, err := e.enterScope(child, next)
				if err != nil {
					return scopeOutcome{}, err
				}
				next = resolved
			case slices.Equal(scope, next.Scope):
				resolved, err := e.processCallAtScope(next)
				if err != nil {
					return scopeOutcome{}, err
				}
				next = resolved
			default:
				return continueWith(next), nil
			}

		case types.ActionRevert:
			if !slices.Equal(scope, next.Scope) {
				return continueWith(next), nil
			}
			d, err := e.registry.Get(next.DomainID)
			if err != nil {
				return scopeOutcome{}, err
			}
			return abortWith(next.DomainID, d.StateRoot), nil

		default:
			return continueWith(next), nil
		}
	}
}

// processCallAtScope executes a call on the settlement layer through the
// relay of its source and matches the synthesized result.
func (e *Engine) processCallAtScope(action types.Action) (types.Action, error) {
	relay, err := e.relays.ResolveOrCreate(action.SourceAddress, action.SourceDomain)
	if err != nil {
		return types.Action{}, err
	}
	value := action.CallValue()
	if !value.IsZero() {
		src, err := e.registry.Get(action.SourceDomain)
		if err != nil {
			return types.Action{}, err
		}
		if src.Balance.Lt(value) {
			return types.Action{}, fmt.Errorf("%w: domain %d has %s, call needs %s", ErrInsufficientBalance, action.SourceDomain, src.Balance, value)
		}
	}
	// The value reservation shares the call's atomic unit: a failed call
	// leaves the source balance untouched.
	var ret []byte
	callErr := e.state.Atomic(func() error {
		if !value.IsZero() {
			if err := e.registry.Withdraw(action.SourceDomain, value); err != nil {
				return err
			}
			if err := e.host.Transfer(e.config.Address, relay, value); err != nil {
				return err
			}
		}
		var err error
		ret, err = e.host.Call(relay, action.Destination, value, action.Data)
		return err
	})
	outcome := "ok"
	if callErr != nil {
		outcome = "failed"
	}
	e.metrics.CallsExecuted.WithLabelValues(outcome).Inc()
	e.log.Debug("Executed call", "relay", relay, "to", action.Destination, "value", value, "outcome", outcome, "err", callErr)

	result := types.NewResult(action.DomainID, callErr != nil, ret)
	return e.matchAndApply(result)
}

// resolveScopes runs the call tree that follows a matched entry action and
// returns the data of its final result.
func (e *Engine) resolveScopes(next types.Action) ([]byte, error) {
	if next.Type == types.ActionCall {
		resolved, err := e.enterScope(nil, next)
		if err != nil {
			return nil, err
		}
		next = resolved
	}
	if !next.Succeeded() {
		return nil, fmt.Errorf("%w: chain ended with %s (failed=%t)", ErrCallExecutionFailed, next.Type, next.Failed)
	}
	return next.Data, nil
}
