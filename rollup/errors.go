package rollup

import "errors"

// Proof rejection.
var ErrInvalidProof = errors.New("rollup: invalid proof")

// Lookup failures.
var (
	ErrTransitionNotFound = errors.New("rollup: no transition matches live state")
	ErrNothingToEvict     = errors.New("rollup: nothing to evict")
	ErrIndexOutOfRange    = errors.New("rollup: cache index out of range")
	ErrDomainNotFound     = errors.New("rollup: domain not found")
)

// Conservation violations.
var (
	ErrEtherIncrementsSumNotZero = errors.New("rollup: balance increments do not sum to zero")
	ErrInsufficientBalance       = errors.New("rollup: insufficient domain balance")
	ErrBalanceOverflow           = errors.New("rollup: domain balance overflow")
)

// Authorization and timing failures.
var (
	ErrUnauthorizedCaller     = errors.New("rollup: unauthorized caller")
	ErrAlreadyUpdatedThisTick = errors.New("rollup: state already updated this tick")
)

// Call chain failures.
var (
	ErrCallExecutionFailed = errors.New("rollup: call execution failed")
	ErrScopeTooDeep        = errors.New("rollup: scope nesting too deep")
)

// Malformed requests.
var (
	ErrEmptyBatch       = errors.New("rollup: batch has no commitments")
	ErrEmptyExecutions  = errors.New("rollup: no transitions to load")
	ErrBlobNotAvailable = errors.New("rollup: blob not available")
	ErrZeroAmount       = errors.New("rollup: amount must be positive")
)
