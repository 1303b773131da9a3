// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// Env wires contracts together. It tracks the active call stack so that a
// pool invoked by the backrun engine can synchronously re-enter the engine
// (the callback leg of a flash swap) with the correct caller identity.
//
// Env is single threaded: all "concurrency" in this system is nested
// synchronous calls within one top-level transaction.
type Env struct {
	state     StateDB
	origin    common.Address
	contracts map[common.Address]StatefulPrecompiledContract

	// stack holds the addresses of currently executing contracts,
	// innermost last.
	stack []common.Address
}

// NewEnv creates a call environment over [state].
func NewEnv(state StateDB) *Env {
	return &Env{
		state:     state,
		contracts: make(map[common.Address]StatefulPrecompiledContract),
	}
}

// Register installs a contract at [addr]. The account is created so that
// balance operations against it behave like a deployed contract.
func (e *Env) Register(addr common.Address, c StatefulPrecompiledContract) {
	e.contracts[addr] = c
	e.state.CreateAccount(addr)
}

// GetStateDB implements AccessibleState.
func (e *Env) GetStateDB() StateDB {
	return e.state
}

// GetTxOrigin implements AccessibleState.
func (e *Env) GetTxOrigin() common.Address {
	return e.origin
}

// Call implements AccessibleState: a nested call issued by the currently
// executing contract.
func (e *Env) Call(to common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if len(e.stack) == 0 {
		return nil, gas, ErrNotExecuting
	}
	return e.call(e.stack[len(e.stack)-1], to, input, gas)
}

// Execute starts a top-level transaction from [origin] against [to].
// The whole call tree either commits or reverts as a unit.
func (e *Env) Execute(origin, to common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	e.origin = origin
	defer func() { e.origin = common.Address{} }()
	return e.call(origin, to, input, gas)
}

func (e *Env) call(caller, to common.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if len(e.stack) >= MaxCallDepth {
		return nil, gas, ErrDepthLimit
	}
	c, ok := e.contracts[to]
	if !ok {
		return nil, gas, fmt.Errorf("%w: %s", ErrNoContract, to.Hex())
	}

	snap := e.state.Snapshot()
	e.stack = append(e.stack, to)

	ret, remainingGas, err := c.Run(e, caller, to, input, gas, false)

	e.stack = e.stack[:len(e.stack)-1]
	if err != nil {
		e.state.RevertToSnapshot(snap)
	} else if ds, ok := e.state.(interface{ DiscardSnapshot(id int) }); ok {
		// Not part of the geth StateDB surface; the in-memory backend
		// supports it to keep its snapshot stack from growing.
		ds.DiscardSnapshot(snap)
	}
	return ret, remainingGas, err
}
