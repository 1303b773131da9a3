// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the interfaces between stateful precompiled
// contracts and the state they run against, together with a minimal
// synchronous call environment. The MEV capture suite is callback driven:
// a precompile calls an external pool, and the pool re-enters the precompile
// before its own call returns. Env models exactly that call stack.
package contract

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
)

// StateDB gives precompiles access to EVM state.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)

	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason)
	SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason)

	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)

	AddLog(log *types.Log)

	Snapshot() int
	RevertToSnapshot(id int)
}

// AccessibleState is the view of the execution environment handed to a
// precompile on each invocation.
type AccessibleState interface {
	GetStateDB() StateDB

	// GetTxOrigin returns the transaction originator, which is not
	// necessarily the immediate caller.
	GetTxOrigin() common.Address

	// Call performs a synchronous call into the contract registered at
	// [to], on behalf of the currently executing contract. State changes
	// made by the callee are reverted if it returns an error.
	Call(to common.Address, input []byte, gas uint64) ([]byte, uint64, error)
}

// StatefulPrecompiledContract is the interface every precompile implements.
type StatefulPrecompiledContract interface {
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// Environment errors
var (
	ErrNoContract   = errors.New("no contract at address")
	ErrDepthLimit   = errors.New("max call depth exceeded")
	ErrNotExecuting = errors.New("no contract is executing")
)

// MaxCallDepth bounds nested calls, mirroring the EVM's 1024 limit.
const MaxCallDepth = 1024
