// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry ties the MEV capture suite together: importing it
// registers every precompile module, and NewEnv builds a call environment
// with all of them installed at their reserved addresses.
package registry

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/mev/backrun"
	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/modules"
	"github.com/luxfi/mev/splitter"
)

// ============================================================================
// PRECOMPILE ADDRESS SCHEME - Aligned with LP Numbering (LP-0099)
// ============================================================================
//
// All Lux-native precompiles use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PCII
//
// The address ends with the 16-bit LP number for easy identification.
// The MEV capture suite lives on page 9 (LP-9xxx, DEX/Markets), in the
// block after the core trading precompiles:
//
//   LP-9010..9014: core DEX (pool manager, oracle, router, hooks, flash)
//   LP-9016:       BackRunner (backrun value capture engine)
//   LP-9017:       FeeSplitter (basis-point profit distribution)

const (
	// Core DEX precompiles this suite trades against.
	LXPool   = "0x0000000000000000000000000000000000009010" // LP-9010 LXPool (singleton AMM)
	LXOracle = "0x0000000000000000000000000000000000009011" // LP-9011 LXOracle (price aggregation)
	LXRouter = "0x0000000000000000000000000000000000009012" // LP-9012 LXRouter (swap routing)

	// MEV capture suite.
	BackRunner  = backrun.BackRunnerAddress   // LP-9016
	FeeSplitter = splitter.FeeSplitterAddress // LP-9017
)

// PrecompileInfo contains metadata about a precompile.
type PrecompileInfo struct {
	Address     string
	Name        string
	Description string
	GasBase     uint64
	LPNumber    string
}

// AllPrecompiles lists the suite's precompiles with their metadata.
var AllPrecompiles = []PrecompileInfo{
	{BackRunner, "BACK_RUNNER", "Backrun value capture engine", backrun.GasTrigger, "LP-9016"},
	{FeeSplitter, "FEE_SPLITTER", "Basis-point profit distribution", splitter.GasSplitBase, "LP-9017"},
}

// GetPrecompileAddress returns the address for a precompile by name.
func GetPrecompileAddress(name string) common.Address {
	for _, p := range AllPrecompiles {
		if p.Name == name {
			return common.HexToAddress(p.Address)
		}
	}
	return common.Address{}
}

// NewEnv builds a call environment with every registered module installed
// at its reserved address.
func NewEnv(state contract.StateDB) *contract.Env {
	env := contract.NewEnv(state)
	for _, m := range modules.RegisteredModules() {
		env.Register(m.Address, m.Contract)
	}
	return env
}
