// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the ordered registry of stateful precompile modules
// that make up the MEV capture suite.
package modules

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/mev/contract"
)

// Config is the activation configuration of a single precompile module,
// normally parsed from the chain's JSON upgrade config.
type Config interface {
	// Key returns the json key this config uses.
	Key() string
	// IsDisabled returns true if the module is switched off.
	IsDisabled() bool
	// Verify checks the config for internal consistency.
	Verify() error
}

// Configurator applies a module's Config to state at activation time.
type Configurator interface {
	MakeConfig() Config
	Configure(cfg Config, state contract.StateDB) error
}

// Module pairs a precompile contract with its address and configuration.
type Module struct {
	// ConfigKey is the key used in json config files to specify this
	// precompile config.
	ConfigKey string
	// Address is the address where the precompile is accessible.
	Address common.Address
	// Contract is the precompile implementation.
	Contract contract.StatefulPrecompiledContract
	// Configurator applies ConfigKey's config at activation.
	Configurator Configurator
}

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var (
	// registeredModules is a list of Module to preserve order
	// for deterministic iteration
	registeredModules = make([]Module, 0)

	// Reserved address range for the MEV capture suite.
	//
	// LP-aligned format: the address ends with the 16-bit LP number.
	// LP-9xxx is the DEX/Markets page; the MEV capture members sit behind
	// the core LX pool precompiles:
	//   0x...9016  BackRunner   (backrun controller + executor)
	//   0x...9017  FeeSplitter  (proportional profit distribution)
	reservedRanges = []AddressRange{
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000009000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000009fff"),
		},
	}
)

// ReservedAddress returns true if [addr] is in a reserved range for custom precompiles
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}

	return false
}

// RegisterModule registers a stateful precompile module
func RegisterModule(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if address == BlackholeAddr {
		return fmt.Errorf("address %s overlaps with blackhole address", address)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}

	for _, registeredModule := range registeredModules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("name %s already used by a stateful precompile", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a stateful precompile", address)
		}
	}
	// sort by address to ensure deterministic iteration
	registeredModules = insertSortedByAddress(registeredModules, stm)
	return nil
}

func GetPrecompileModuleByAddress(address common.Address) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

func GetPrecompileModule(key string) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

func RegisteredModules() []Module {
	return registeredModules
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Slice(data, func(i, j int) bool {
		return bytes.Compare(data[i].Address.Bytes(), data[j].Address.Bytes()) < 0
	})
	return data
}
