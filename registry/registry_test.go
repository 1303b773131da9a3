// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/mev/backrun"
	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/modules"
	"github.com/luxfi/mev/splitter"
)

func TestSuiteModulesRegistered(t *testing.T) {
	for _, addr := range []common.Address{backrun.BackRunnerAddr, splitter.FeeSplitterAddr} {
		m, ok := modules.GetPrecompileModuleByAddress(addr)
		require.True(t, ok, "module at %s must self-register", addr)
		require.NotNil(t, m.Contract)
		require.NotNil(t, m.Configurator)
	}
}

func TestGetPrecompileAddress(t *testing.T) {
	require.Equal(t, backrun.BackRunnerAddr, GetPrecompileAddress("BACK_RUNNER"))
	require.Equal(t, splitter.FeeSplitterAddr, GetPrecompileAddress("FEE_SPLITTER"))
	require.Equal(t, common.Address{}, GetPrecompileAddress("NO_SUCH"))
}

func TestNewEnvInstallsSuite(t *testing.T) {
	env := NewEnv(contract.NewMemStateDB())

	// Both precompiles answer getAdmin through the shared environment.
	origin := common.HexToAddress("0x1000000000000000000000000000000000000001")
	ret, _, err := env.Execute(origin, backrun.BackRunnerAddr, backrun.SelectorGetAdmin[:], 100_000)
	require.NoError(t, err)
	require.Len(t, ret, 32)

	ret, _, err = env.Execute(origin, splitter.FeeSplitterAddr, splitter.SelectorGetAdmin[:], 100_000)
	require.NoError(t, err)
	require.Len(t, ret, 32)
}
