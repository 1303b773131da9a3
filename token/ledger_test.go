// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/mev/contract"
)

var (
	tokenX = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob    = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestMintAndBalanceOf(t *testing.T) {
	state := contract.NewMemStateDB()

	Mint(state, tokenX, alice, uint256.NewInt(1000))
	require.Equal(t, uint256.NewInt(1000), BalanceOf(state, tokenX, alice))
	require.True(t, BalanceOf(state, tokenX, bob).IsZero())
}

func TestTransferToken(t *testing.T) {
	state := contract.NewMemStateDB()
	Mint(state, tokenX, alice, uint256.NewInt(1000))

	require.NoError(t, Transfer(state, tokenX, alice, bob, uint256.NewInt(400)))
	require.Equal(t, uint256.NewInt(600), BalanceOf(state, tokenX, alice))
	require.Equal(t, uint256.NewInt(400), BalanceOf(state, tokenX, bob))
}

func TestTransferToSelfConservesBalance(t *testing.T) {
	state := contract.NewMemStateDB()
	Mint(state, tokenX, alice, uint256.NewInt(1000))

	require.NoError(t, Transfer(state, tokenX, alice, alice, uint256.NewInt(400)))
	require.Equal(t, uint256.NewInt(1000), BalanceOf(state, tokenX, alice))

	Mint(state, Native, alice, uint256.NewInt(500))
	require.NoError(t, Transfer(state, Native, alice, alice, uint256.NewInt(200)))
	require.Equal(t, uint256.NewInt(500), state.GetBalance(alice))
}

func TestTransferInsufficient(t *testing.T) {
	state := contract.NewMemStateDB()
	Mint(state, tokenX, alice, uint256.NewInt(10))

	err := Transfer(state, tokenX, alice, bob, uint256.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint256.NewInt(10), BalanceOf(state, tokenX, alice), "failed transfer must not move funds")
	require.True(t, BalanceOf(state, tokenX, bob).IsZero())
}

func TestTransferZeroAmountIsNoop(t *testing.T) {
	state := contract.NewMemStateDB()

	// Zero transfers succeed even with no balance at all.
	require.NoError(t, Transfer(state, tokenX, alice, bob, uint256.NewInt(0)))
}

func TestTransferNative(t *testing.T) {
	state := contract.NewMemStateDB()
	Mint(state, Native, alice, uint256.NewInt(500))

	require.NoError(t, Transfer(state, Native, alice, bob, uint256.NewInt(123)))
	require.Equal(t, uint256.NewInt(377), state.GetBalance(alice))
	require.Equal(t, uint256.NewInt(123), state.GetBalance(bob))
}

func TestBalanceSlotStableAndDistinct(t *testing.T) {
	slotA := BalanceSlot(alice)
	require.Equal(t, slotA, BalanceSlot(alice), "memoized slot must be stable")
	require.NotEqual(t, slotA, BalanceSlot(bob))
}

func TestBalancesIsolatedPerToken(t *testing.T) {
	state := contract.NewMemStateDB()
	tokenY := common.HexToAddress("0x00000000000000000000000000000000000000e2")

	Mint(state, tokenX, alice, uint256.NewInt(7))
	require.True(t, BalanceOf(state, tokenY, alice).IsZero())
}
