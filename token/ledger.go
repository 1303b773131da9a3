// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token is a minimal ERC20-style balance ledger kept in precompile
// storage. The backrun engine settles hops with it, the splitter pays shares
// with it, and sweeps drain it. The zero address denotes native LUX, which
// moves through account balances instead of storage slots.
package token

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/zeebo/blake3"

	"github.com/luxfi/mev/contract"
)

// Native is the token address standing for native LUX.
var Native = common.Address{}

var balancePrefix = []byte("tbal")

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// slotCache memoizes blake3-derived balance slots. Slot derivation is pure,
// so caching cannot change behavior, only skip rehashing on the hop path.
var slotCache, _ = lru.New[common.Address, common.Hash](4096)

// IsNative returns true if [token] denotes native currency.
func IsNative(token common.Address) bool {
	return token == Native
}

// BalanceSlot returns the storage slot holding [holder]'s balance inside the
// token's account storage.
func BalanceSlot(holder common.Address) common.Hash {
	if slot, ok := slotCache.Get(holder); ok {
		return slot
	}
	h := blake3.New()
	h.Write(balancePrefix)
	h.Write(holder.Bytes())
	var slot common.Hash
	h.Digest().Read(slot[:])
	slotCache.Add(holder, slot)
	return slot
}

// BalanceOf returns [holder]'s balance of [token].
func BalanceOf(state contract.StateDB, token, holder common.Address) *uint256.Int {
	if IsNative(token) {
		return state.GetBalance(holder)
	}
	val := state.GetState(token, BalanceSlot(holder))
	return new(uint256.Int).SetBytes(val[:])
}

// Transfer moves [amount] of [token] from [from] to [to]. A zero amount is a
// valid no-op. Fails without touching state if [from] cannot cover it.
func Transfer(state contract.StateDB, token, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if IsNative(token) {
		if state.GetBalance(from).Lt(amount) {
			return ErrInsufficientBalance
		}
		state.SubBalance(from, amount, tracing.BalanceChangeTransfer)
		state.AddBalance(to, amount, tracing.BalanceChangeTransfer)
		return nil
	}

	fromBal := BalanceOf(state, token, from)
	if fromBal.Lt(amount) {
		return ErrInsufficientBalance
	}
	setBalance(state, token, from, new(uint256.Int).Sub(fromBal, amount))
	// The credit reads the post-debit balance, so a self-transfer nets out.
	toBal := BalanceOf(state, token, to)
	setBalance(state, token, to, new(uint256.Int).Add(toBal, amount))
	return nil
}

// Mint credits [amount] of [token] to [to]. Used for genesis allocation and
// test fixtures; real ERC20 supply management lives outside this suite.
func Mint(state contract.StateDB, token, to common.Address, amount *uint256.Int) {
	if IsNative(token) {
		state.AddBalance(to, amount, tracing.BalanceChangeUnspecified)
		return
	}
	bal := BalanceOf(state, token, to)
	setBalance(state, token, to, new(uint256.Int).Add(bal, amount))
}

func setBalance(state contract.StateDB, token, holder common.Address, bal *uint256.Int) {
	var val common.Hash
	bal.WriteToSlice(val[:])
	state.SetState(token, BalanceSlot(holder), val)
}
