// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package backrun implements the BackRunner precompile (LP-9016): a
// publicly triggerable engine that executes an externally quoted multi-hop
// arbitrage route immediately after a swap and captures the residual value.
//
// The engine is one state machine with two ingress points: the top-level
// triggerBackrun selector, and the two pool callback selectors a pool uses
// to re-enter the engine mid-swap. Continuation state is carried inside the
// callback payload itself; the engine only keeps a commitment to it.
package backrun

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/zeebo/blake3"
)

// BackRunnerAddress is the LP-9016 precompile address.
const BackRunnerAddress = "0x0000000000000000000000000000000000009016"

// BackRunnerAddr is the parsed precompile address.
var BackRunnerAddr = common.HexToAddress(BackRunnerAddress)

// Function selectors (4-byte)
var (
	SelectorTriggerBackrun = [4]byte{0x3e, 0xd2, 0x1d, 0x35} // triggerBackrun(bytes32,uint112,bool,address)
	SelectorSetQuoter      = [4]byte{0x10, 0x9e, 0x3c, 0x50} // setQuoter(address)
	SelectorWithdrawToken  = [4]byte{0x01, 0xe3, 0x36, 0x67} // withdrawToken(address,uint256,address)
	SelectorWithdrawEth    = [4]byte{0xf1, 0x4f, 0xcb, 0xc8} // withdrawEth(uint256,address)
	SelectorGetAdmin       = [4]byte{0x6e, 0x9d, 0xf3, 0xd2} // getAdmin()
	SelectorGetQuoter      = [4]byte{0xe9, 0x26, 0x42, 0x1f} // getQuoter()
)

// Pool swap selectors, one per DEX family. The values are the canonical
// pair and concentrated-pool swap selectors so existing pool bytecode
// interoperates unchanged.
var (
	SelectorPushSwap  = [4]byte{0x02, 0x2c, 0x0d, 0x9f} // swap(uint256,uint256,address,bytes)
	SelectorDeltaSwap = [4]byte{0x12, 0x8a, 0xcb, 0x08} // swap(address,bool,int256,uint160,bytes)
)

// Callback selectors a pool uses to re-enter the engine mid-swap. Any other
// selector arriving on the fallback path is rejected outright.
var (
	SelectorPushCallback  = [4]byte{0x10, 0xd1, 0xe8, 0x5c} // uniswapV2Call(address,uint256,uint256,bytes)
	SelectorDeltaCallback = [4]byte{0xfa, 0x46, 0x1e, 0x33} // uniswapV3SwapCallback(int256,int256,bytes)
)

// Gas costs
const (
	GasTrigger    uint64 = 25_000 // Trigger orchestration, before pool calls
	GasCallback   uint64 = 8_000  // Callback resume dispatch
	GasAdminWrite uint64 = 5_000  // Writing admin-gated state
	GasAdminRead  uint64 = 200    // View functions
)

// MaxAmountBits bounds triggerBackrun input amounts to the expected AMM
// reserve scale.
const MaxAmountBits = 112

// zeroAmount is shared by swap encoders for the unused side. Read-only.
var zeroAmount = uint256.NewInt(0)

// Errors
var (
	ErrUnauthorized       = errors.New("unauthorized: caller is not admin")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAddress     = errors.New("invalid address: cannot be zero")
	ErrInsufficientGas    = errors.New("insufficient gas")
	ErrReadOnly           = errors.New("cannot write in read-only mode")
	ErrUnknownSelector    = errors.New("unknown method selector")
	ErrQuoterNotSet       = errors.New("quoter not configured")
	ErrAmountOverflow     = errors.New("amount exceeds 112 bits")
	ErrReentrant          = errors.New("reentrancy detected")
	ErrUnexpectedCallback = errors.New("unexpected swap callback")
)

// Storage slot keys, derived the same way the pool manager derives its keys.
var (
	AdminSlot  = makeSlot("backrun.admin")
	QuoterSlot = makeSlot("backrun.quoter")
)

func makeSlot(name string) common.Hash {
	h := blake3.New()
	h.Write([]byte(name))
	var slot common.Hash
	h.Digest().Read(slot[:])
	return slot
}

// Event topics
var (
	TopicBackrunExecuted = eventTopic("BackrunExecuted(bytes32,uint256,bool,uint256,address,address)")
)

func eventTopic(sig string) common.Hash {
	h := blake3.New()
	h.Write([]byte(sig))
	var topic common.Hash
	h.Digest().Read(topic[:])
	return topic
}

// Price limit bounds for the delta family, Q64.96 sqrt-price format.
var (
	MinSqrtRatio    = new(big.Int).SetUint64(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	minSqrtLimit = new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
	maxSqrtLimit = new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
)

// =========================================================================
// Wire helpers
// =========================================================================

// EncodePushSwap packs a pair-style swap call: requested output amounts,
// destination, and callback data.
func EncodePushSwap(amount0Out, amount1Out *uint256.Int, to common.Address, data []byte) []byte {
	input := make([]byte, 0, 4+32+32+32+len(data))
	input = append(input, SelectorPushSwap[:]...)
	input = appendWord(input, amount0Out)
	input = appendWord(input, amount1Out)
	input = appendAddress(input, to)
	return append(input, data...)
}

// DecodePushSwap unpacks a pair-style swap call body (without selector).
func DecodePushSwap(args []byte) (amount0Out, amount1Out *uint256.Int, to common.Address, data []byte, err error) {
	if len(args) < 96 {
		return nil, nil, common.Address{}, nil, ErrInvalidInput
	}
	amount0Out = new(uint256.Int).SetBytes(args[:32])
	amount1Out = new(uint256.Int).SetBytes(args[32:64])
	to = common.BytesToAddress(args[76:96])
	return amount0Out, amount1Out, to, args[96:], nil
}

// EncodeDeltaSwap packs a concentrated-style swap call.
func EncodeDeltaSwap(recipient common.Address, zeroForOne bool, amountSpecified *uint256.Int, sqrtPriceLimitX96 *big.Int, data []byte) []byte {
	input := make([]byte, 0, 4+32+1+32+32+len(data))
	input = append(input, SelectorDeltaSwap[:]...)
	input = appendAddress(input, recipient)
	if zeroForOne {
		input = append(input, 1)
	} else {
		input = append(input, 0)
	}
	input = appendWord(input, amountSpecified)
	var limit [32]byte
	sqrtPriceLimitX96.FillBytes(limit[:])
	input = append(input, limit[:]...)
	return append(input, data...)
}

// DecodeDeltaSwap unpacks a concentrated-style swap call body.
func DecodeDeltaSwap(args []byte) (recipient common.Address, zeroForOne bool, amountSpecified *uint256.Int, sqrtPriceLimitX96 *big.Int, data []byte, err error) {
	if len(args) < 97 {
		return common.Address{}, false, nil, nil, nil, ErrInvalidInput
	}
	recipient = common.BytesToAddress(args[12:32])
	zeroForOne = args[32] == 1
	amountSpecified = new(uint256.Int).SetBytes(args[33:65])
	sqrtPriceLimitX96 = new(big.Int).SetBytes(args[65:97])
	return recipient, zeroForOne, amountSpecified, sqrtPriceLimitX96, args[97:], nil
}

// EncodePushCallback packs the pair-family callback a pool issues to the
// engine before its swap call returns.
func EncodePushCallback(sender common.Address, amount0, amount1 *uint256.Int, data []byte) []byte {
	input := make([]byte, 0, 4+32+32+32+len(data))
	input = append(input, SelectorPushCallback[:]...)
	input = appendAddress(input, sender)
	input = appendWord(input, amount0)
	input = appendWord(input, amount1)
	return append(input, data...)
}

// EncodeDeltaCallback packs the delta-family callback: two signed balance
// deltas (positive = owed to the pool) plus the continuation payload.
func EncodeDeltaCallback(delta0, delta1 *big.Int, data []byte) []byte {
	input := make([]byte, 0, 4+32+32+len(data))
	input = append(input, SelectorDeltaCallback[:]...)
	input = appendSignedWord(input, delta0)
	input = appendSignedWord(input, delta1)
	return append(input, data...)
}

// DecodeSignedWord reads a 32-byte two's-complement int256.
func DecodeSignedWord(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word[:32])
	if word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		v.Sub(v, max)
	}
	return v
}

func appendWord(dst []byte, v *uint256.Int) []byte {
	var word [32]byte
	v.WriteToSlice(word[:])
	return append(dst, word[:]...)
}

func appendAddress(dst []byte, addr common.Address) []byte {
	var word [32]byte
	copy(word[12:], addr.Bytes())
	return append(dst, word[:]...)
}

func appendSignedWord(dst []byte, v *big.Int) []byte {
	var word [32]byte
	if v.Sign() < 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		new(big.Int).Add(max, v).FillBytes(word[:])
	} else {
		v.FillBytes(word[:])
	}
	return append(dst, word[:]...)
}

// payloadHash commits to a continuation payload.
func payloadHash(payload []byte) common.Hash {
	h := blake3.New()
	h.Write(payload)
	var out common.Hash
	h.Digest().Read(out[:])
	return out
}

func emitBackrunExecuted(
	addLog func(*types.Log),
	triggerPool common.Hash,
	amountIn *uint256.Int,
	direction bool,
	profit *uint256.Int,
	profitToken common.Address,
	recipient common.Address,
) {
	data := make([]byte, 0, 160)
	data = appendWord(data, amountIn)
	var dirWord [32]byte
	if direction {
		dirWord[31] = 1
	}
	data = append(data, dirWord[:]...)
	data = appendWord(data, profit)
	data = appendAddress(data, profitToken)
	data = appendAddress(data, recipient)

	addLog(&types.Log{
		Address: BackRunnerAddr,
		Topics:  []common.Hash{TopicBackrunExecuted, triggerPool},
		Data:    data,
	})
}
