// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package backrun

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/quoter"
	"github.com/luxfi/mev/token"
)

// BackRunner is the LP-9016 precompile. Anyone may trigger it; the quoted
// route decides whether there is anything worth executing. Profit is
// measured as the engine's own balance delta in the route's terminal token,
// floored at zero, and paid out to the caller-chosen recipient.
type BackRunner struct {
	quotes *quoter.Client
	log    log.Logger

	// Scratch state for the swap currently in flight. Execution is
	// single-threaded and synchronous; these never cross a transaction.
	inFlight    bool
	pendingHash common.Hash
	pendingPool common.Address
}

// NewBackRunner returns a fresh engine with no pending execution.
func NewBackRunner() *BackRunner {
	return &BackRunner{
		quotes: quoter.NewClient(),
		log:    log.NewTestLogger(log.InfoLevel),
	}
}

var _ contract.StatefulPrecompiledContract = (*BackRunner)(nil)

func deductGas(suppliedGas, requiredGas uint64) (uint64, error) {
	if suppliedGas < requiredGas {
		return 0, ErrInsufficientGas
	}
	return suppliedGas - requiredGas, nil
}

// Run dispatches on the 4-byte selector. Selectors outside the dispatch
// table revert; there is no passive receive path on this contract.
func (c *BackRunner) Run(
	env contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if len(input) < 4 {
		return nil, suppliedGas, ErrInvalidInput
	}
	var selector [4]byte
	copy(selector[:], input[:4])
	args := input[4:]

	switch selector {
	case SelectorTriggerBackrun:
		return c.trigger(env, args, suppliedGas, readOnly)
	case SelectorPushCallback:
		return c.pushCallback(env, caller, args, suppliedGas, readOnly)
	case SelectorDeltaCallback:
		return c.deltaCallback(env, caller, args, suppliedGas, readOnly)
	case SelectorSetQuoter:
		return c.setQuoter(env, caller, args, suppliedGas, readOnly)
	case SelectorWithdrawToken:
		return c.withdrawToken(env, caller, args, suppliedGas, readOnly)
	case SelectorWithdrawEth:
		return c.withdrawEth(env, caller, args, suppliedGas, readOnly)
	case SelectorGetAdmin:
		return c.getAdmin(env, suppliedGas, readOnly)
	case SelectorGetQuoter:
		return c.getQuoter(env, suppliedGas)
	default:
		return nil, suppliedGas, ErrUnknownSelector
	}
}

// adminOf reads the admin, binding it to the transaction originator on the
// first state-mutating touch of an unconfigured contract.
func (c *BackRunner) adminOf(env contract.AccessibleState, readOnly bool) common.Address {
	state := env.GetStateDB()
	admin := common.BytesToAddress(state.GetState(BackRunnerAddr, AdminSlot).Bytes())
	if admin == (common.Address{}) && !readOnly {
		admin = env.GetTxOrigin()
		state.SetState(BackRunnerAddr, AdminSlot, common.BytesToHash(admin.Bytes()))
		c.log.Info("backrunner admin bound", "admin", admin)
	}
	return admin
}

// =========================================================================
// triggerBackrun(bytes32 pool, uint112 amountIn, bool direction, address recipient)
// =========================================================================

// trigger quotes a route off the just-observed swap and executes it. Any
// failure in the quote, the route, or any hop reverts the whole execution;
// there is no partial settlement.
func (c *BackRunner) trigger(
	env contract.AccessibleState,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasTrigger)
	if err != nil {
		return nil, 0, err
	}
	if readOnly {
		return nil, gas, ErrReadOnly
	}
	if len(args) < 128 {
		return nil, gas, ErrInvalidInput
	}
	if c.inFlight {
		return nil, gas, ErrReentrant
	}

	pool := common.BytesToHash(args[:32])
	amountIn := new(uint256.Int).SetBytes(args[32:64])
	if amountIn.BitLen() > MaxAmountBits {
		return nil, gas, ErrAmountOverflow
	}
	direction := args[95] != 0
	recipient := common.BytesToAddress(args[108:128])
	if recipient == (common.Address{}) {
		return nil, gas, ErrInvalidAddress
	}

	state := env.GetStateDB()
	quoterAddr := common.BytesToAddress(state.GetState(BackRunnerAddr, QuoterSlot).Bytes())
	if quoterAddr == (common.Address{}) {
		return nil, gas, ErrQuoterNotSet
	}

	// The asset selector word carries the swap direction; the quoter maps
	// it onto the pool's token pair.
	var asset common.Hash
	if direction {
		asset[31] = 1
	}

	c.inFlight = true
	defer func() {
		c.inFlight = false
		c.pendingHash = common.Hash{}
		c.pendingPool = common.Address{}
	}()

	quote, gas, err := c.quotes.GetQuote(env, quoterAddr, common.BytesToAddress(pool[12:]), asset, amountIn, gas)
	if err != nil {
		return nil, gas, err
	}

	route := quote.Route
	if err := route.Validate(); err != nil {
		return nil, gas, err
	}
	if route.Empty() {
		c.log.Debug("empty route, nothing to execute", "pool", pool)
		return encodeTriggerResult(zeroAmount, common.Address{}), gas, nil
	}
	route.Normalize()

	profitToken := route.Hops[len(route.Hops)-1].TokenOut
	before := token.BalanceOf(state, profitToken, BackRunnerAddr).Clone()

	gas, err = c.executeHop(env, route, gas)
	if err != nil {
		return nil, gas, err
	}

	after := token.BalanceOf(state, profitToken, BackRunnerAddr)
	profit := uint256.NewInt(0)
	if after.Gt(before) {
		profit.Sub(after, before)
	}
	if !profit.IsZero() {
		if err := token.Transfer(state, profitToken, BackRunnerAddr, recipient, profit); err != nil {
			return nil, gas, err
		}
	}

	emitBackrunExecuted(state.AddLog, pool, amountIn, direction, profit, profitToken, recipient)
	c.log.Info("backrun executed",
		"pool", pool,
		"amountIn", amountIn,
		"profit", profit,
		"token", profitToken,
		"recipient", recipient,
	)
	return encodeTriggerResult(profit, profitToken), gas, nil
}

func encodeTriggerResult(profit *uint256.Int, profitToken common.Address) []byte {
	out := make([]byte, 0, 64)
	out = appendWord(out, profit)
	return appendAddress(out, profitToken)
}

// =========================================================================
// Pool callbacks
// =========================================================================

// pushCallback handles uniswapV2Call. The sender field must name the engine
// itself: a pair forwards whatever address initiated its swap, and only
// swaps the engine initiated may resume it.
func (c *BackRunner) pushCallback(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasCallback)
	if err != nil {
		return nil, 0, err
	}
	if readOnly {
		return nil, gas, ErrReadOnly
	}
	if len(args) < 96 {
		return nil, gas, ErrInvalidInput
	}
	if common.BytesToAddress(args[12:32]) != BackRunnerAddr {
		return nil, gas, ErrUnexpectedCallback
	}
	gas, err = c.resume(env, caller, args[96:], gas, false)
	return nil, gas, err
}

// deltaCallback handles uniswapV3SwapCallback. The owed input is settled
// with the calling pool before the walk continues; the engine pays the
// quoted hop input, and a pool wanting more can only revert.
func (c *BackRunner) deltaCallback(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasCallback)
	if err != nil {
		return nil, 0, err
	}
	if readOnly {
		return nil, gas, ErrReadOnly
	}
	if len(args) < 64 {
		return nil, gas, ErrInvalidInput
	}
	gas, err = c.resume(env, caller, args[64:], gas, true)
	return nil, gas, err
}

// =========================================================================
// Admin
// =========================================================================

func (c *BackRunner) setQuoter(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasAdminWrite)
	if err != nil {
		return nil, 0, err
	}
	if readOnly {
		return nil, gas, ErrReadOnly
	}
	if len(args) < 32 {
		return nil, gas, ErrInvalidInput
	}
	if caller != c.adminOf(env, readOnly) {
		return nil, gas, ErrUnauthorized
	}
	quoterAddr := common.BytesToAddress(args[12:32])
	if quoterAddr == (common.Address{}) {
		return nil, gas, ErrInvalidAddress
	}
	env.GetStateDB().SetState(BackRunnerAddr, QuoterSlot, common.BytesToHash(quoterAddr.Bytes()))
	c.log.Info("quoter updated", "quoter", quoterAddr)
	return nil, gas, nil
}

func (c *BackRunner) withdrawToken(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasAdminWrite)
	if err != nil {
		return nil, 0, err
	}
	if readOnly {
		return nil, gas, ErrReadOnly
	}
	if len(args) < 96 {
		return nil, gas, ErrInvalidInput
	}
	if caller != c.adminOf(env, readOnly) {
		return nil, gas, ErrUnauthorized
	}
	tok := common.BytesToAddress(args[12:32])
	amount := new(uint256.Int).SetBytes(args[32:64])
	to := common.BytesToAddress(args[76:96])
	if to == (common.Address{}) {
		return nil, gas, ErrInvalidAddress
	}
	if err := token.Transfer(env.GetStateDB(), tok, BackRunnerAddr, to, amount); err != nil {
		return nil, gas, err
	}
	return nil, gas, nil
}

func (c *BackRunner) withdrawEth(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasAdminWrite)
	if err != nil {
		return nil, 0, err
	}
	if readOnly {
		return nil, gas, ErrReadOnly
	}
	if len(args) < 64 {
		return nil, gas, ErrInvalidInput
	}
	if caller != c.adminOf(env, readOnly) {
		return nil, gas, ErrUnauthorized
	}
	amount := new(uint256.Int).SetBytes(args[:32])
	to := common.BytesToAddress(args[44:64])
	if to == (common.Address{}) {
		return nil, gas, ErrInvalidAddress
	}
	if err := token.Transfer(env.GetStateDB(), token.Native, BackRunnerAddr, to, amount); err != nil {
		return nil, gas, err
	}
	return nil, gas, nil
}

func (c *BackRunner) getAdmin(env contract.AccessibleState, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasAdminRead)
	if err != nil {
		return nil, 0, err
	}
	admin := c.adminOf(env, readOnly)
	return appendAddress(nil, admin), gas, nil
}

func (c *BackRunner) getQuoter(env contract.AccessibleState, suppliedGas uint64) ([]byte, uint64, error) {
	gas, err := deductGas(suppliedGas, GasAdminRead)
	if err != nil {
		return nil, 0, err
	}
	quoterAddr := common.BytesToAddress(env.GetStateDB().GetState(BackRunnerAddr, QuoterSlot).Bytes())
	return appendAddress(nil, quoterAddr), gas, nil
}
