// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package backrun

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/quoter"
	"github.com/luxfi/mev/token"
)

// =========================================================================
// Multi-hop executor
//
// Each hop is one external swap call. A non-final hop carries the remainder
// of the route, re-encoded with a bumped resume index, as the callback
// payload; the pool hands the payload back through its callback and the
// engine picks up where it left off. The engine keeps no route state of its
// own between the call and the callback, only a hash of the payload it
// expects and the pool it expects it from. The commitment is consumed on
// first use, so each pending callback resumes exactly once.
//
// Payment follows the hop's family convention: push pools are paid before
// the swap call, delta pools are paid inside the callback (or debit the
// engine directly on a final hop, where no callback payload is sent).
// =========================================================================

// executeHop performs hop route.Index and, through the callback chain, every
// hop after it. The route must be validated and normalized.
func (c *BackRunner) executeHop(env contract.AccessibleState, route *quoter.Route, gas uint64) (uint64, error) {
	i := route.Index
	hop := route.Hops[i]
	amountIn := route.InputAmount(i)
	amountOut := route.Amounts[i]
	direction := quoter.Direction(hop.Meta)
	final := route.Final(i)

	// The continuation payload for the pool to echo back. Final hops send
	// none; the swap call returning is the end of the chain.
	var payload []byte
	if !final {
		cont := *route
		cont.Index = i + 1
		payload = cont.Encode()
		c.pendingHash = payloadHash(payload)
		c.pendingPool = hop.Pool
	}

	state := env.GetStateDB()
	switch hop.Dex {
	case quoter.DexPush:
		// Push pools verify balances, not payments: move the input in
		// before asking for the output.
		if err := token.Transfer(state, hop.TokenIn, BackRunnerAddr, hop.Pool, amountIn); err != nil {
			return gas, fmt.Errorf("%w: hop %d input", err, i)
		}
		var input []byte
		if direction {
			input = EncodePushSwap(zeroAmount, amountOut, BackRunnerAddr, payload)
		} else {
			input = EncodePushSwap(amountOut, zeroAmount, BackRunnerAddr, payload)
		}
		_, gas, err := env.Call(hop.Pool, input, gas)
		return gas, err

	case quoter.DexDelta:
		limit := maxSqrtLimit
		if direction {
			limit = minSqrtLimit
		}
		input := EncodeDeltaSwap(BackRunnerAddr, direction, amountIn, limit, payload)
		_, gas, err := env.Call(hop.Pool, input, gas)
		return gas, err
	}
	return gas, quoter.ErrUnknownDexType
}

// resume re-enters the hop walk from a pool callback. payCaller settles the
// just-executed hop's input with the calling pool first (delta family).
func (c *BackRunner) resume(env contract.AccessibleState, caller common.Address, payload []byte, gas uint64, payCaller bool) (uint64, error) {
	if !c.inFlight || c.pendingPool != caller || c.pendingHash != payloadHash(payload) {
		return gas, ErrUnexpectedCallback
	}
	// Consume the commitment before doing anything else.
	c.pendingHash = common.Hash{}
	c.pendingPool = common.Address{}

	cont, err := quoter.DecodeRoute(payload)
	if err != nil || cont.Index == 0 || int(cont.Index) > len(cont.Hops) {
		return gas, ErrUnexpectedCallback
	}

	if payCaller {
		prev := cont.Index - 1
		hop := cont.Hops[prev]
		if err := token.Transfer(env.GetStateDB(), hop.TokenIn, BackRunnerAddr, caller, cont.InputAmount(prev)); err != nil {
			return gas, fmt.Errorf("%w: hop %d input", err, prev)
		}
	}

	if cont.Empty() {
		return gas, nil
	}
	return c.executeHop(env, cont, gas)
}
