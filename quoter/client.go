// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quoter

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/mev/contract"
)

// SelectorGetQuote is the 4-byte selector of
// getQuote(address,bytes32,uint256).
var SelectorGetQuote = [4]byte{0x9b, 0x25, 0x4a, 0x66}

// Quote is one candidate arbitrage route plus its estimated profit. The
// estimate is advisory only: the route may be stale by execution time and
// realized profit is measured, never assumed.
type Quote struct {
	Profit *uint256.Int
	Route  *Route
}

// Empty returns true if the quote carries no executable route, which is the
// quoter's way of signalling "no opportunity".
func (q *Quote) Empty() bool {
	return q.Route.Empty()
}

// Client issues getQuote calls against a configured quoter contract.
// The quoter is fully untrusted; everything it returns is re-validated by
// the consumer.
type Client struct {
	log log.Logger
}

// NewClient creates a quote client.
func NewClient() *Client {
	return &Client{log: log.NewTestLogger(log.InfoLevel)}
}

// EncodeRequest packs a getQuote call for [pool], starting asset selector
// [asset], and input amount [amountIn].
func EncodeRequest(pool common.Address, asset common.Hash, amountIn *uint256.Int) []byte {
	input := make([]byte, 4+32+32+32)
	copy(input[:4], SelectorGetQuote[:])
	copy(input[4+12:36], pool.Bytes())
	copy(input[36:68], asset[:])
	amountIn.WriteToSlice(input[68:100])
	return input
}

// DecodeRequest unpacks a getQuote call body (without selector). Quoter
// implementations use it; the engine only encodes.
func DecodeRequest(args []byte) (pool common.Address, asset common.Hash, amountIn *uint256.Int, err error) {
	if len(args) < 96 {
		return common.Address{}, common.Hash{}, nil, ErrShortBuffer
	}
	pool = common.BytesToAddress(args[12:32])
	copy(asset[:], args[32:64])
	amountIn = new(uint256.Int).SetBytes(args[64:96])
	return pool, asset, amountIn, nil
}

// EncodeResponse packs a quote: profit word followed by the encoded route.
func EncodeResponse(q *Quote) []byte {
	var word [32]byte
	q.Profit.WriteToSlice(word[:])
	return append(word[:], q.Route.Encode()...)
}

// DecodeResponse parses a quoter response. Structural validity of the route
// itself (array lengths, resume index, DEX tags) is checked separately via
// Route.Validate, so a no-opportunity empty route decodes cleanly here.
func DecodeResponse(data []byte) (*Quote, error) {
	if len(data) < 32 {
		return nil, ErrShortBuffer
	}
	route, err := DecodeRoute(data[32:])
	if err != nil {
		return nil, err
	}
	return &Quote{
		Profit: new(uint256.Int).SetBytes(data[:32]),
		Route:  route,
	}, nil
}

// GetQuote performs exactly one getQuote call against [quoterAddr]. A revert
// from the quoter propagates to the caller untouched; there are no retries
// and no error swallowing at this layer.
func (c *Client) GetQuote(
	env contract.AccessibleState,
	quoterAddr common.Address,
	pool common.Address,
	asset common.Hash,
	amountIn *uint256.Int,
	gas uint64,
) (*Quote, uint64, error) {
	ret, remainingGas, err := env.Call(quoterAddr, EncodeRequest(pool, asset, amountIn), gas)
	if err != nil {
		return nil, remainingGas, err
	}
	quote, err := DecodeResponse(ret)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: bad quoter response", err)
	}
	c.log.Debug("quote received",
		"pool", pool,
		"profit", quote.Profit,
		"hops", len(quote.Route.Hops),
	)
	return quote, remainingGas, nil
}
