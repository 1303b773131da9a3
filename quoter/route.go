// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quoter holds the route model shared by the quote client and the
// backrun executor: hops, per-hop DEX metadata, and the hand-packed wire
// codec used both for quoter responses and for callback continuations.
package quoter

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// DexType tags which swap calling convention a pool speaks.
type DexType uint8

const (
	// DexPush is the pair-style family: requested output amounts are
	// pushed to the destination, input is paid up front, and a callback
	// fires when callback data is present.
	DexPush DexType = iota
	// DexDelta is the concentrated-liquidity family: the pool returns
	// signed balance deltas and collects payment inside its callback.
	DexDelta
)

// Per-hop metadata byte layout: bit 7 is the direction flag, the low seven
// bits are DEX-specific payload opaque to the generic decoder.
const (
	directionBit = 0x80
	payloadMask  = 0x7f
)

// Direction decodes the swap direction flag from a metadata byte.
// 0x00-0x7f → false, 0x80-0xff → true, regardless of payload bits.
func Direction(meta byte) bool {
	return meta&directionBit != 0
}

// Payload returns the DEX-specific low seven bits of a metadata byte.
func Payload(meta byte) byte {
	return meta & payloadMask
}

// EncodeMeta packs a direction flag and payload into a metadata byte.
func EncodeMeta(direction bool, payload byte) byte {
	meta := payload & payloadMask
	if direction {
		meta |= directionBit
	}
	return meta
}

// Hop is a single pool interaction within a route.
type Hop struct {
	Pool     common.Address
	Dex      DexType
	Meta     byte
	TokenIn  common.Address
	TokenOut common.Address
}

// Route is an ordered list of hops plus the total input amount and the
// index of the next hop to execute. A route is owned by exactly one
// in-flight execution and is never shared across triggers.
type Route struct {
	AmountIn *uint256.Int
	Index    uint32
	Hops     []Hop
	// Amounts holds the quoted output amount of each hop. The input of
	// hop i>Index is Amounts[i-1].
	Amounts []*uint256.Int
}

// Codec errors
var (
	ErrMalformedRoute = errors.New("malformed route")
	ErrUnknownDexType = errors.New("unknown dex type")
	ErrShortBuffer    = errors.New("buffer too short")
)

const hopWireSize = 20 + 1 + 1 + 20 + 20 // pool, dexType, meta, tokenIn, tokenOut

// Empty returns true if no hops remain to execute.
func (r *Route) Empty() bool {
	return int(r.Index) >= len(r.Hops)
}

// Validate checks the structural invariants an untrusted quoter may break.
// An empty route is valid; a non-empty route must carry one quoted amount
// per hop and a resume index inside (or one past) the hop list.
func (r *Route) Validate() error {
	if int(r.Index) > len(r.Hops) {
		return ErrMalformedRoute
	}
	if r.Empty() {
		return nil
	}
	if len(r.Amounts) != len(r.Hops) {
		return ErrMalformedRoute
	}
	for _, hop := range r.Hops {
		if hop.Dex != DexPush && hop.Dex != DexDelta {
			return ErrUnknownDexType
		}
	}
	return nil
}

// Final returns true if hop [i] is the last of the route.
func (r *Route) Final(i uint32) bool {
	return int(i) == len(r.Hops)-1
}

// InputAmount returns the input amount of hop [i] of a normalized route:
// the route input for the first hop, the previous hop's quoted output
// otherwise.
func (r *Route) InputAmount(i uint32) *uint256.Int {
	if i == 0 {
		return r.AmountIn
	}
	return r.Amounts[i-1]
}

// Normalize drops the hops before the resume index so the executor always
// starts at hop zero. Must be called after Validate.
func (r *Route) Normalize() {
	if r.Index == 0 {
		return
	}
	r.Hops = r.Hops[r.Index:]
	if len(r.Amounts) >= int(r.Index) {
		r.Amounts = r.Amounts[r.Index:]
	}
	r.Index = 0
}

// Encode serializes the route. The same encoding doubles as the callback
// continuation payload, making the continuation self-describing.
//
// Layout: amountIn (32) | index (4) | hopCount (2) | hops (62 each) |
// amountCount (2) | amounts (32 each).
func (r *Route) Encode() []byte {
	out := make([]byte, 0, 32+4+2+len(r.Hops)*hopWireSize+2+len(r.Amounts)*32)

	var word [32]byte
	r.AmountIn.WriteToSlice(word[:])
	out = append(out, word[:]...)

	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], r.Index)
	out = append(out, idx[:]...)

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(r.Hops)))
	out = append(out, count[:]...)
	for _, hop := range r.Hops {
		out = append(out, hop.Pool.Bytes()...)
		out = append(out, byte(hop.Dex), hop.Meta)
		out = append(out, hop.TokenIn.Bytes()...)
		out = append(out, hop.TokenOut.Bytes()...)
	}

	binary.BigEndian.PutUint16(count[:], uint16(len(r.Amounts)))
	out = append(out, count[:]...)
	for _, amount := range r.Amounts {
		amount.WriteToSlice(word[:])
		out = append(out, word[:]...)
	}
	return out
}

// DecodeRoute parses a route previously produced by Encode. Counts are
// checked against the actual byte length before any allocation, so a
// hostile encoder cannot claim arbitrarily large arrays.
func DecodeRoute(data []byte) (*Route, error) {
	if len(data) < 32+4+2 {
		return nil, ErrShortBuffer
	}
	r := &Route{AmountIn: new(uint256.Int).SetBytes(data[:32])}
	r.Index = binary.BigEndian.Uint32(data[32:36])
	off := 36

	hopCount := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+hopCount*hopWireSize {
		return nil, ErrShortBuffer
	}
	r.Hops = make([]Hop, hopCount)
	for i := 0; i < hopCount; i++ {
		hop := &r.Hops[i]
		hop.Pool = common.BytesToAddress(data[off : off+20])
		hop.Dex = DexType(data[off+20])
		hop.Meta = data[off+21]
		hop.TokenIn = common.BytesToAddress(data[off+22 : off+42])
		hop.TokenOut = common.BytesToAddress(data[off+42 : off+62])
		off += hopWireSize
	}

	if len(data) < off+2 {
		return nil, ErrShortBuffer
	}
	amountCount := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+amountCount*32 {
		return nil, ErrShortBuffer
	}
	r.Amounts = make([]*uint256.Int, amountCount)
	for i := 0; i < amountCount; i++ {
		r.Amounts[i] = new(uint256.Int).SetBytes(data[off : off+32])
		off += 32
	}
	return r, nil
}
