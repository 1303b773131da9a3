// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package splitter implements the FeeSplitter precompile (LP-9017): it
// distributes an amount of a token across a configured table of
// (recipient, basis-point weight) pairs. Shares are floor-divided; the
// integer remainder stays with the caller, never with the splitter.
package splitter

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/mev/backrun"
	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/token"
)

// FeeSplitterAddress is the LP-9017 precompile address.
const FeeSplitterAddress = "0x0000000000000000000000000000000000009017"

// FeeSplitterAddr is the parsed precompile address.
var FeeSplitterAddr = common.HexToAddress(FeeSplitterAddress)

// Function selectors (4-byte)
var (
	SelectorSplit         = [4]byte{0x83, 0x40, 0xf5, 0x49} // split(address,uint256)
	SelectorUpdateShares  = [4]byte{0x7d, 0x6a, 0x71, 0xd1} // updateShares(address[],uint256[])
	SelectorGetRecipients = [4]byte{0xea, 0x0c, 0x7a, 0x52} // getRecipients()
	SelectorSetController = [4]byte{0x92, 0xee, 0xde, 0xd9} // setController(address)
	SelectorGetController = [4]byte{0xb7, 0xab, 0x4d, 0xb5} // getController()
	SelectorGetAdmin      = [4]byte{0x6e, 0x9d, 0xf3, 0xd2} // getAdmin()
)

// Gas costs
const (
	GasSplitBase    uint64 = 10_000 // Base cost of a split call
	GasPerRecipient uint64 = 900    // Per-recipient transfer during split
	GasTableWrite   uint64 = 20_000 // Replacing the share table
	GasAdminWrite   uint64 = 5_000  // Writing admin-gated state
	GasAdminRead    uint64 = 200    // View functions
)

// BasisPoints is the share denominator: 10000 = 100%.
const BasisPoints uint64 = 10_000

// MaxRecipients bounds the share table size.
const MaxRecipients = 10

// Errors
var (
	ErrUnauthorized       = errors.New("unauthorized: caller is not admin")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAddress     = errors.New("invalid address: cannot be zero")
	ErrInsufficientGas    = errors.New("insufficient gas")
	ErrReadOnly           = errors.New("cannot write in read-only mode")
	ErrUnknownSelector    = errors.New("unknown method selector")
	ErrLengthMismatch     = errors.New("recipients and weights length mismatch")
	ErrBadRecipientCount  = errors.New("recipient count must be between 1 and 10")
	ErrZeroRecipient      = errors.New("zero-address recipient")
	ErrZeroWeight         = errors.New("zero weight")
	ErrDuplicateRecipient = errors.New("duplicate recipient")
	ErrBadWeightSum       = errors.New("weights must sum to exactly 10000 BPS")
	ErrTableEmpty         = errors.New("share table not configured")
)

// Storage slot keys
var (
	AdminSlot      = makeSlot("splitter.admin")
	ControllerSlot = makeSlot("splitter.controller")
	CountSlot      = makeSlot("splitter.count")
)

func makeSlot(name string) common.Hash {
	h := blake3.New()
	h.Write([]byte(name))
	var slot common.Hash
	h.Digest().Read(slot[:])
	return slot
}

// recipientSlot and weightSlot derive the per-index table slots.
func recipientSlot(i uint32) common.Hash { return indexedSlot("splitter.recipient", i) }
func weightSlot(i uint32) common.Hash    { return indexedSlot("splitter.weight", i) }

func indexedSlot(prefix string, i uint32) common.Hash {
	h := blake3.New()
	h.Write([]byte(prefix))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], i)
	h.Write(idx[:])
	var slot common.Hash
	h.Digest().Read(slot[:])
	return slot
}

// Event topics
var (
	TopicSharesUpdated = eventTopic("SharesUpdated(address[],uint256[])")
	TopicSplitExecuted = eventTopic("SplitExecuted(address,uint256,uint256[])")
)

func eventTopic(sig string) common.Hash {
	h := blake3.New()
	h.Write([]byte(sig))
	var topic common.Hash
	h.Digest().Read(topic[:])
	return topic
}

// ShareTable is the decoded recipient/weight table, insertion ordered.
type ShareTable struct {
	Recipients []common.Address
	WeightsBps []uint64
}

// Validate checks the table invariants in a fixed order: lengths, count,
// zero address, zero weight, duplicate, sum.
func (t *ShareTable) Validate() error {
	if len(t.Recipients) != len(t.WeightsBps) {
		return ErrLengthMismatch
	}
	if len(t.Recipients) < 1 || len(t.Recipients) > MaxRecipients {
		return ErrBadRecipientCount
	}
	for _, r := range t.Recipients {
		if r == (common.Address{}) {
			return ErrZeroRecipient
		}
	}
	for _, w := range t.WeightsBps {
		if w == 0 {
			return ErrZeroWeight
		}
	}
	seen := make(map[common.Address]struct{}, len(t.Recipients))
	for _, r := range t.Recipients {
		if _, dup := seen[r]; dup {
			return ErrDuplicateRecipient
		}
		seen[r] = struct{}{}
	}
	var sum uint64
	for _, w := range t.WeightsBps {
		sum += w
	}
	if sum != BasisPoints {
		return ErrBadWeightSum
	}
	return nil
}

// CalculateShare computes floor(amount * weightBps / 10000).
func CalculateShare(amount *uint256.Int, weightBps uint64) *uint256.Int {
	if amount.IsZero() {
		return uint256.NewInt(0)
	}
	share := new(uint256.Int).Mul(amount, uint256.NewInt(weightBps))
	return share.Div(share, uint256.NewInt(BasisPoints))
}

// FeeSplitterPrecompile is the singleton instance.
var FeeSplitterPrecompile = &feeSplitter{
	log: log.NewTestLogger(log.InfoLevel),
}

type feeSplitter struct {
	log log.Logger
}

var _ contract.StatefulPrecompiledContract = (*feeSplitter)(nil)

// Run executes the fee splitter precompile.
func (s *feeSplitter) Run(
	accessibleState contract.AccessibleState,
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

	stateDB := accessibleState.GetStateDB()
	switch selector {
	case SelectorSplit:
		return s.split(stateDB, caller, args, suppliedGas, readOnly)
	case SelectorUpdateShares:
		return s.updateShares(accessibleState, caller, args, suppliedGas, readOnly)
	case SelectorGetRecipients:
		return s.getRecipients(stateDB, suppliedGas)
	case SelectorSetController:
		return s.setController(accessibleState, caller, args, suppliedGas, readOnly)
	case SelectorGetController:
		return s.getController(stateDB, suppliedGas)
	case SelectorGetAdmin:
		return s.getAdmin(accessibleState, suppliedGas, readOnly)
	default:
		return nil, suppliedGas, ErrUnknownSelector
	}
}

// =========================================================================
// split(address token, uint256 amount)
//
// Shares are debited from the caller, who authorizes the movement by
// making the call; the splitter itself holds no funds. The floor-division
// remainder is whatever the caller keeps.
// =========================================================================

func (s *feeSplitter) split(
	stateDB contract.StateDB,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if suppliedGas < GasSplitBase {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasSplitBase
	if readOnly {
		return nil, remainingGas, ErrReadOnly
	}
	if len(args) < 64 {
		return nil, remainingGas, ErrInvalidInput
	}

	tok := common.BytesToAddress(args[12:32])
	amount := new(uint256.Int).SetBytes(args[32:64])

	table := s.loadTable(stateDB)
	if len(table.Recipients) == 0 {
		return nil, remainingGas, ErrTableEmpty
	}

	perRecipient := GasPerRecipient * uint64(len(table.Recipients))
	if remainingGas < perRecipient {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas -= perRecipient

	paid := uint256.NewInt(0)
	shares := make([]*uint256.Int, len(table.Recipients))
	for i, recipient := range table.Recipients {
		share := CalculateShare(amount, table.WeightsBps[i])
		shares[i] = share
		if share.IsZero() {
			continue
		}
		if err := token.Transfer(stateDB, tok, caller, recipient, share); err != nil {
			return nil, remainingGas, err
		}
		paid.Add(paid, share)
	}

	s.emitSplitExecuted(stateDB, tok, amount, shares)
	s.log.Debug("split executed", "token", tok, "amount", amount, "paid", paid)

	result := make([]byte, 32)
	paid.WriteToSlice(result)
	return result, remainingGas, nil
}

// =========================================================================
// updateShares(address[] recipients, uint256[] weightsBps)
//
// Wire layout: recipientCount (32) | weightCount (32) | recipients
// (32 each, left padded) | weights (32 each). Atomic full replace: the old
// table is cleared before the new one is written, and any validation
// failure rejects the whole update.
// =========================================================================

func (s *feeSplitter) updateShares(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if suppliedGas < GasTableWrite {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasTableWrite
	if readOnly {
		return nil, remainingGas, ErrReadOnly
	}
	stateDB := env.GetStateDB()
	if caller != s.adminOf(env, readOnly) {
		return nil, remainingGas, ErrUnauthorized
	}

	table, err := decodeTable(args)
	if err != nil {
		return nil, remainingGas, err
	}
	if err := table.Validate(); err != nil {
		return nil, remainingGas, err
	}

	s.clearTable(stateDB)
	s.storeTable(stateDB, table)
	s.emitSharesUpdated(stateDB, table)
	s.log.Info("share table replaced", "recipients", len(table.Recipients))

	return nil, remainingGas, nil
}

func decodeTable(args []byte) (*ShareTable, error) {
	if len(args) < 64 {
		return nil, ErrInvalidInput
	}
	nRecipients := binary.BigEndian.Uint64(args[24:32])
	nWeights := binary.BigEndian.Uint64(args[56:64])
	if nRecipients != nWeights {
		return nil, ErrLengthMismatch
	}
	if nRecipients > MaxRecipients {
		return nil, ErrBadRecipientCount
	}
	n := int(nRecipients)
	if len(args) < 64+n*64 {
		return nil, ErrInvalidInput
	}

	table := &ShareTable{
		Recipients: make([]common.Address, n),
		WeightsBps: make([]uint64, n),
	}
	off := 64
	for i := 0; i < n; i++ {
		table.Recipients[i] = common.BytesToAddress(args[off+12 : off+32])
		off += 32
	}
	for i := 0; i < n; i++ {
		table.WeightsBps[i] = binary.BigEndian.Uint64(args[off+24 : off+32])
		off += 32
	}
	return table, nil
}

// =========================================================================
// Views
// =========================================================================

func (s *feeSplitter) getRecipients(stateDB contract.StateDB, suppliedGas uint64) ([]byte, uint64, error) {
	if suppliedGas < GasAdminRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasAdminRead

	table := s.loadTable(stateDB)
	result := make([]byte, 32+len(table.Recipients)*64)
	binary.BigEndian.PutUint64(result[24:32], uint64(len(table.Recipients)))
	off := 32
	for _, r := range table.Recipients {
		copy(result[off+12:off+32], r.Bytes())
		off += 32
	}
	for _, w := range table.WeightsBps {
		binary.BigEndian.PutUint64(result[off+24:off+32], w)
		off += 32
	}
	return result, remainingGas, nil
}

func (s *feeSplitter) getController(stateDB contract.StateDB, suppliedGas uint64) ([]byte, uint64, error) {
	if suppliedGas < GasAdminRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasAdminRead

	controller := s.controllerOf(stateDB)
	result := make([]byte, 32)
	copy(result[12:], controller.Bytes())
	return result, remainingGas, nil
}

func (s *feeSplitter) getAdmin(env contract.AccessibleState, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if suppliedGas < GasAdminRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasAdminRead

	admin := s.adminOf(env, readOnly)
	result := make([]byte, 32)
	copy(result[12:], admin.Bytes())
	return result, remainingGas, nil
}

// =========================================================================
// Controller link
// =========================================================================

// setController re-binds the splitter to a controller and re-synchronizes
// the admin mirror from the controller's own admin slot.
func (s *feeSplitter) setController(
	env contract.AccessibleState,
	caller common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if suppliedGas < GasAdminWrite {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasAdminWrite
	if readOnly {
		return nil, remainingGas, ErrReadOnly
	}
	stateDB := env.GetStateDB()
	if caller != s.adminOf(env, readOnly) {
		return nil, remainingGas, ErrUnauthorized
	}
	if len(args) < 32 {
		return nil, remainingGas, ErrInvalidInput
	}
	controller := common.BytesToAddress(args[12:32])
	if controller == (common.Address{}) {
		return nil, remainingGas, ErrInvalidAddress
	}

	setStateAddress(stateDB, ControllerSlot, controller)
	admin := common.BytesToAddress(stateDB.GetState(controller, backrun.AdminSlot).Bytes())
	setStateAddress(stateDB, AdminSlot, admin)
	s.log.Info("controller re-linked", "controller", controller, "admin", admin)

	return nil, remainingGas, nil
}

// =========================================================================
// Internal helpers
// =========================================================================

// adminOf returns the mirrored admin, binding the mirror on the first
// state-mutating touch: to the linked controller's admin when the controller
// has one, else to the transaction originator. After binding, the mirror is
// authoritative until the next setController re-sync.
func (s *feeSplitter) adminOf(env contract.AccessibleState, readOnly bool) common.Address {
	stateDB := env.GetStateDB()
	admin := common.BytesToAddress(stateDB.GetState(FeeSplitterAddr, AdminSlot).Bytes())
	if admin != (common.Address{}) {
		return admin
	}
	controller := s.controllerOf(stateDB)
	admin = common.BytesToAddress(stateDB.GetState(controller, backrun.AdminSlot).Bytes())
	if admin == (common.Address{}) {
		admin = env.GetTxOrigin()
	}
	if !readOnly {
		setStateAddress(stateDB, AdminSlot, admin)
		s.log.Info("splitter admin bound", "admin", admin)
	}
	return admin
}

func (s *feeSplitter) controllerOf(stateDB contract.StateDB) common.Address {
	controller := common.BytesToAddress(stateDB.GetState(FeeSplitterAddr, ControllerSlot).Bytes())
	if controller == (common.Address{}) {
		return backrun.BackRunnerAddr
	}
	return controller
}

func (s *feeSplitter) loadTable(stateDB contract.StateDB) *ShareTable {
	count := binary.BigEndian.Uint64(stateDB.GetState(FeeSplitterAddr, CountSlot).Bytes()[24:])
	if count > MaxRecipients {
		count = MaxRecipients
	}
	table := &ShareTable{
		Recipients: make([]common.Address, 0, count),
		WeightsBps: make([]uint64, 0, count),
	}
	for i := uint32(0); i < uint32(count); i++ {
		r := common.BytesToAddress(stateDB.GetState(FeeSplitterAddr, recipientSlot(i)).Bytes())
		w := binary.BigEndian.Uint64(stateDB.GetState(FeeSplitterAddr, weightSlot(i)).Bytes()[24:])
		table.Recipients = append(table.Recipients, r)
		table.WeightsBps = append(table.WeightsBps, w)
	}
	return table
}

func (s *feeSplitter) clearTable(stateDB contract.StateDB) {
	count := binary.BigEndian.Uint64(stateDB.GetState(FeeSplitterAddr, CountSlot).Bytes()[24:])
	for i := uint32(0); i < uint32(count); i++ {
		stateDB.SetState(FeeSplitterAddr, recipientSlot(i), common.Hash{})
		stateDB.SetState(FeeSplitterAddr, weightSlot(i), common.Hash{})
	}
	stateDB.SetState(FeeSplitterAddr, CountSlot, common.Hash{})
}

func (s *feeSplitter) storeTable(stateDB contract.StateDB, table *ShareTable) {
	var count common.Hash
	binary.BigEndian.PutUint64(count[24:], uint64(len(table.Recipients)))
	stateDB.SetState(FeeSplitterAddr, CountSlot, count)
	for i, r := range table.Recipients {
		setStateAddress(stateDB, recipientSlot(uint32(i)), r)
		var w common.Hash
		binary.BigEndian.PutUint64(w[24:], table.WeightsBps[i])
		stateDB.SetState(FeeSplitterAddr, weightSlot(uint32(i)), w)
	}
}

func setStateAddress(stateDB contract.StateDB, slot common.Hash, addr common.Address) {
	var val common.Hash
	copy(val[12:], addr.Bytes())
	stateDB.SetState(FeeSplitterAddr, slot, val)
}

func (s *feeSplitter) emitSharesUpdated(stateDB contract.StateDB, table *ShareTable) {
	data := make([]byte, 32+len(table.Recipients)*64)
	binary.BigEndian.PutUint64(data[24:32], uint64(len(table.Recipients)))
	off := 32
	for _, r := range table.Recipients {
		copy(data[off+12:off+32], r.Bytes())
		off += 32
	}
	for _, w := range table.WeightsBps {
		binary.BigEndian.PutUint64(data[off+24:off+32], w)
		off += 32
	}
	stateDB.AddLog(&types.Log{
		Address: FeeSplitterAddr,
		Topics:  []common.Hash{TopicSharesUpdated},
		Data:    data,
	})
}

func (s *feeSplitter) emitSplitExecuted(stateDB contract.StateDB, tok common.Address, amount *uint256.Int, shares []*uint256.Int) {
	data := make([]byte, 64+len(shares)*32)
	copy(data[12:32], tok.Bytes())
	amount.WriteToSlice(data[32:64])
	off := 64
	for _, share := range shares {
		share.WriteToSlice(data[off : off+32])
		off += 32
	}
	stateDB.AddLog(&types.Log{
		Address: FeeSplitterAddr,
		Topics:  []common.Hash{TopicSplitExecuted},
		Data:    data,
	})
}
