// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
)

// MemStateDB is an in-memory StateDB with full snapshot/revert support.
// It backs the call environment: every contract call is wrapped in a
// snapshot, so a failing hop mid-route leaves no partial effects behind.
type MemStateDB struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool
	logs     []*types.Log

	snapshots []memSnapshot
}

type memSnapshot struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool
	logCount int
}

// NewMemStateDB creates an empty in-memory state.
func NewMemStateDB() *MemStateDB {
	return &MemStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]bool),
		logs:     make([]*types.Log, 0),
	}
}

func (s *MemStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if s.storage[addr] == nil {
		return common.Hash{}
	}
	return s.storage[addr][key]
}

func (s *MemStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	if s.storage[addr] == nil {
		s.storage[addr] = make(map[common.Hash]common.Hash)
	}
	s.storage[addr][key] = value
}

func (s *MemStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (s *MemStateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	if s.balances[addr] == nil {
		s.balances[addr] = uint256.NewInt(0)
	}
	s.balances[addr] = new(uint256.Int).Add(s.balances[addr], amount)
}

func (s *MemStateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	if s.balances[addr] == nil {
		s.balances[addr] = uint256.NewInt(0)
	}
	s.balances[addr] = new(uint256.Int).Sub(s.balances[addr], amount)
}

func (s *MemStateDB) Exist(addr common.Address) bool {
	return s.accounts[addr]
}

func (s *MemStateDB) CreateAccount(addr common.Address) {
	s.accounts[addr] = true
}

func (s *MemStateDB) AddLog(log *types.Log) {
	s.logs = append(s.logs, log)
}

// Logs returns every log emitted so far, excluding reverted ones.
func (s *MemStateDB) Logs() []*types.Log {
	return s.logs
}

// Snapshot records the current state and returns an identifier that can be
// passed to RevertToSnapshot. Snapshots nest.
func (s *MemStateDB) Snapshot() int {
	s.snapshots = append(s.snapshots, memSnapshot{
		storage:  copyStorage(s.storage),
		balances: copyBalances(s.balances),
		accounts: copyAccounts(s.accounts),
		logCount: len(s.logs),
	})
	return len(s.snapshots) - 1
}

// RevertToSnapshot restores the state captured by Snapshot. Any snapshot
// taken after [id] is discarded.
func (s *MemStateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		return
	}
	snap := s.snapshots[id]
	s.storage = snap.storage
	s.balances = snap.balances
	s.accounts = snap.accounts
	s.logs = s.logs[:snap.logCount]
	s.snapshots = s.snapshots[:id]
}

// DiscardSnapshot drops the snapshot record without reverting, committing
// the changes made since it was taken.
func (s *MemStateDB) DiscardSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		return
	}
	s.snapshots = s.snapshots[:id]
}

func copyStorage(src map[common.Address]map[common.Hash]common.Hash) map[common.Address]map[common.Hash]common.Hash {
	dst := make(map[common.Address]map[common.Hash]common.Hash, len(src))
	for addr, slots := range src {
		inner := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		dst[addr] = inner
	}
	return dst
}

func copyBalances(src map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	dst := make(map[common.Address]*uint256.Int, len(src))
	for addr, bal := range src {
		dst[addr] = bal.Clone()
	}
	return dst
}

func copyAccounts(src map[common.Address]bool) map[common.Address]bool {
	dst := make(map[common.Address]bool, len(src))
	for addr, ok := range src {
		dst[addr] = ok
	}
	return dst
}
