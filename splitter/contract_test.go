// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package splitter

import (
	"encoding/binary"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/mev/backrun"
	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/token"
)

var (
	tokX = common.HexToAddress("0x00000000000000000000000000000000000000f1")

	admin = common.HexToAddress("0x1000000000000000000000000000000000000001")
	payer = common.HexToAddress("0x2000000000000000000000000000000000000002")
	recvA = common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	recvB = common.HexToAddress("0x000000000000000000000000000000000000aab2")
	recvC = common.HexToAddress("0x000000000000000000000000000000000000aac3")
	recvD = common.HexToAddress("0x000000000000000000000000000000000000aad4")
)

type splitFixture struct {
	env   *contract.Env
	state *contract.MemStateDB
}

// newSplitFixture registers the splitter and binds the linked controller's
// admin so admin gating is active from the start.
func newSplitFixture(t *testing.T) *splitFixture {
	t.Helper()
	state := contract.NewMemStateDB()
	env := contract.NewEnv(state)
	env.Register(FeeSplitterAddr, FeeSplitterPrecompile)
	state.SetState(backrun.BackRunnerAddr, backrun.AdminSlot, common.BytesToHash(admin.Bytes()))
	return &splitFixture{env: env, state: state}
}

func encodeUpdateShares(recipients []common.Address, weights []uint64) []byte {
	input := append([]byte{}, SelectorUpdateShares[:]...)
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], uint64(len(recipients)))
	input = append(input, word[:]...)
	word = [32]byte{}
	binary.BigEndian.PutUint64(word[24:], uint64(len(weights)))
	input = append(input, word[:]...)
	for _, r := range recipients {
		input = append(input, common.LeftPadBytes(r.Bytes(), 32)...)
	}
	for _, w := range weights {
		word = [32]byte{}
		binary.BigEndian.PutUint64(word[24:], w)
		input = append(input, word[:]...)
	}
	return input
}

func encodeSplit(tok common.Address, amount *uint256.Int) []byte {
	input := append([]byte{}, SelectorSplit[:]...)
	input = append(input, common.LeftPadBytes(tok.Bytes(), 32)...)
	var word [32]byte
	amount.WriteToSlice(word[:])
	return append(input, word[:]...)
}

func (f *splitFixture) updateShares(t *testing.T, caller common.Address, recipients []common.Address, weights []uint64) error {
	t.Helper()
	_, _, err := f.env.Execute(caller, FeeSplitterAddr, encodeUpdateShares(recipients, weights), 1_000_000)
	return err
}

func TestUpdateSharesAndGetRecipients(t *testing.T) {
	f := newSplitFixture(t)
	recipients := []common.Address{recvA, recvB, recvC, recvD}
	weights := []uint64{2500, 2500, 2500, 2500}

	require.NoError(t, f.updateShares(t, admin, recipients, weights))

	ret, _, err := f.env.Execute(admin, FeeSplitterAddr, SelectorGetRecipients[:], 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(4), binary.BigEndian.Uint64(ret[24:32]))
	for i, r := range recipients {
		off := 32 + i*32
		require.Equal(t, r, common.BytesToAddress(ret[off+12:off+32]), "insertion order must be preserved")
	}
	for i, w := range weights {
		off := 32 + len(recipients)*32 + i*32
		require.Equal(t, w, binary.BigEndian.Uint64(ret[off+24:off+32]))
	}

	logs := f.state.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, TopicSharesUpdated, logs[0].Topics[0])
}

func TestUpdateSharesValidationOrder(t *testing.T) {
	eleven := make([]common.Address, 11)
	elevenW := make([]uint64, 11)
	for i := range eleven {
		eleven[i] = common.BytesToAddress([]byte{byte(i + 1)})
		elevenW[i] = 909
	}

	tests := []struct {
		name       string
		recipients []common.Address
		weights    []uint64
		wantErr    error
	}{
		{"length mismatch", []common.Address{recvA, recvB}, []uint64{10000}, ErrLengthMismatch},
		{"zero recipients", nil, nil, ErrBadRecipientCount},
		{"eleven recipients", eleven, elevenW, ErrBadRecipientCount},
		{"zero address", []common.Address{recvA, {}}, []uint64{5000, 5000}, ErrZeroRecipient},
		{"zero weight", []common.Address{recvA, recvB}, []uint64{10000, 0}, ErrZeroWeight},
		{"duplicate", []common.Address{recvA, recvA}, []uint64{5000, 5000}, ErrDuplicateRecipient},
		{"sum below", []common.Address{recvA, recvB}, []uint64{5000, 4999}, ErrBadWeightSum},
		{"sum above", []common.Address{recvA, recvB}, []uint64{5000, 5001}, ErrBadWeightSum},
		// When several rules are broken at once, the earlier check wins.
		{"zero address before bad sum", []common.Address{recvA, {}}, []uint64{1, 1}, ErrZeroRecipient},
		{"zero weight before duplicate", []common.Address{recvA, recvA}, []uint64{0, 10000}, ErrZeroWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSplitFixture(t)
			require.NoError(t, f.updateShares(t, admin, []common.Address{recvA}, []uint64{10000}))

			err := f.updateShares(t, admin, tt.recipients, tt.weights)
			require.ErrorIs(t, err, tt.wantErr)

			// The previous table must survive the rejected update intact.
			ret, _, err := f.env.Execute(admin, FeeSplitterAddr, SelectorGetRecipients[:], 1_000_000)
			require.NoError(t, err)
			require.Equal(t, uint64(1), binary.BigEndian.Uint64(ret[24:32]))
			require.Equal(t, recvA, common.BytesToAddress(ret[44:64]))
		})
	}
}

func TestUpdateSharesUnauthorized(t *testing.T) {
	f := newSplitFixture(t)

	err := f.updateShares(t, payer, []common.Address{recvA}, []uint64{10000})
	require.ErrorIs(t, err, ErrUnauthorized)

	// The rejected call reverts, so the stranger never reaches the mirror.
	mirror := common.BytesToAddress(f.state.GetState(FeeSplitterAddr, AdminSlot).Bytes())
	require.Equal(t, common.Address{}, mirror)
	require.NoError(t, f.updateShares(t, admin, []common.Address{recvA}, []uint64{10000}))
}

func TestAdminBindsOnFirstTouchWithoutController(t *testing.T) {
	state := contract.NewMemStateDB()
	env := contract.NewEnv(state)
	env.Register(FeeSplitterAddr, FeeSplitterPrecompile)

	// No controller admin is bound anywhere: the first admin-gated call
	// binds the mirror to its transaction originator.
	_, _, err := env.Execute(payer, FeeSplitterAddr, encodeUpdateShares([]common.Address{recvA}, []uint64{10000}), 1_000_000)
	require.NoError(t, err)
	mirror := common.BytesToAddress(state.GetState(FeeSplitterAddr, AdminSlot).Bytes())
	require.Equal(t, payer, mirror)

	// Every other caller is shut out from then on.
	_, _, err = env.Execute(admin, FeeSplitterAddr, encodeUpdateShares([]common.Address{recvB}, []uint64{10000}), 1_000_000)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSplitFourWayWithDust(t *testing.T) {
	f := newSplitFixture(t)
	require.NoError(t, f.updateShares(t, admin, []common.Address{recvA, recvB, recvC, recvD}, []uint64{2500, 2500, 2500, 2500}))
	token.Mint(f.state, tokX, payer, uint256.NewInt(999))

	ret, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(999)), 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(996), new(uint256.Int).SetBytes(ret[:32]), "total paid is the sum of floored shares")

	for _, r := range []common.Address{recvA, recvB, recvC, recvD} {
		require.Equal(t, uint256.NewInt(249), token.BalanceOf(f.state, tokX, r))
	}
	require.Equal(t, uint256.NewInt(3), token.BalanceOf(f.state, tokX, payer), "dust stays with the caller")
}

func TestSplitCallerInShareTable(t *testing.T) {
	f := newSplitFixture(t)
	require.NoError(t, f.updateShares(t, admin, []common.Address{payer, recvB}, []uint64{6000, 4000}))
	token.Mint(f.state, tokX, payer, uint256.NewInt(1000))

	// The caller's own share is a self-transfer and must survive intact.
	_, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(1000)), 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(600), token.BalanceOf(f.state, tokX, payer))
	require.Equal(t, uint256.NewInt(400), token.BalanceOf(f.state, tokX, recvB))
}

func TestSplitSingleRecipientExact(t *testing.T) {
	f := newSplitFixture(t)
	require.NoError(t, f.updateShares(t, admin, []common.Address{recvA}, []uint64{10000}))
	token.Mint(f.state, tokX, payer, uint256.NewInt(1_000_000))

	_, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(1_000_000)), 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_000_000), token.BalanceOf(f.state, tokX, recvA))
	require.True(t, token.BalanceOf(f.state, tokX, payer).IsZero(), "weight 10000 leaves zero dust")
}

func TestSplitMinimumWeight(t *testing.T) {
	f := newSplitFixture(t)
	require.NoError(t, f.updateShares(t, admin, []common.Address{recvA, recvB}, []uint64{1, 9999}))
	token.Mint(f.state, tokX, payer, uint256.NewInt(10_000))

	_, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(10_000)), 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1), token.BalanceOf(f.state, tokX, recvA), "weight 1 pays out once amount*1/10000 >= 1")
	require.Equal(t, uint256.NewInt(9999), token.BalanceOf(f.state, tokX, recvB))
}

func TestSplitEmptyTable(t *testing.T) {
	f := newSplitFixture(t)
	token.Mint(f.state, tokX, payer, uint256.NewInt(100))

	_, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(100)), 1_000_000)
	require.ErrorIs(t, err, ErrTableEmpty)
}

func TestSplitInsufficientCallerFunds(t *testing.T) {
	f := newSplitFixture(t)
	require.NoError(t, f.updateShares(t, admin, []common.Address{recvA}, []uint64{10000}))
	token.Mint(f.state, tokX, payer, uint256.NewInt(10))

	_, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(100)), 1_000_000)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.Equal(t, uint256.NewInt(10), token.BalanceOf(f.state, tokX, payer))
	require.True(t, token.BalanceOf(f.state, tokX, recvA).IsZero())
}

func TestSplitEmitsEvent(t *testing.T) {
	f := newSplitFixture(t)
	require.NoError(t, f.updateShares(t, admin, []common.Address{recvA, recvB}, []uint64{6000, 4000}))
	token.Mint(f.state, tokX, payer, uint256.NewInt(1000))

	_, _, err := f.env.Execute(payer, FeeSplitterAddr, encodeSplit(tokX, uint256.NewInt(1000)), 1_000_000)
	require.NoError(t, err)

	logs := f.state.Logs()
	require.Len(t, logs, 2) // SharesUpdated, then SplitExecuted
	split := logs[1]
	require.Equal(t, TopicSplitExecuted, split.Topics[0])
	require.Equal(t, tokX, common.BytesToAddress(split.Data[12:32]))
	require.Equal(t, uint256.NewInt(1000), new(uint256.Int).SetBytes(split.Data[32:64]))
	require.Equal(t, uint256.NewInt(600), new(uint256.Int).SetBytes(split.Data[64:96]))
	require.Equal(t, uint256.NewInt(400), new(uint256.Int).SetBytes(split.Data[96:128]))
}

func TestSetControllerResyncsAdmin(t *testing.T) {
	f := newSplitFixture(t)
	otherController := common.HexToAddress("0x0000000000000000000000000000000000009116")
	otherAdmin := common.HexToAddress("0x4000000000000000000000000000000000000004")
	f.state.SetState(otherController, backrun.AdminSlot, common.BytesToHash(otherAdmin.Bytes()))

	input := append(append([]byte{}, SelectorSetController[:]...), common.LeftPadBytes(otherController.Bytes(), 32)...)
	_, _, err := f.env.Execute(admin, FeeSplitterAddr, input, 1_000_000)
	require.NoError(t, err)

	ret, _, err := f.env.Execute(admin, FeeSplitterAddr, SelectorGetAdmin[:], 1_000_000)
	require.NoError(t, err)
	require.Equal(t, otherAdmin, common.BytesToAddress(ret[12:32]), "admin mirror follows the new controller")

	ret, _, err = f.env.Execute(admin, FeeSplitterAddr, SelectorGetController[:], 1_000_000)
	require.NoError(t, err)
	require.Equal(t, otherController, common.BytesToAddress(ret[12:32]))

	// The old admin lost control along with the link.
	err = f.updateShares(t, admin, []common.Address{recvA}, []uint64{10000})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, f.updateShares(t, otherAdmin, []common.Address{recvA}, []uint64{10000}))
}

func TestCalculateShare(t *testing.T) {
	tests := []struct {
		amount uint64
		bps    uint64
		want   uint64
	}{
		{999, 2500, 249},
		{1_000_000, 10000, 1_000_000},
		{10_000, 1, 1},
		{9_999, 1, 0},
		{0, 10000, 0},
	}
	for _, tt := range tests {
		got := CalculateShare(uint256.NewInt(tt.amount), tt.bps)
		require.Equal(t, uint256.NewInt(tt.want), got, "share of %d at %d bps", tt.amount, tt.bps)
	}
}
