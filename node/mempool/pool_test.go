// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

type validatorFunc func(tx *wire.MsgTx) (uint64, error)

func (f validatorFunc) ValidateTransaction(tx *wire.MsgTx) (uint64, error) { return f(tx) }

func spend(image byte, amount uint64) *wire.MsgTx {
	var ki wire.KeyImage
	ki[0] = image
	return &wire.MsgTx{
		Version: 1,
		TxIn: []wire.TxIn{&wire.TxInToKey{
			Amount: amount, KeyOffsets: []uint32{1}, KeyImage: ki,
		}},
		TxOut:      []wire.TxOut{{Amount: amount - 10, Target: &wire.TxOutToKey{}}},
		Extra:      []byte{},
		Signatures: [][]wire.Signature{{{}}},
	}
}

func TestAddTakeHave(t *testing.T) {
	now := time.Unix(1000, 0)
	mp := New(&Config{Now: func() time.Time { return now }})

	tx := spend(1, 100)
	var ctx chaindata.TxVerificationContext
	require.True(t, mp.AddTx(tx, 0, &ctx))
	assert.True(t, ctx.AddedToPool)
	assert.True(t, ctx.ShouldBeRelayed)
	assert.True(t, mp.HaveTx(tx.TxHash()))
	assert.Equal(t, 1, mp.Count())

	// Same transaction again is a no-op.
	ctx = chaindata.TxVerificationContext{}
	require.True(t, mp.AddTx(tx, 0, &ctx))
	assert.False(t, ctx.AddedToPool)

	// Another transaction spending the same key image is refused.
	ctx = chaindata.TxVerificationContext{}
	require.False(t, mp.AddTx(spend(1, 200), 0, &ctx))
	assert.True(t, ctx.Failed)
	assert.True(t, chaindata.IsRuleError(ctx.Err, chaindata.ErrDoubleSpend))

	desc, ok := mp.TakeTx(tx.TxHash())
	require.True(t, ok)
	assert.EqualValues(t, 10, desc.Fee)
	assert.False(t, mp.HaveTx(tx.TxHash()))
	var ki wire.KeyImage
	ki[0] = 1
	assert.False(t, mp.HaveKeyImage(ki))

	_, ok = mp.TakeTx(tx.TxHash())
	assert.False(t, ok)
}

func TestValidatorAndBlockPriority(t *testing.T) {
	reject := errors.New("ring member unknown")
	mp := New(&Config{})
	mp.SetValidator(validatorFunc(func(tx *wire.MsgTx) (uint64, error) {
		return 0, reject
	}))

	var ctx chaindata.TxVerificationContext
	assert.False(t, mp.AddTx(spend(2, 50), 0, &ctx))
	assert.Equal(t, reject, ctx.Err)

	mp.SetValidator(nil)
	loose := spend(3, 50)
	require.True(t, mp.AddTx(loose, 0, &chaindata.TxVerificationContext{}))

	// A block transaction spending the same image evicts the loose one.
	fromBlock := spend(3, 70)
	ctx = chaindata.TxVerificationContext{}
	require.True(t, mp.AddTx(fromBlock, KeptByBlock, &ctx))
	assert.False(t, ctx.ShouldBeRelayed)
	assert.False(t, mp.HaveTx(loose.TxHash()))
	assert.True(t, mp.HaveTx(fromBlock.TxHash()))
}

func TestRejectsMinerTx(t *testing.T) {
	mp := New(&Config{})
	miner := &wire.MsgTx{Version: 1, TxIn: []wire.TxIn{&wire.TxInGen{Height: 1}}}
	var ctx chaindata.TxVerificationContext
	assert.False(t, mp.AddTx(miner, 0, &ctx))
	assert.True(t, chaindata.IsRuleError(ctx.Err, chaindata.ErrBadTx))
}

func TestRemoveExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	mp := New(&Config{Now: func() time.Time { return now }})
	old := spend(4, 20)
	require.True(t, mp.AddTx(old, 0, &chaindata.TxVerificationContext{}))

	now = now.Add(time.Hour)
	fresh := spend(5, 20)
	require.True(t, mp.AddTx(fresh, 0, &chaindata.TxVerificationContext{}))

	assert.Equal(t, 1, mp.RemoveExpired(30*time.Minute))
	assert.False(t, mp.HaveTx(old.TxHash()))
	assert.True(t, mp.HaveTx(fresh.TxHash()))
	assert.Len(t, mp.Transactions(), 1)
}
