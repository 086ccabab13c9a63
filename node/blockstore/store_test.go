// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

func testEntry(height uint32, extra int) *chaindata.BlockEntry {
	miner := wire.MsgTx{
		Version:    1,
		UnlockTime: uint64(height) + 10,
		TxIn:       []wire.TxIn{&wire.TxInGen{Height: height}},
		TxOut:      []wire.TxOut{{Amount: uint64(height) * 7, Target: &wire.TxOutToKey{}}},
		Extra:      make([]byte, extra),
	}
	return &chaindata.BlockEntry{
		Block: wire.MsgBlock{
			Header:  wire.BlockHeader{MajorVersion: 1, Timestamp: uint64(height) * 120},
			MinerTx: miner,
		},
		Height:                height,
		BlockCumulativeSize:   uint64(100 + extra),
		CumulativeDifficulty:  uint64(height + 1),
		AlreadyGeneratedCoins: uint64(height) * 1000,
		Transactions: []chaindata.TransactionEntry{
			{Tx: miner, GlobalOutputIndexes: []uint32{height}},
		},
	}
}

// assertSameEntry compares entries by their serialized form.
func assertSameEntry(t *testing.T, want, got *chaindata.BlockEntry, msgAndArgs ...interface{}) {
	wantRaw, err := want.Bytes()
	require.NoError(t, err)
	gotRaw, err := got.Bytes()
	require.NoError(t, err)
	assert.Equal(t, wantRaw, gotRaw, msgAndArgs...)
	assert.Equal(t, want.Height, got.Height, msgAndArgs...)
	assert.Equal(t, want.Hash(), got.Hash(), msgAndArgs...)
}

func openTest(t *testing.T, dir string) *Store {
	s, err := Open(dir, "blocks.dat", "blockindexes.dat")
	require.NoError(t, err)
	return s
}

func TestPushPopGet(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)
	defer s.Close()

	assert.EqualValues(t, 0, s.Height())

	var pushed []*chaindata.BlockEntry
	push := func(e *chaindata.BlockEntry) {
		require.NoError(t, s.Push(e))
		pushed = append(pushed, e)
	}
	pop := func() {
		require.NoError(t, s.Pop())
		pushed = pushed[:len(pushed)-1]
	}

	for i := uint32(0); i < 5; i++ {
		push(testEntry(i, int(i)*3))
	}
	pop()
	pop()
	push(testEntry(3, 50))
	push(testEntry(4, 1))
	pop()
	push(testEntry(4, 9))

	require.EqualValues(t, len(pushed), s.Height())
	for i, want := range pushed {
		got, err := s.Get(uint32(i))
		require.NoError(t, err)
		assertSameEntry(t, want, got, "entry %d", i)
	}

	info, err := os.Stat(filepath.Join(dir, "blockindexes.dat"))
	require.NoError(t, err)
	assert.EqualValues(t, len(pushed)*indexRecordSize, info.Size())

	_, err = s.Get(s.Height())
	var assertErr chaindata.AssertError
	require.ErrorAs(t, err, &assertErr)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)
	for i := uint32(0); i < 3; i++ {
		require.NoError(t, s.Push(testEntry(i, 4)))
	}
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s = openTest(t, dir)
	defer s.Close()
	require.EqualValues(t, 3, s.Height())
	got, err := s.Get(2)
	require.NoError(t, err)
	assertSameEntry(t, testEntry(2, 4), got)
}

func TestRecoverTornIndex(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)
	for i := uint32(0); i < 2; i++ {
		require.NoError(t, s.Push(testEntry(i, 0)))
	}
	require.NoError(t, s.Close())

	// A half written record and a record pointing past the data file.
	f, err := os.OpenFile(filepath.Join(dir, "blockindexes.dat"), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xff, 0xff, 0, 0, 0, 0, 0, 0, 0x01})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s = openTest(t, dir)
	defer s.Close()
	assert.EqualValues(t, 2, s.Height())
	require.NoError(t, s.Push(testEntry(2, 0)))
	got, err := s.Get(2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Height)
}

func TestPopEmpty(t *testing.T) {
	s := openTest(t, t.TempDir())
	defer s.Close()
	require.Error(t, s.Pop())
}
