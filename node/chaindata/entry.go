// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"bytes"
	"fmt"
	"io"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// TransactionIndex locates a committed transaction: the height of its block
// and its position inside the block, the miner transaction being zero.
type TransactionIndex struct {
	Block       uint32
	Transaction uint16
}

func (i TransactionIndex) String() string {
	return fmt.Sprintf("%d:%d", i.Block, i.Transaction)
}

// TransactionEntry is a committed transaction with the global output indexes
// assigned to each of its outputs.
type TransactionEntry struct {
	Tx                  wire.MsgTx
	GlobalOutputIndexes []uint32
}

// BlockEntry is a committed block along with the values derived while it was
// connected.
type BlockEntry struct {
	Block wire.MsgBlock

	Height uint32

	// BlockCumulativeSize is the size of the block blob plus the blobs of
	// all included transactions.
	BlockCumulativeSize uint64

	// CumulativeDifficulty is the sum of difficulties from genesis up to
	// and including this block.
	CumulativeDifficulty uint64

	// AlreadyGeneratedCoins is the total emission up to and including
	// this block.
	AlreadyGeneratedCoins uint64

	// Transactions holds the miner transaction first, then the included
	// transactions in block order.
	Transactions []TransactionEntry
}

// Hash returns the block id.
func (e *BlockEntry) Hash() chainhash.Hash {
	return e.Block.BlockHash()
}

// Serialize writes the entry in block store format.
func (e *BlockEntry) Serialize(w io.Writer) error {
	if err := e.Block.Serialize(w); err != nil {
		return err
	}
	for _, v := range []uint64{uint64(e.Height), e.BlockCumulativeSize,
		e.CumulativeDifficulty, e.AlreadyGeneratedCoins,
		uint64(len(e.Transactions))} {
		if err := wire.WriteVarInt(w, v); err != nil {
			return err
		}
	}

	for i := range e.Transactions {
		te := &e.Transactions[i]
		if err := te.Tx.Serialize(w); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, uint64(len(te.GlobalOutputIndexes))); err != nil {
			return err
		}
		for _, idx := range te.GlobalOutputIndexes {
			if err := wire.WriteVarInt(w, uint64(idx)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Deserialize reads an entry written by Serialize.
func (e *BlockEntry) Deserialize(r io.Reader) error {
	if err := e.Block.Deserialize(r); err != nil {
		return err
	}

	var err error
	if e.Height, err = wire.ReadVarIntUint32(r, "height"); err != nil {
		return err
	}
	if e.BlockCumulativeSize, err = wire.ReadVarInt(r); err != nil {
		return err
	}
	if e.CumulativeDifficulty, err = wire.ReadVarInt(r); err != nil {
		return err
	}
	if e.AlreadyGeneratedCoins, err = wire.ReadVarInt(r); err != nil {
		return err
	}

	count, err := wire.ReadCount(r, wire.MaxBlockTxCount+1, "block entry transactions")
	if err != nil {
		return err
	}
	e.Transactions = make([]TransactionEntry, count)
	for i := range e.Transactions {
		te := &e.Transactions[i]
		if err := te.Tx.Deserialize(r); err != nil {
			return err
		}
		n, err := wire.ReadCount(r, wire.MaxElementsCount, "global output indexes")
		if err != nil {
			return err
		}
		te.GlobalOutputIndexes = make([]uint32, n)
		for j := range te.GlobalOutputIndexes {
			if te.GlobalOutputIndexes[j], err = wire.ReadVarIntUint32(r, "global output index"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Bytes returns the serialized entry.
func (e *BlockEntry) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewBlockEntryFromBytes decodes an entry and refuses trailing data.
func NewBlockEntryFromBytes(b []byte) (*BlockEntry, error) {
	r := bytes.NewReader(b)
	e := new(BlockEntry)
	if err := e.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, wire.Error("NewBlockEntryFromBytes", wire.ErrTrailingBytes,
			fmt.Sprintf("%d bytes left after block entry", r.Len()))
	}
	return e, nil
}
