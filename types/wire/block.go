// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

// MaxBlockTxCount caps the transaction hash list of a block so that every
// transaction, the miner one included, has a 16 bit position.
const MaxBlockTxCount = 1<<16 - 1

// BlockHeader defines information about a block.
type BlockHeader struct {
	// Consensus rule version.  Selects the proof-of-work variant.
	MajorVersion uint8

	// Soft version, voting only.
	MinorVersion uint8

	// Time the block was created, unix seconds.
	Timestamp uint64

	// Hash of the previous block in the chain.
	PrevBlock chainhash.Hash

	// Nonce used to generate the block.
	Nonce uint32
}

// Serialize encodes the header: both versions and the timestamp as varints,
// then the previous hash and the little-endian nonce.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if err := WriteVarInt(w, uint64(h.MajorVersion)); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(h.MinorVersion)); err != nil {
		return err
	}
	if err := WriteVarInt(w, h.Timestamp); err != nil {
		return err
	}
	return WriteElements(w, h.PrevBlock, h.Nonce)
}

// Deserialize decodes a header from r.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	major, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	minor, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if major > 0xff || minor > 0xff {
		return Error("BlockHeader.Deserialize", ErrBadValue,
			fmt.Sprintf("version %d.%d out of range", major, minor))
	}
	h.MajorVersion, h.MinorVersion = uint8(major), uint8(minor)

	if h.Timestamp, err = ReadVarInt(r); err != nil {
		return err
	}
	return ReadElements(r, &h.PrevBlock, &h.Nonce)
}

// MsgBlock is a block: header, miner transaction and the hashes of the
// transactions it includes.
type MsgBlock struct {
	Header   BlockHeader
	MinerTx  MsgTx
	TxHashes []chainhash.Hash
}

// Serialize encodes the block.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}
	if err := msg.MinerTx.Serialize(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.TxHashes))); err != nil {
		return err
	}
	for i := range msg.TxHashes {
		if err := WriteElement(w, &msg.TxHashes[i]); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a block from r.
func (msg *MsgBlock) Deserialize(r io.Reader) error {
	if err := msg.Header.Deserialize(r); err != nil {
		return err
	}
	if err := msg.MinerTx.Deserialize(r); err != nil {
		return err
	}
	count, err := ReadCount(r, MaxBlockTxCount, "block transactions")
	if err != nil {
		return err
	}
	msg.TxHashes = nil
	if count == 0 {
		return nil
	}
	msg.TxHashes = make([]chainhash.Hash, count)
	for i := range msg.TxHashes {
		if err := ReadElement(r, &msg.TxHashes[i]); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized block.
func (msg *MsgBlock) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewBlockFromBytes decodes a block and refuses trailing data.
func NewBlockFromBytes(b []byte) (*MsgBlock, error) {
	r := bytes.NewReader(b)
	blk := new(MsgBlock)
	if err := blk.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, Error("NewBlockFromBytes", ErrTrailingBytes,
			fmt.Sprintf("%d bytes left after block", r.Len()))
	}
	return blk, nil
}

// TransactionsRoot is the tree hash over the miner transaction hash followed
// by the included transaction hashes.
func (msg *MsgBlock) TransactionsRoot() chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(msg.TxHashes)+1)
	hashes = append(hashes, msg.MinerTx.TxHash())
	hashes = append(hashes, msg.TxHashes...)
	return chainhash.TreeHash(hashes)
}

// HashingBlob is header ∥ transactions root ∥ varint(transaction count).  It
// is the input of both the block id and the proof-of-work hash.
func (msg *MsgBlock) HashingBlob() []byte {
	var buf bytes.Buffer
	_ = msg.Header.Serialize(&buf)
	root := msg.TransactionsRoot()
	buf.Write(root[:])
	_ = WriteVarInt(&buf, uint64(len(msg.TxHashes)+1))
	return buf.Bytes()
}

// BlockHash returns the block id: the fast hash of the length-prefixed
// hashing blob.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	blob := msg.HashingBlob()
	prefix := AppendVarInt(nil, uint64(len(blob)))
	return chainhash.FastHash(prefix, blob)
}

// SerializeSize returns the number of bytes the serialized block takes.
func (msg *MsgBlock) SerializeSize() int {
	b, err := msg.Bytes()
	if err != nil {
		return 0
	}
	return len(b)
}
