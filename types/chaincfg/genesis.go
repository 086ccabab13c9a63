// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"encoding/hex"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// GenesisBlock builds block zero from the coinbase blob of the network.
func (p *Params) GenesisBlock() (*wire.MsgBlock, error) {
	raw, err := hex.DecodeString(p.GenesisCoinbaseTxHex)
	if err != nil {
		return nil, errors.Wrap(err, "genesis coinbase is not hex")
	}
	tx, err := wire.NewTxFromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "can't decode genesis coinbase")
	}

	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			MajorVersion: p.BlockMajorVersion,
			MinorVersion: p.BlockMinorVersion,
			Timestamp:    p.GenesisTimestamp,
			PrevBlock:    chainhash.ZeroHash,
			Nonce:        p.GenesisNonce,
		},
		MinerTx: *tx,
	}, nil
}

// GenesisHash returns the id of block zero.
func (p *Params) GenesisHash() (chainhash.Hash, error) {
	blk, err := p.GenesisBlock()
	if err != nil {
		return chainhash.ZeroHash, err
	}
	return blk.BlockHash(), nil
}
