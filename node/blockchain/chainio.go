// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"fmt"

	"gitlab.com/jaxnet/cnoted/database"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

var (
	// checkpointsBucketName is the name of the bucket holding checkpoints
	// added at runtime, keyed by big endian height.
	checkpointsBucketName = []byte("checkpoints")

	// altBlocksBucketName is the name of the bucket holding alternative
	// branch entries keyed by block hash.
	altBlocksBucketName = []byte("altblocks")
)

// loadMetadata restores runtime checkpoints and alternative blocks.
func (b *BlockChain) loadMetadata() error {
	if b.db == nil {
		return nil
	}

	return b.db.View(func(tx database.Tx) error {
		err := tx.Bucket(checkpointsBucketName).ForEach(func(k, v []byte) error {
			if len(k) != 4 || len(v) != chainhash.HashSize {
				return database.MakeError(database.ErrCorruption,
					fmt.Sprintf("malformed checkpoint record %x", k), nil)
			}
			height := binary.BigEndian.Uint32(k)
			hash, _ := chainhash.NewHash(v)
			if pinned, ok := b.checkpoints.Hash(height); ok {
				if pinned != *hash {
					log.Warn().Uint32("height", height).Msgf("stored checkpoint %s conflicts with %s, ignored",
						hash, pinned)
				}
				return nil
			}
			return b.checkpoints.AddHash(height, *hash)
		})
		if err != nil {
			return err
		}

		return tx.Bucket(altBlocksBucketName).ForEach(func(k, v []byte) error {
			entry, err := chaindata.NewBlockEntryFromBytes(v)
			if err != nil {
				log.Warn().Err(err).Msgf("dropping unreadable alternative block %x", k)
				return nil
			}
			b.altChains[entry.Hash()] = entry
			return nil
		})
	})
}

// saveAltBlock persists an alternative branch entry.  Failures are logged:
// the entry is still usable for the lifetime of the process.
func (b *BlockChain) saveAltBlock(hash chainhash.Hash, entry *chaindata.BlockEntry) {
	if b.db == nil {
		return
	}
	raw, err := entry.Bytes()
	if err == nil {
		err = b.db.Update(func(tx database.Tx) error {
			return tx.Bucket(altBlocksBucketName).Put(hash[:], raw)
		})
	}
	if err != nil {
		log.Warn().Stringer("block", hash).Err(err).Msg("can't store alternative block")
	}
}

// deleteAltBlock forgets a persisted alternative branch entry.
func (b *BlockChain) deleteAltBlock(hash chainhash.Hash) {
	if b.db == nil {
		return
	}
	err := b.db.Update(func(tx database.Tx) error {
		return tx.Bucket(altBlocksBucketName).Delete(hash[:])
	})
	if err != nil {
		log.Warn().Stringer("block", hash).Err(err).Msg("can't delete alternative block")
	}
}

// AddCheckpoint pins height to hash and persists the pin.  Pins can't be
// replaced; a block already on the main chain at height is not
// re-examined.
//
// This function is safe for concurrent access.
func (b *BlockChain) AddCheckpoint(height uint32, hash chainhash.Hash) error {
	if err := b.checkpoints.AddHash(height, hash); err != nil {
		return err
	}

	b.chainLock.RLock()
	if height < uint32(len(b.mainChain)) && b.mainChain[height].hash != hash {
		log.Warn().Uint32("height", height).Msgf("main chain block %s conflicts with new checkpoint %s",
			b.mainChain[height].hash, hash)
	}
	b.chainLock.RUnlock()

	if b.db == nil {
		return nil
	}
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], height)
	return b.db.Update(func(tx database.Tx) error {
		return tx.Bucket(checkpointsBucketName).Put(key[:], hash[:])
	})
}
