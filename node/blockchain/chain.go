// Copyright (c) 2013-2018 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"

	"gitlab.com/jaxnet/cnoted/database"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/pow"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// Config is a descriptor which specifies the blockchain instance configuration.
type Config struct {
	// ChainParams identifies which chain parameters the chain is associated
	// with.
	//
	// This field is required.
	ChainParams *chaincfg.Params

	// Store holds the main chain block entries.  An empty store is
	// initialized with the genesis block.
	//
	// This field is required.
	Store *blockstore.Store

	// TxPool is where transactions of incoming blocks are taken from and
	// where transactions of disconnected blocks are returned to.
	//
	// This field is required.
	TxPool *mempool.TxPool

	// DB houses the chain metadata that does not live in the block store:
	// runtime checkpoints and alternative blocks.
	//
	// This field can be nil, in which case that metadata is kept in memory
	// only.
	DB database.DB

	// Checkpoints hold caller-defined checkpoints that should be added to
	// the default checkpoints in ChainParams.
	//
	// This field can be nil if the caller does not wish to specify any
	// checkpoints.
	Checkpoints []chaincfg.Checkpoint

	// Clock defines the time source used for the future timestamp limit
	// and for time based unlocks.
	//
	// This field can be nil, in which case the wall clock is used.
	Clock clock.Clock
}

// outputRef points to a key output registered under its amount.
type outputRef struct {
	tx         chaindata.TransactionIndex
	output     uint32
	unlockTime uint64
}

// multisigRef points to a multisignature output registered under its amount.
type multisigRef struct {
	tx         chaindata.TransactionIndex
	output     uint32
	unlockTime uint64
	used       bool
}

// blockInfo caches the per-height values the validation rules need without
// reading entries back from the store.
type blockInfo struct {
	hash                  chainhash.Hash
	timestamp             uint64
	cumulativeSize        uint64
	cumulativeDifficulty  uint64
	alreadyGeneratedCoins uint64
	majorVersion          uint8
}

// BlockChain provides functions for working with the CryptoNote block chain.
// It includes functionality such as rejecting duplicate blocks, ensuring
// blocks follow all rules, keeping alternative branches and switching to
// them when they accumulate more work.
type BlockChain struct {
	// The following fields are set when the instance is created and can't
	// be changed afterwards, so there is no need to protect them with a
	// separate mutex.
	chainParams *chaincfg.Params
	consensus   *chaincfg.ConsensusParams
	store       *blockstore.Store
	db          database.DB
	pool        *mempool.TxPool
	clock       clock.Clock
	hasher      pow.Hasher
	checkpoints *chaindata.Checkpoints
	hardforks   *chaindata.Hardforks
	genesisHash chainhash.Hash

	// chainLock protects concurrent access to the chain state and the
	// indexes below.
	chainLock sync.RWMutex

	// halted is set when an internal invariant broke.  Every mutation is
	// refused afterwards.
	halted bool

	// Main chain indexes.
	mainChain      []blockInfo
	blockHeights   map[chainhash.Hash]uint32
	transactions   map[chainhash.Hash]chaindata.TransactionIndex
	spentKeyImages map[wire.KeyImage]uint32
	outputs        map[uint64][]outputRef
	multisigs      map[uint64][]multisigRef
	paymentIDs     map[chainhash.Hash][]chainhash.Hash
	timestamps     map[uint64][]chainhash.Hash
	generatedTxs   []uint64

	// altChains holds blocks of alternative branches keyed by their hash.
	altChains map[chainhash.Hash]*chaindata.BlockEntry

	// The notifications field stores a slice of callbacks to be executed on
	// certain blockchain events.
	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
	pending           []*Notification
}

// New returns a BlockChain instance using the provided configuration details.
// An empty store is initialized with the genesis block; otherwise the
// indexes are rebuilt from the stored entries.
func New(config *Config) (*BlockChain, error) {
	// Enforce required config fields.
	if config.ChainParams == nil {
		return nil, chaindata.AssertError("blockchain.New chain parameters nil")
	}
	if config.Store == nil {
		return nil, chaindata.AssertError("blockchain.New block store is nil")
	}
	if config.TxPool == nil {
		return nil, chaindata.AssertError("blockchain.New transaction pool is nil")
	}

	params := config.ChainParams
	checkpoints, err := chaindata.NewCheckpoints(params.Checkpoints)
	if err != nil {
		return nil, err
	}
	for _, cp := range config.Checkpoints {
		if err := checkpoints.Add(cp.Height, cp.Hash); err != nil {
			return nil, err
		}
	}

	genesisHash, err := params.GenesisHash()
	if err != nil {
		return nil, err
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	b := &BlockChain{
		chainParams:    params,
		consensus:      &params.Consensus,
		store:          config.Store,
		db:             config.DB,
		pool:           config.TxPool,
		clock:          clk,
		hasher:         params.Hasher(),
		checkpoints:    checkpoints,
		hardforks:      chaindata.NewHardforks(params.Hardforks),
		genesisHash:    genesisHash,
		blockHeights:   make(map[chainhash.Hash]uint32),
		transactions:   make(map[chainhash.Hash]chaindata.TransactionIndex),
		spentKeyImages: make(map[wire.KeyImage]uint32),
		outputs:        make(map[uint64][]outputRef),
		multisigs:      make(map[uint64][]multisigRef),
		paymentIDs:     make(map[chainhash.Hash][]chainhash.Hash),
		timestamps:     make(map[uint64][]chainhash.Hash),
		altChains:      make(map[chainhash.Hash]*chaindata.BlockEntry),
	}

	if err := b.initChainState(); err != nil {
		return nil, err
	}

	b.pool.SetValidator(b)

	top := b.topInfo()
	log.Info().Str("chain", params.Name).Msgf("Chain state (height %d, hash %v, difficulty %d, coins %d)",
		len(b.mainChain), top.hash, top.cumulativeDifficulty, top.alreadyGeneratedCoins)
	return b, nil
}

// initChainState pushes the genesis block into an empty store or rebuilds
// the indexes from a populated one, then loads the metadata.
func (b *BlockChain) initChainState() error {
	if err := b.loadMetadata(); err != nil {
		return err
	}

	if b.store.Height() == 0 {
		genesis, err := b.chainParams.GenesisBlock()
		if err != nil {
			return err
		}

		log.Info().Str("chain", b.chainParams.Name).Msgf("Store new genesis: %s", b.genesisHash)
		if err := b.pushBlock(genesis, nil); err != nil {
			return errors.Wrap(err, "can't push genesis block")
		}
		b.pending = nil
		return nil
	}

	log.Info().Str("chain", b.chainParams.Name).Msgf("Loading %d blocks...", b.store.Height())
	for height := uint32(0); height < b.store.Height(); height++ {
		entry, err := b.store.Get(height)
		if err != nil {
			return err
		}
		if height == 0 && entry.Hash() != b.genesisHash {
			return fmt.Errorf("stored genesis %s does not match network genesis %s",
				entry.Hash(), b.genesisHash)
		}
		if entry.Height != height {
			return chaindata.AssertError(fmt.Sprintf("stored entry %d claims height %d",
				height, entry.Height))
		}
		if err := b.indexEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

// topInfo returns the cached values of the main chain tip.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) topInfo() blockInfo {
	return b.mainChain[len(b.mainChain)-1]
}

// tipHash returns the main chain tip, or the zero hash on an empty chain.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) tipHash() chainhash.Hash {
	if len(b.mainChain) == 0 {
		return chainhash.ZeroHash
	}
	return b.topInfo().hash
}

// checkHalted refuses mutations once an invariant broke.
//
// This function MUST be called with the chain lock held (for reads).
func (b *BlockChain) checkHalted() error {
	if b.halted {
		return chaindata.NewRuleError(chaindata.ErrChainHalted,
			"chain halted after an internal inconsistency")
	}
	return nil
}

// halt stops the chain after an AssertError and passes the error on.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) halt(err error) error {
	if _, ok := errors.Cause(err).(chaindata.AssertError); ok {
		b.halted = true
		log.Error().Err(err).Msg("chain halted")
	}
	return err
}

// Halted reports whether the chain stopped accepting mutations.
//
// This function is safe for concurrent access.
func (b *BlockChain) Halted() bool {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.halted
}

// ChainParams returns the network parameters of the chain.
func (b *BlockChain) ChainParams() *chaincfg.Params {
	return b.chainParams
}

// Checkpoints returns the checkpoint table of the chain.
func (b *BlockChain) Checkpoints() *chaindata.Checkpoints {
	return b.checkpoints
}

// Close flushes the block store.  The store and the database are owned by
// the caller and stay open.
func (b *BlockChain) Close() error {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()
	return b.store.Sync()
}
