// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"

	"gitlab.com/jaxnet/cnoted/database"
	"gitlab.com/jaxnet/cnoted/network/p2p"
	"gitlab.com/jaxnet/cnoted/node/blockchain"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

const (
	// poolTxLiveTime is how long a relayed transaction may wait in the pool.
	poolTxLiveTime = 24 * time.Hour

	poolCleanupInterval = 30 * time.Second
)

type chainController struct {
	cfg    *Config
	params *chaincfg.Params

	store  *blockstore.Store
	db     database.DB
	pool   *mempool.TxPool
	chain  *blockchain.BlockChain
	server *p2p.Server

	wg sync.WaitGroup
}

func Controller() *chainController {
	return &chainController{}
}

// Run opens the chain state under cfg.DataDir and serves the node protocol
// until ctx is done.  Everything opened is closed before it returns.
func (chainCtl *chainController) Run(ctx context.Context, cfg *Config) error {
	chainCtl.cfg = cfg
	chainCtl.params = cfg.Node.ChainParams()
	defer chainCtl.close()

	if err := chainCtl.init(); err != nil {
		log.Error().Err(err).Msg("Can't init chain")
		return err
	}

	if cfg.Metrics.Enable {
		chainCtl.wg.Add(1)
		go func() {
			defer chainCtl.wg.Done()
			if err := chainCtl.runMetricsServer(ctx, cfg); err != nil {
				log.Error().Err(err).Msg("listen metrics server")
			}
		}()
	}

	chainCtl.wg.Add(1)
	go func() {
		defer chainCtl.wg.Done()
		chainCtl.poolCleanupHandler(ctx)
	}()

	err := chainCtl.server.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Node server error")
	}
	chainCtl.wg.Wait()
	return err
}

func (chainCtl *chainController) init() error {
	var err error
	cfg := chainCtl.cfg

	chainCtl.db, err = loadMetaDB(cfg.DataDir, chainCtl.params)
	if err != nil {
		return err
	}
	chainCtl.store, err = loadBlockStore(cfg.DataDir, chainCtl.params)
	if err != nil {
		return err
	}

	checkpoints, err := cfg.Node.ParseCheckpoints()
	if err != nil {
		return err
	}

	chainCtl.pool = mempool.New(&mempool.Config{
		MaxTxSize: chainCtl.params.Consensus.MaxTxSize,
	})
	chainCtl.chain, err = blockchain.New(&blockchain.Config{
		ChainParams: chainCtl.params,
		Store:       chainCtl.store,
		TxPool:      chainCtl.pool,
		DB:          chainCtl.db,
		Checkpoints: checkpoints,
	})
	if err != nil {
		return err
	}
	hash, top := chainCtl.chain.BestBlock()
	log.Info().Str("net", chainCtl.params.Name).Uint32("height", top).Str("tip", hash.String()).
		Msg("Chain state loaded")

	chainCtl.server, err = p2p.NewServer(&cfg.Node.P2P, chainCtl.params, chainCtl.chain, chainCtl.pool,
		p2p.ServerOpts{PeerStorePath: filepath.Join(cfg.DataDir, chainCtl.params.PeerStoreFileName)})
	return err
}

// poolCleanupHandler drops stale relayed transactions until ctx is done.
func (chainCtl *chainController) poolCleanupHandler(ctx context.Context) {
	t := ticker.New(poolCleanupInterval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			chainCtl.pool.RemoveExpired(poolTxLiveTime)
		case <-ctx.Done():
			return
		}
	}
}

func (chainCtl *chainController) close() {
	if chainCtl.chain != nil {
		if err := chainCtl.chain.Close(); err != nil {
			log.Error().Err(err).Msg("Can't close chain")
		}
	}
	if chainCtl.store != nil {
		if err := chainCtl.store.Close(); err != nil {
			log.Error().Err(err).Msg("Can't close block store")
		}
	}
	if chainCtl.db != nil {
		if err := chainCtl.db.Close(); err != nil {
			log.Error().Err(err).Msg("Can't close metadata database")
		}
	}
}
