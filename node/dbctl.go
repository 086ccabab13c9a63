// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/cnoted/database"
	_ "gitlab.com/jaxnet/cnoted/database/ldb"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

// metaDBType is the driver backing the metadata database.
const metaDBType = "ldb"

// loadMetaDB loads (or creates when needed) the metadata database that keeps
// runtime checkpoints and alternative blocks across restarts.
func loadMetaDB(dataDir string, params *chaincfg.Params) (database.DB, error) {
	dbPath := filepath.Join(dataDir, params.MetaDBName)
	log.Info().Msgf("Loading metadata database from '%s'", dbPath)

	db, err := database.Open(metaDBType, dbPath)
	if err != nil {
		// Return the error if it's not because the database doesn't exist.
		if !database.IsErrorCode(err, database.ErrDBDoesNotExist) {
			return nil, err
		}

		// Create the db if it does not exist.
		if err = os.MkdirAll(dataDir, 0700); err != nil {
			return nil, errors.Wrap(err, "can't create data dir")
		}

		db, err = database.Create(metaDBType, dbPath)
		if err != nil {
			return nil, err
		}
	}

	log.Info().Msg("Metadata database loaded")
	return db, nil
}

// loadBlockStore opens the block files under dataDir.  Missing files are
// created empty.
func loadBlockStore(dataDir string, params *chaincfg.Params) (*blockstore.Store, error) {
	if !fileExists(dataDir) {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, errors.Wrap(err, "can't create data dir")
		}
	}

	log.Info().Msgf("Loading block store from '%s'", filepath.Join(dataDir, params.BlocksFileName))
	store, err := blockstore.Open(dataDir, params.BlocksFileName, params.BlockIndexesFileName)
	if err != nil {
		return nil, err
	}
	log.Info().Uint32("blocks", store.Height()).Msg("Block store loaded")
	return store, nil
}
