// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"gitlab.com/jaxnet/cnoted/network/p2p"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

// App holds the output the commands print to.
type App struct {
	out io.Writer
}

func openStore(c *cli.Context) (*blockstore.Store, error) {
	params := chaincfg.NetName(c.String(flagNet)).Params()
	store, err := blockstore.Open(c.String(flagDataDir), params.BlocksFileName, params.BlockIndexesFileName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open block store")
	}
	return store, nil
}

func (app *App) StoreHeightCmd(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer store.Close()

	fmt.Fprintf(app.out, "%d\n", store.Height())
	return nil
}

func (app *App) StoreDumpCmd(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer store.Close()

	from := uint32(c.Uint(flagFrom))
	count := uint32(c.Uint(flagCount))
	height := store.Height()
	if from >= height {
		return cli.Exit(fmt.Sprintf("height %d is out of range, store holds %d blocks", from, height), 1)
	}
	to := height
	if count > 0 && from+count < height {
		to = from + count
	}

	_, _ = fmt.Fprintf(app.out, "%v,%v,%v,%v,%v,%v,%v\n",
		"height",
		"hash",
		"timestamp",
		"size",
		"cumulative_difficulty",
		"generated_coins",
		"txs",
	)
	for i := from; i < to; i++ {
		entry, err := store.Get(i)
		if err != nil {
			return cli.Exit(errors.Wrapf(err, "unable to read entry %d", i), 1)
		}
		if c.Bool(flagSpew) {
			spew.Fdump(app.out, entry)
			continue
		}
		_, _ = fmt.Fprintf(app.out, "%v,%v,%v,%v,%v,%v,%v\n",
			entry.Height,
			entry.Hash(),
			time.Unix(int64(entry.Block.Header.Timestamp), 0).UTC().Format(time.RFC3339),
			entry.BlockCumulativeSize,
			entry.CumulativeDifficulty,
			entry.AlreadyGeneratedCoins,
			len(entry.Transactions),
		)
	}
	return nil
}

func (app *App) StoreVerifyCmd(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer store.Close()

	params := chaincfg.NetName(c.String(flagNet)).Params()
	genesisHash, err := params.GenesisHash()
	if err != nil {
		return cli.Exit(err, 1)
	}

	var (
		prevDifficulty uint64
		prevCoins      uint64
	)
	prev := genesisHash
	for i := uint32(0); i < store.Height(); i++ {
		entry, err := store.Get(i)
		if err != nil {
			return cli.Exit(errors.Wrapf(err, "unable to read entry %d", i), 1)
		}
		hash := entry.Hash()
		switch {
		case entry.Height != i:
			return cli.Exit(fmt.Sprintf("entry %d records height %d", i, entry.Height), 1)
		case i == 0 && hash != genesisHash:
			return cli.Exit(fmt.Sprintf("entry 0 is %s, want genesis %s", hash, genesisHash), 1)
		case i > 0 && entry.Block.Header.PrevBlock != prev:
			return cli.Exit(fmt.Sprintf("entry %d links to %s, want %s", i, entry.Block.Header.PrevBlock, prev), 1)
		case i > 0 && entry.CumulativeDifficulty <= prevDifficulty:
			return cli.Exit(fmt.Sprintf("entry %d cumulative difficulty does not grow", i), 1)
		case i > 0 && entry.AlreadyGeneratedCoins < prevCoins:
			return cli.Exit(fmt.Sprintf("entry %d generated coins decrease", i), 1)
		}
		prev = hash
		prevDifficulty = entry.CumulativeDifficulty
		prevCoins = entry.AlreadyGeneratedCoins
	}

	fmt.Fprintf(app.out, "%d entries ok, tip %s\n", store.Height(), prev)
	return nil
}

func (app *App) PeersCmd(c *cli.Context) error {
	f, err := os.Open(c.String(flagFile))
	if err != nil {
		return cli.Exit(errors.Wrap(err, "unable to open peer store"), 1)
	}
	defer f.Close()

	store, err := p2p.ReadPeerStore(f)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "unable to decode peer store"), 1)
	}

	fmt.Fprintf(app.out, "version %d.%d, peer id %016x\n", store.ServerVersion, store.ManagerVersion, store.PeerID)
	for _, list := range []struct {
		name    string
		entries []p2p.PeerlistEntry
	}{{"white", store.White}, {"gray", store.Gray}} {
		fmt.Fprintf(app.out, "%s list: %d entries\n", list.name, len(list.entries))
		for _, e := range list.entries {
			fmt.Fprintf(app.out, "  %-22s %016x %s\n", e.Address, e.ID,
				time.Unix(e.LastSeen, 0).UTC().Format(time.RFC3339))
		}
	}
	return nil
}

func (app *App) GenesisCmd(c *cli.Context) error {
	params := chaincfg.NetName(c.String(flagNet)).Params()
	block, err := params.GenesisBlock()
	if err != nil {
		return cli.Exit(err, 1)
	}

	fmt.Fprintf(app.out, "%s genesis %s\n", params.Name, block.BlockHash())
	if c.Bool(flagSpew) {
		spew.Fdump(app.out, block)
	}
	return nil
}
