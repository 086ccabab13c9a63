// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"

	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	flagDataDir = "datadir"
	flagNet     = "net"
	flagFrom    = "from"
	flagCount   = "count"
	flagSpew    = "spew"
	flagFile    = "file"
	flagHex     = "hex"
)

var standardFlags = map[string]cli.Flag{
	flagDataDir: &cli.StringFlag{
		Name:     flagDataDir,
		Aliases:  []string{"b"},
		Usage:    "network data directory of the node",
		Required: true,
	},
	flagNet: &cli.StringFlag{
		Name:  flagNet,
		Usage: "network name {mainnet, testnet, simnet}",
		Value: string(chaincfg.MainNet),
	},
	flagSpew: &cli.BoolFlag{
		Name:  flagSpew,
		Usage: "dump full structures",
	},
	flagHex: &cli.StringFlag{
		Name:     flagHex,
		Usage:    "hex-encoded body",
		Required: true,
	},
}

func main() {
	app := &App{out: os.Stdout}
	cliApp := &cli.App{
		Name:     "cnoted-tools",
		Usage:    "inspect node data files",
		Commands: app.getCommands(),
	}

	err := cliApp.Run(os.Args)
	if err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func (app *App) getCommands() cli.Commands {
	return []*cli.Command{
		{
			Name:  "store",
			Usage: "inspect the block store",
			Subcommands: cli.Commands{
				{
					Name:   "height",
					Usage:  "print the number of stored blocks",
					Flags:  []cli.Flag{standardFlags[flagDataDir], standardFlags[flagNet]},
					Action: app.StoreHeightCmd,
				},
				{
					Name:  "dump",
					Usage: "print stored block entries",
					Flags: []cli.Flag{
						standardFlags[flagDataDir],
						standardFlags[flagNet],
						standardFlags[flagSpew],
						&cli.UintFlag{Name: flagFrom, Usage: "first height"},
						&cli.UintFlag{Name: flagCount, Usage: "number of entries", Value: 10},
					},
					Action: app.StoreDumpCmd,
				},
				{
					Name:   "verify",
					Usage:  "check heights and block links of the stored entries",
					Flags:  []cli.Flag{standardFlags[flagDataDir], standardFlags[flagNet]},
					Action: app.StoreVerifyCmd,
				},
			},
		},
		{
			Name:  "peers",
			Usage: "list the peer store",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagFile,
					Aliases:  []string{"f"},
					Usage:    "path to the peer store file",
					Required: true,
				},
			},
			Action: app.PeersCmd,
		},
		{
			Name:   "genesis",
			Usage:  "print the genesis block of a network",
			Flags:  []cli.Flag{standardFlags[flagNet], standardFlags[flagSpew]},
			Action: app.GenesisCmd,
		},
		{
			Name:  "decode",
			Usage: "decodes hex-encoded data",
			Subcommands: cli.Commands{
				{
					Name:  "block",
					Usage: "decode hex encoded block",
					Flags: []cli.Flag{standardFlags[flagHex]},
					Action: func(c *cli.Context) error {
						decodedHex, err := hex.DecodeString(c.String(flagHex))
						if err != nil {
							return cli.Exit(err, 1)
						}
						var block wire.MsgBlock
						if err = block.Deserialize(bytes.NewReader(decodedHex)); err != nil {
							return cli.Exit(err, 1)
						}
						fmt.Fprintf(app.out, "hash: %s\n", block.BlockHash())
						spew.Fdump(app.out, block)
						return nil
					},
				},
				{
					Name:  "tx",
					Usage: "decode hex encoded transaction body",
					Flags: []cli.Flag{standardFlags[flagHex]},
					Action: func(c *cli.Context) error {
						decodedHex, err := hex.DecodeString(c.String(flagHex))
						if err != nil {
							return cli.Exit(err, 1)
						}
						var tx wire.MsgTx
						if err = tx.Deserialize(bytes.NewReader(decodedHex)); err != nil {
							return cli.Exit(err, 1)
						}
						fmt.Fprintf(app.out, "hash: %s\n", tx.TxHash())
						spew.Fdump(app.out, tx)
						return nil
					},
				},
			},
		},
	}
}
