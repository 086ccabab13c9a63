// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math"
	"time"
)

// NetName is the name of a known network.
type NetName string

const (
	MainNet NetName = "mainnet"
	TestNet NetName = "testnet"
	SimNet  NetName = "simnet"
)

// Params returns the parameters of the named network, falling back to
// the main network for unknown names.
func (n NetName) Params() *Params {
	switch n {
	case TestNet:
		p := TestNetParams
		return &p
	case SimNet:
		p := SimNetParams
		return &p
	default:
		p := MainNetParams
		return &p
	}
}

// genesisCoinbaseTxHex mints the whole base reward of height zero to a single
// key output, unlocked after the mined money window.
const genesisCoinbaseTxHex = "010a01ff0001ffffffffffff0f029b2e4c0281c0b02e7c53291a94d1d0cbff8883f8024f5142ee494ffbbd08807121013c086a48c15fb637a96991bc6d53caf77068b5ba6eeb3c82357228c49790584a"

var defaultConsensus = ConsensusParams{
	DifficultyTarget:     120 * time.Second,
	DifficultyWindow:     720,
	DifficultyCut:        60,
	DifficultyLag:        15,
	TimestampCheckWindow: 60,
	BlockFutureTimeLimit: 2 * time.Hour,

	MinedMoneyUnlockWindow: 10,
	RewardBlocksWindow:     100,
	FullRewardZone:         20000,
	EmissionSpeedFactor:    18,
	MoneySupply:            math.MaxUint64,

	MaxBlockSizeInitial:           20 * 1024,
	MaxBlockSizeGrowthNumerator:   100 * 1024,
	MaxBlockSizeGrowthDenominator: 365 * 24 * 60 * 60 / 120,
	MinerTxBlobReservedSize:       600,
	MaxTxSize:                     1000000000,
	CurrentTransactionVersion:     1,
}

var defaultP2P = P2PParams{
	Version:             1,
	MaxPacketSize:       50000000,
	HandshakeInterval:   60 * time.Second,
	ConnectTimeout:      5 * time.Second,
	PingTimeout:         2 * time.Second,
	InvokeTimeout:       2 * time.Minute,
	WhiteListSize:       1000,
	GrayListSize:        5000,
	PeersInHandshake:    250,
	BlockIDsSyncCount:   10000,
	BlocksSyncCount:     200,
	OutboundConnections: 8,
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:        string(MainNet),
	NetworkID:   [16]byte{0x11, 0x10, 0x01, 0x11, 0x01, 0x01, 0x11, 0x01, 0x10, 0x11, 0x00, 0x12, 0x10, 0x11, 0x01, 0x10},
	DefaultPort: 8080,
	Seeds:       []string{},

	GenesisCoinbaseTxHex: genesisCoinbaseTxHex,
	GenesisNonce:         70,
	GenesisTimestamp:     0,
	BlockMajorVersion:    1,
	BlockMinorVersion:    0,

	Consensus: defaultConsensus,
	P2P:       defaultP2P,

	Checkpoints: []Checkpoint{},
	Hardforks: []Hardfork{
		{Height: 0, MajorVersion: 1},
	},

	BlocksFileName:       "blocks.dat",
	BlockIndexesFileName: "blockindexes.dat",
	PeerStoreFileName:    "p2pstate.bin",
	MetaDBName:           "meta",
}

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Name:        string(TestNet),
	NetworkID:   [16]byte{0x11, 0x10, 0x01, 0x11, 0x01, 0x01, 0x11, 0x01, 0x10, 0x11, 0x00, 0x12, 0x10, 0x11, 0x01, 0x11},
	DefaultPort: 18080,
	Seeds:       []string{},

	GenesisCoinbaseTxHex: genesisCoinbaseTxHex,
	GenesisNonce:         71,
	GenesisTimestamp:     0,
	BlockMajorVersion:    1,
	BlockMinorVersion:    0,

	Consensus: defaultConsensus,
	P2P:       defaultP2P,

	Checkpoints: []Checkpoint{},
	Hardforks: []Hardfork{
		{Height: 0, MajorVersion: 1},
	},

	BlocksFileName:       "blocks.dat",
	BlockIndexesFileName: "blockindexes.dat",
	PeerStoreFileName:    "p2pstate.bin",
	MetaDBName:           "meta",
}

// SimNetParams defines a private network with the consensus constants of
// the main network and no seeds.
var SimNetParams = Params{
	Name:        string(SimNet),
	NetworkID:   [16]byte{0x11, 0x10, 0x01, 0x11, 0x01, 0x01, 0x11, 0x01, 0x10, 0x11, 0x00, 0x12, 0x10, 0x11, 0x01, 0x12},
	DefaultPort: 28080,

	GenesisCoinbaseTxHex: genesisCoinbaseTxHex,
	GenesisNonce:         70,
	GenesisTimestamp:     0,
	BlockMajorVersion:    1,
	BlockMinorVersion:    0,

	Consensus: defaultConsensus,
	P2P:       defaultP2P,

	Hardforks: []Hardfork{
		{Height: 0, MajorVersion: 1},
	},

	BlocksFileName:       "blocks.dat",
	BlockIndexesFileName: "blockindexes.dat",
	PeerStoreFileName:    "p2pstate.bin",
	MetaDBName:           "meta",
}
