// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"gitlab.com/jaxnet/cnoted/types/pow"
)

// Checkpoint identifies a known good point in the block chain.  Using
// checkpoints allows a few optimizations for old blocks during initial
// download and also prevents forks from old blocks.
type Checkpoint struct {
	Height uint32
	Hash   string
}

// Hardfork activates a block major version at a height.
type Hardfork struct {
	Height       uint32
	MajorVersion uint8
}

// ConsensusParams holds the block validation constants.
type ConsensusParams struct {
	DifficultyTarget time.Duration
	DifficultyWindow int
	DifficultyCut    int
	DifficultyLag    int

	// TimestampCheckWindow is the number of blocks whose median timestamp
	// a new block must not precede.
	TimestampCheckWindow int

	// BlockFutureTimeLimit is how far ahead of local time a block may be.
	BlockFutureTimeLimit time.Duration

	// MinedMoneyUnlockWindow is the unlock delay of miner outputs, in
	// blocks.
	MinedMoneyUnlockWindow uint64

	// RewardBlocksWindow is the number of blocks the median block size is
	// taken over.
	RewardBlocksWindow int

	// FullRewardZone is the block size under which no penalty applies.
	FullRewardZone uint64

	EmissionSpeedFactor uint
	MoneySupply         uint64

	MaxBlockSizeInitial           uint64
	MaxBlockSizeGrowthNumerator   uint64
	MaxBlockSizeGrowthDenominator uint64
	MinerTxBlobReservedSize       uint64
	MaxTxSize                     uint64
	CurrentTransactionVersion     uint64
}

// Difficulty returns the retargeting constants in the form the difficulty
// engine expects.
func (c ConsensusParams) Difficulty() pow.DifficultyParams {
	return pow.DifficultyParams{
		TargetSeconds: uint64(c.DifficultyTarget / time.Second),
		Window:        c.DifficultyWindow,
		Cut:           c.DifficultyCut,
		Lag:           c.DifficultyLag,
	}
}

// P2PParams holds the peer-to-peer constants.
type P2PParams struct {
	// Version is the p2p protocol version written into every frame.
	Version uint32

	MaxPacketSize     uint64
	HandshakeInterval time.Duration
	ConnectTimeout    time.Duration
	PingTimeout       time.Duration
	InvokeTimeout     time.Duration

	WhiteListSize    int
	GrayListSize     int
	PeersInHandshake int

	// BlockIDsSyncCount is the number of block ids sent in one chain entry.
	BlockIDsSyncCount int

	// BlocksSyncCount is the number of blocks requested at once.
	BlocksSyncCount int

	// OutboundConnections is the number of outgoing peers kept.
	OutboundConnections int
}

// Params defines a CryptoNote network by its parameters.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// NetworkID is the magic every handshake has to agree on.
	NetworkID [16]byte

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort uint16

	// Seeds are host:port pairs of well-known nodes.
	Seeds []string

	GenesisCoinbaseTxHex string
	GenesisNonce         uint32
	GenesisTimestamp     uint64

	// BlockMajorVersion is the major version of blocks at height zero.
	BlockMajorVersion uint8
	BlockMinorVersion uint8

	Consensus ConsensusParams
	P2P       P2PParams

	// Checkpoints ordered from oldest to newest.
	Checkpoints []Checkpoint

	// Hardforks ordered by activation height.
	Hardforks []Hardfork

	// PowHasher computes proof-of-work hashes.  Nil selects
	// pow.KeccakHasher.
	PowHasher pow.Hasher

	BlocksFileName       string
	BlockIndexesFileName string
	PeerStoreFileName    string
	MetaDBName           string
}

// Hasher returns the configured proof-of-work hasher.
func (p *Params) Hasher() pow.Hasher {
	if p.PowHasher == nil {
		return pow.KeccakHasher
	}
	return p.PowHasher
}
