// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gitlab.com/jaxnet/cnoted/network/levin"
	"gitlab.com/jaxnet/cnoted/network/peer"
	"gitlab.com/jaxnet/cnoted/node/blockchain"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	// DefaultBlockIDsSyncCount is the number of ids one chain entry carries.
	DefaultBlockIDsSyncCount = 10000

	// maxNeededObjectsFactor bounds the block ids queued for download per
	// connection, in chain entries.
	maxNeededObjectsFactor = 2

	// DefaultBlocksSyncCount is the number of blocks requested at once.
	DefaultBlocksSyncCount = 200
)

// Chain is the part of the block chain the protocol handler drives.
type Chain interface {
	Height() uint32
	BestBlock() (chainhash.Hash, uint32)
	HaveBlock(hash chainhash.Hash) bool
	BuildSparseChain() []chainhash.Hash
	FindBlockchainSupplement(remote []chainhash.Hash, maxCount int) (uint32, uint32, []chainhash.Hash, error)
	BlocksByHashes(hashes []chainhash.Hash) ([]blockchain.BlockWithTxs, []chainhash.Hash, error)
	TransactionsByHashes(hashes []chainhash.Hash) ([]*wire.MsgTx, []chainhash.Hash, error)
	ProcessBlock(block *wire.MsgBlock, txs []*wire.MsgTx) chaindata.BlockVerificationContext
}

// TxPool accepts relayed transactions.
type TxPool interface {
	AddTx(tx *wire.MsgTx, flags mempool.AddFlags, ctx *chaindata.TxVerificationContext) bool
	Transactions() []*mempool.TxDesc
}

// PeerNotifier relays notifications to the connection set.  The server
// implements it.
type PeerNotifier interface {
	// RelayMessage notifies every connection in the normal state except
	// exclude.
	RelayMessage(command uint32, payload []byte, exclude *peer.Peer)
}

// Config holds the protocol handler dependencies.
type Config struct {
	Chain        Chain
	TxPool       TxPool
	PeerNotifier PeerNotifier

	BlockIDsSyncCount int
	BlocksSyncCount   int
}

// SyncManager is the CryptoNote protocol handler.  It answers chain and
// object requests, downloads what connections announce and relays new
// blocks and transactions.  Every message is processed under one mutex, so
// connection contexts are only touched by one goroutine at a time.
type SyncManager struct {
	mtx sync.Mutex
	cfg Config

	// peers are the connections past their handshake.
	peers map[*peer.Peer]struct{}

	// The following variables must only be used atomically.
	observedHeight uint32
	synchronized   int32
	peersCount     int32
}

// New returns a protocol handler.
func New(cfg *Config) *SyncManager {
	c := *cfg
	if c.BlockIDsSyncCount <= 0 {
		c.BlockIDsSyncCount = DefaultBlockIDsSyncCount
	}
	if c.BlocksSyncCount <= 0 {
		c.BlocksSyncCount = DefaultBlocksSyncCount
	}
	return &SyncManager{
		cfg:            c,
		peers:          make(map[*peer.Peer]struct{}),
		observedHeight: c.Chain.Height(),
	}
}

// ObservedHeight returns the highest block count any connection reported,
// or the local one if higher.
//
// This function is safe for concurrent access.
func (sm *SyncManager) ObservedHeight() uint32 {
	return atomic.LoadUint32(&sm.observedHeight)
}

// IsSynchronized reports whether some connection finished a sync round.
//
// This function is safe for concurrent access.
func (sm *SyncManager) IsSynchronized() bool {
	return atomic.LoadInt32(&sm.synchronized) != 0
}

// PeersCount returns the number of connections that completed a handshake.
func (sm *SyncManager) PeersCount() int {
	return int(atomic.LoadInt32(&sm.peersCount))
}

// GetPayloadSyncData returns the local chain summary.
func (sm *SyncManager) GetPayloadSyncData() CoreSyncData {
	top, _ := sm.cfg.Chain.BestBlock()
	return CoreSyncData{CurrentHeight: sm.cfg.Chain.Height(), TopID: top}
}

// ProcessPayloadSyncData updates the connection from a remote chain summary.
// isInitial tells whether the summary came with the handshake.
func (sm *SyncManager) ProcessPayloadSyncData(p *peer.Peer, data *CoreSyncData, isInitial bool) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	state := p.State()
	if state == peer.StateBeforeHandshake && !isInitial {
		return
	}

	switch {
	case state == peer.StateSynchronizing:
	case sm.cfg.Chain.HaveBlock(data.TopID):
		if isInitial {
			p.SetState(peer.StatePoolSyncRequired)
			p.RequestCallback()
		} else {
			p.SetState(peer.StateNormal)
		}
	default:
		local := sm.cfg.Chain.Height()
		diff := int64(data.CurrentHeight) - int64(local)
		log.Info().Str("peer", p.String()).Uint32("remote_height", data.CurrentHeight).
			Uint32("local_height", local).Int64("behind", diff).
			Msg("peer chain differs, synchronization started")
		p.SetState(peer.StateSyncRequired)
		p.RequestCallback()
	}

	ctx := p.Context()
	sm.updateObservedHeight(data.CurrentHeight, ctx)
	ctx.RemoteHeight = data.CurrentHeight

	if isInitial {
		sm.peers[p] = struct{}{}
		atomic.StoreInt32(&sm.peersCount, int32(len(sm.peers)))
	}
}

// OnCallback starts whatever ProcessPayloadSyncData scheduled on the
// connection.
func (sm *SyncManager) OnCallback(p *peer.Peer) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	switch p.State() {
	case peer.StateSyncRequired:
		p.SetState(peer.StateSynchronizing)
		sm.requestChain(p)

	case peer.StatePoolSyncRequired:
		p.SetState(peer.StateNormal)
		sm.sendPoolTransactions(p)
	}
}

// OnDisconnect forgets the connection.  The observed height is rescanned
// when the connection was the height leader.
func (sm *SyncManager) OnDisconnect(p *peer.Peer) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if _, ok := sm.peers[p]; !ok {
		return
	}
	delete(sm.peers, p)
	atomic.StoreInt32(&sm.peersCount, int32(len(sm.peers)))

	if p.Context().RemoteHeight == sm.ObservedHeight() {
		sm.recalculateObservedHeight()
	}
}

// HandleMessage dispatches a protocol notification.  A returned error means
// the connection must be dropped.
func (sm *SyncManager) HandleMessage(p *peer.Peer, msg *levin.Message) error {
	switch msg.Header.Command {
	case CmdNotifyNewBlock:
		var m NotifyNewBlock
		if err := DecodePayload(msg.Payload, &m); err != nil {
			return err
		}
		return sm.handleNotifyNewBlock(p, &m)

	case CmdNotifyNewTransactions:
		var m NotifyNewTransactions
		if err := DecodePayload(msg.Payload, &m); err != nil {
			return err
		}
		return sm.handleNotifyNewTransactions(p, &m)

	case CmdRequestGetObjects:
		var m RequestGetObjects
		if err := DecodePayload(msg.Payload, &m); err != nil {
			return err
		}
		return sm.handleRequestGetObjects(p, &m)

	case CmdResponseGetObjects:
		var m ResponseGetObjects
		if err := DecodePayload(msg.Payload, &m); err != nil {
			return err
		}
		return sm.handleResponseGetObjects(p, &m)

	case CmdRequestChain:
		var m RequestChain
		if err := DecodePayload(msg.Payload, &m); err != nil {
			return err
		}
		return sm.handleRequestChain(p, &m)

	case CmdResponseChainEntry:
		var m ResponseChainEntry
		if err := DecodePayload(msg.Payload, &m); err != nil {
			return err
		}
		return sm.handleResponseChainEntry(p, &m)
	}

	return fmt.Errorf("unknown command %d", msg.Header.Command)
}

// IsProtocolCommand reports whether HandleMessage handles the command.
func IsProtocolCommand(command uint32) bool {
	switch command {
	case CmdNotifyNewBlock, CmdNotifyNewTransactions, CmdRequestGetObjects,
		CmdResponseGetObjects, CmdRequestChain, CmdResponseChainEntry:
		return true
	}
	return false
}

func (sm *SyncManager) handleNotifyNewBlock(p *peer.Peer, m *NotifyNewBlock) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if p.State() != peer.StateNormal {
		return nil
	}

	ctx := p.Context()
	sm.updateObservedHeight(m.CurrentBlockchainHeight, ctx)
	ctx.RemoteHeight = m.CurrentBlockchainHeight

	block, txs, err := parseBlockEntry(&m.Block)
	if err != nil {
		return err
	}

	hash := block.BlockHash()
	bvc := sm.cfg.Chain.ProcessBlock(block, txs)
	if bvc.Failed() {
		return fmt.Errorf("announced block %s failed verification: %v", hash, bvc.Err)
	}

	switch {
	case bvc.Flags.Has(chaindata.BVAddedToMainChain):
		m.Hop++
		payload, err := EncodePayload(m)
		if err != nil {
			return err
		}
		sm.cfg.PeerNotifier.RelayMessage(CmdNotifyNewBlock, payload, p)

	case bvc.Flags.Has(chaindata.BVMarkedAsOrphaned):
		log.Debug().Str("peer", p.String()).Stringer("block", hash).
			Msg("announced block is an orphan, requesting chain")
		p.SetState(peer.StateSynchronizing)
		sm.requestChain(p)
	}
	return nil
}

func (sm *SyncManager) handleNotifyNewTransactions(p *peer.Peer, m *NotifyNewTransactions) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if p.State() != peer.StateNormal {
		return nil
	}

	relay := make([][]byte, 0, len(m.Txs))
	for _, blob := range m.Txs {
		tx, err := wire.NewTxFromBytes(blob)
		if err != nil {
			return err
		}
		var tvc chaindata.TxVerificationContext
		sm.cfg.TxPool.AddTx(tx, 0, &tvc)
		if tvc.Failed {
			log.Debug().Str("peer", p.String()).Stringer("tx", tx.TxHash()).Err(tvc.Err).
				Msg("relayed transaction rejected")
			continue
		}
		if tvc.ShouldBeRelayed {
			relay = append(relay, blob)
		}
	}

	if len(relay) == 0 {
		return nil
	}
	m.Txs = relay
	payload, err := EncodePayload(m)
	if err != nil {
		return err
	}
	sm.cfg.PeerNotifier.RelayMessage(CmdNotifyNewTransactions, payload, p)
	return nil
}

func (sm *SyncManager) handleRequestGetObjects(p *peer.Peer, m *RequestGetObjects) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	blocks, missedBlocks, err := sm.cfg.Chain.BlocksByHashes(m.Blocks)
	if err != nil {
		return err
	}
	txs, missedTxs, err := sm.cfg.Chain.TransactionsByHashes(m.Txs)
	if err != nil {
		return err
	}

	resp := ResponseGetObjects{
		Blocks:                  make([]BlockCompleteEntry, 0, len(blocks)),
		MissedIDs:               append(missedBlocks, missedTxs...),
		CurrentBlockchainHeight: sm.cfg.Chain.Height(),
	}
	for _, b := range blocks {
		entry, err := newBlockEntry(b.Block, b.Txs)
		if err != nil {
			return err
		}
		resp.Blocks = append(resp.Blocks, entry)
	}
	for _, tx := range txs {
		blob, err := tx.Bytes()
		if err != nil {
			return err
		}
		resp.Txs = append(resp.Txs, blob)
	}

	log.Trace().Str("peer", p.String()).Int("blocks", len(resp.Blocks)).
		Int("txs", len(resp.Txs)).Int("missed", len(resp.MissedIDs)).Msg("sending objects")
	return sm.notify(p, CmdResponseGetObjects, &resp)
}

func (sm *SyncManager) handleResponseGetObjects(p *peer.Peer, m *ResponseGetObjects) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	ctx := p.Context()
	if ctx.LastResponseHeight > m.CurrentBlockchainHeight {
		return fmt.Errorf("objects response reports height %d below the last chain entry %d",
			m.CurrentBlockchainHeight, ctx.LastResponseHeight)
	}
	sm.updateObservedHeight(m.CurrentBlockchainHeight, ctx)
	ctx.RemoteHeight = m.CurrentBlockchainHeight

	type parsedEntry struct {
		block *wire.MsgBlock
		txs   []*wire.MsgTx
	}
	parsed := make([]parsedEntry, 0, len(m.Blocks))
	for i := range m.Blocks {
		block, txs, err := parseBlockEntry(&m.Blocks[i])
		if err != nil {
			return err
		}
		hash := block.BlockHash()
		if _, ok := ctx.RequestedObjects[hash]; !ok {
			return fmt.Errorf("got block %s that was not requested", hash)
		}
		delete(ctx.RequestedObjects, hash)
		parsed = append(parsed, parsedEntry{block: block, txs: txs})
	}

	if len(ctx.RequestedObjects) != 0 {
		return fmt.Errorf("objects response misses %d requested blocks", len(ctx.RequestedObjects))
	}

	for _, e := range parsed {
		bvc := sm.cfg.Chain.ProcessBlock(e.block, e.txs)
		if bvc.Failed() {
			return fmt.Errorf("downloaded block %s failed verification: %v", e.block.BlockHash(), bvc.Err)
		}
		if bvc.Flags.Has(chaindata.BVMarkedAsOrphaned) {
			return fmt.Errorf("downloaded block %s is an orphan", e.block.BlockHash())
		}
	}

	if len(parsed) > 0 {
		_, top := sm.cfg.Chain.BestBlock()
		log.Info().Str("peer", p.String()).Int("blocks", len(parsed)).Uint32("height", top).
			Uint32("remote_height", ctx.RemoteHeight).Msg("processed downloaded blocks")
	}

	sm.requestMissingObjects(p, true)
	return nil
}

func (sm *SyncManager) handleRequestChain(p *peer.Peer, m *RequestChain) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	start, total, ids, err := sm.cfg.Chain.FindBlockchainSupplement(m.BlockIDs, sm.cfg.BlockIDsSyncCount)
	if err != nil {
		return err
	}

	log.Trace().Str("peer", p.String()).Uint32("start", start).Uint32("total", total).
		Int("ids", len(ids)).Msg("sending chain entry")
	return sm.notify(p, CmdResponseChainEntry, &ResponseChainEntry{
		StartHeight: start,
		TotalHeight: total,
		BlockIDs:    ids,
	})
}

func (sm *SyncManager) handleResponseChainEntry(p *peer.Peer, m *ResponseChainEntry) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if len(m.BlockIDs) == 0 {
		return fmt.Errorf("chain entry has no block ids")
	}
	if !sm.cfg.Chain.HaveBlock(m.BlockIDs[0]) {
		return fmt.Errorf("chain entry starts with unknown block %s", m.BlockIDs[0])
	}

	if len(m.BlockIDs) > sm.cfg.BlockIDsSyncCount {
		return fmt.Errorf("chain entry carries %d ids, at most %d allowed",
			len(m.BlockIDs), sm.cfg.BlockIDsSyncCount)
	}

	ctx := p.Context()
	if len(ctx.NeededObjects)+len(m.BlockIDs) > maxNeededObjectsFactor*sm.cfg.BlockIDsSyncCount {
		return fmt.Errorf("%d block ids already queued, chain entry adds %d",
			len(ctx.NeededObjects), len(m.BlockIDs))
	}
	if ctx.HaveResponse && m.StartHeight > ctx.LastResponseHeight {
		return fmt.Errorf("chain entry starts at %d past the last response height %d",
			m.StartHeight, ctx.LastResponseHeight)
	}

	last := uint64(m.StartHeight) + uint64(len(m.BlockIDs)) - 1
	if last >= uint64(m.TotalHeight) {
		return fmt.Errorf("chain entry ends at %d with total height %d", last, m.TotalHeight)
	}

	sm.updateObservedHeight(m.TotalHeight, ctx)
	ctx.RemoteHeight = m.TotalHeight
	ctx.LastResponseHeight = uint32(last)
	ctx.HaveResponse = true

	for _, id := range m.BlockIDs {
		if !sm.cfg.Chain.HaveBlock(id) {
			ctx.NeededObjects = append(ctx.NeededObjects, id)
		}
	}

	sm.requestMissingObjects(p, false)
	return nil
}

// requestMissingObjects asks for the next batch of needed blocks.  When none
// are left another chain entry is requested while the remote chain is ahead
// of the last response, otherwise the connection is synchronized.
//
// This function MUST be called with the manager lock held.
func (sm *SyncManager) requestMissingObjects(p *peer.Peer, checkHaveBlocks bool) {
	ctx := p.Context()

	if len(ctx.NeededObjects) > 0 {
		req := RequestGetObjects{}
		var i int
		for i = 0; i < len(ctx.NeededObjects) && len(req.Blocks) < sm.cfg.BlocksSyncCount; i++ {
			id := ctx.NeededObjects[i]
			if checkHaveBlocks && sm.cfg.Chain.HaveBlock(id) {
				continue
			}
			req.Blocks = append(req.Blocks, id)
			ctx.RequestedObjects[id] = struct{}{}
		}
		ctx.NeededObjects = ctx.NeededObjects[i:]

		if len(req.Blocks) > 0 {
			log.Debug().Str("peer", p.String()).Int("blocks", len(req.Blocks)).
				Int("left", len(ctx.NeededObjects)).Msg("requesting objects")
			if err := sm.notify(p, CmdRequestGetObjects, &req); err != nil {
				log.Error().Err(err).Msg("can't request objects")
				p.Disconnect()
			}
			return
		}
	}

	if ctx.RemoteHeight > 0 && ctx.LastResponseHeight < ctx.RemoteHeight-1 {
		sm.requestChain(p)
		return
	}

	if len(ctx.RequestedObjects) != 0 {
		log.Warn().Str("peer", p.String()).Int("requested", len(ctx.RequestedObjects)).
			Msg("synchronization finished with objects still requested")
	}
	p.SetState(peer.StateNormal)
	log.Debug().Str("peer", p.String()).Msg("synchronization complete")
	sm.onConnectionSynchronized()
}

// requestChain sends the local sparse chain.
//
// This function MUST be called with the manager lock held.
func (sm *SyncManager) requestChain(p *peer.Peer) {
	req := RequestChain{BlockIDs: sm.cfg.Chain.BuildSparseChain()}
	log.Debug().Str("peer", p.String()).Int("ids", len(req.BlockIDs)).Msg("requesting chain")
	if err := sm.notify(p, CmdRequestChain, &req); err != nil {
		log.Error().Err(err).Msg("can't request chain")
		p.Disconnect()
	}
}

// sendPoolTransactions shares the local pool with a fresh connection.
//
// This function MUST be called with the manager lock held.
func (sm *SyncManager) sendPoolTransactions(p *peer.Peer) {
	descs := sm.cfg.TxPool.Transactions()
	if len(descs) == 0 {
		return
	}
	m := NotifyNewTransactions{Txs: make([][]byte, 0, len(descs))}
	for _, desc := range descs {
		blob, err := desc.Tx.Bytes()
		if err != nil {
			continue
		}
		m.Txs = append(m.Txs, blob)
	}
	if err := sm.notify(p, CmdNotifyNewTransactions, &m); err != nil {
		log.Error().Err(err).Msg("can't send pool transactions")
	}
}

func (sm *SyncManager) onConnectionSynchronized() {
	if atomic.CompareAndSwapInt32(&sm.synchronized, 0, 1) {
		_, top := sm.cfg.Chain.BestBlock()
		log.Info().Uint32("height", top).Msg("synchronized with the network")
	}
}

// updateObservedHeight applies a height a connection reported before it is
// recorded in ctx.
//
// This function MUST be called with the manager lock held.
func (sm *SyncManager) updateObservedHeight(peerHeight uint32, ctx *peer.ConnectionContext) {
	observed := sm.ObservedHeight()
	prev := ctx.RemoteHeight

	switch {
	case peerHeight > prev:
		if peerHeight > observed {
			atomic.StoreUint32(&sm.observedHeight, peerHeight)
			log.Debug().Uint32("height", peerHeight).Msg("observed height updated")
		}

	case peerHeight != prev && prev == observed:
		ctx.RemoteHeight = peerHeight
		sm.recalculateObservedHeight()
	}
}

// recalculateObservedHeight rescans every connection past its handshake.
//
// This function MUST be called with the manager lock held.
func (sm *SyncManager) recalculateObservedHeight() {
	height := sm.cfg.Chain.Height()
	for p := range sm.peers {
		if h := p.Context().RemoteHeight; h > height {
			height = h
		}
	}
	atomic.StoreUint32(&sm.observedHeight, height)
	log.Debug().Uint32("height", height).Msg("observed height recalculated")
}

// notify encodes and queues a protocol notification.
func (sm *SyncManager) notify(p *peer.Peer, command uint32, m Message) error {
	payload, err := EncodePayload(m)
	if err != nil {
		return err
	}
	p.Notify(command, payload)
	return nil
}

// RelayBlock announces a block accepted locally to every synchronized
// connection.
func (sm *SyncManager) RelayBlock(block *wire.MsgBlock, txs []*wire.MsgTx) error {
	entry, err := newBlockEntry(block, txs)
	if err != nil {
		return err
	}
	payload, err := EncodePayload(&NotifyNewBlock{
		Block:                   entry,
		CurrentBlockchainHeight: sm.cfg.Chain.Height(),
	})
	if err != nil {
		return err
	}
	sm.cfg.PeerNotifier.RelayMessage(CmdNotifyNewBlock, payload, nil)
	return nil
}

// RelayTransactions announces pool transactions to every synchronized
// connection.
func (sm *SyncManager) RelayTransactions(txs []*wire.MsgTx) error {
	m := NotifyNewTransactions{Txs: make([][]byte, 0, len(txs))}
	for _, tx := range txs {
		blob, err := tx.Bytes()
		if err != nil {
			return err
		}
		m.Txs = append(m.Txs, blob)
	}
	payload, err := EncodePayload(&m)
	if err != nil {
		return err
	}
	sm.cfg.PeerNotifier.RelayMessage(CmdNotifyNewTransactions, payload, nil)
	return nil
}

func newBlockEntry(block *wire.MsgBlock, txs []*wire.MsgTx) (BlockCompleteEntry, error) {
	var entry BlockCompleteEntry
	var err error
	if entry.Block, err = block.Bytes(); err != nil {
		return entry, err
	}
	for _, tx := range txs {
		blob, err := tx.Bytes()
		if err != nil {
			return entry, err
		}
		entry.Txs = append(entry.Txs, blob)
	}
	return entry, nil
}

func parseBlockEntry(entry *BlockCompleteEntry) (*wire.MsgBlock, []*wire.MsgTx, error) {
	block, err := wire.NewBlockFromBytes(entry.Block)
	if err != nil {
		return nil, nil, err
	}
	if len(entry.Txs) != len(block.TxHashes) {
		return nil, nil, fmt.Errorf("block %s lists %d transactions, entry carries %d",
			block.BlockHash(), len(block.TxHashes), len(entry.Txs))
	}
	txs := make([]*wire.MsgTx, len(entry.Txs))
	for i, blob := range entry.Txs {
		if txs[i], err = wire.NewTxFromBytes(blob); err != nil {
			return nil, nil, err
		}
	}
	return block, txs, nil
}
