// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"fmt"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/portable"
)

// Protocol commands.  All of them are notifications.
const (
	commandsPoolBase = 2000

	CmdNotifyNewBlock        uint32 = commandsPoolBase + 1
	CmdNotifyNewTransactions uint32 = commandsPoolBase + 2
	CmdRequestGetObjects     uint32 = commandsPoolBase + 3
	CmdResponseGetObjects    uint32 = commandsPoolBase + 4
	CmdRequestChain          uint32 = commandsPoolBase + 6
	CmdResponseChainEntry    uint32 = commandsPoolBase + 7
)

// CoreSyncData is the chain summary exchanged by handshakes and timed syncs.
type CoreSyncData struct {
	// CurrentHeight is the number of blocks the sender holds.
	CurrentHeight uint32
	TopID         chainhash.Hash
}

// Section encodes the summary.
func (d *CoreSyncData) Section() *portable.Section {
	return portable.NewSection().
		Set("current_height", d.CurrentHeight).
		Set("top_id", d.TopID.CloneBytes())
}

// FromSection decodes the summary.
func (d *CoreSyncData) FromSection(s *portable.Section) error {
	var err error
	if d.CurrentHeight, err = s.Uint32("current_height"); err != nil {
		return err
	}
	return hashField(s, "top_id", &d.TopID)
}

// BlockCompleteEntry is a serialized block with its serialized transactions.
type BlockCompleteEntry struct {
	Block []byte
	Txs   [][]byte
}

func (e *BlockCompleteEntry) section() *portable.Section {
	s := portable.NewSection().Set("block", e.Block)
	if len(e.Txs) > 0 {
		s.Set("txs", portable.NewBytesArray(e.Txs))
	}
	return s
}

func (e *BlockCompleteEntry) fromSection(s *portable.Section) error {
	var err error
	if e.Block, err = s.Bytes("block"); err != nil {
		return err
	}
	e.Txs, err = s.BytesArray("txs")
	return err
}

// NotifyNewBlock announces a block accepted on the main chain.  Hop counts
// the relays the announcement went through.
type NotifyNewBlock struct {
	Block                   BlockCompleteEntry
	CurrentBlockchainHeight uint32
	Hop                     uint32
}

func (m *NotifyNewBlock) Section() *portable.Section {
	return portable.NewSection().
		Set("b", m.Block.section()).
		Set("current_blockchain_height", m.CurrentBlockchainHeight).
		Set("hop", m.Hop)
}

func (m *NotifyNewBlock) FromSection(s *portable.Section) error {
	b, err := s.Section("b")
	if err != nil {
		return err
	}
	if err = m.Block.fromSection(b); err != nil {
		return err
	}
	if m.CurrentBlockchainHeight, err = s.Uint32("current_blockchain_height"); err != nil {
		return err
	}
	m.Hop, err = s.Uint32("hop")
	return err
}

// NotifyNewTransactions relays serialized pool transactions.
type NotifyNewTransactions struct {
	Txs [][]byte
}

func (m *NotifyNewTransactions) Section() *portable.Section {
	return portable.NewSection().Set("txs", portable.NewBytesArray(m.Txs))
}

func (m *NotifyNewTransactions) FromSection(s *portable.Section) error {
	var err error
	m.Txs, err = s.BytesArray("txs")
	return err
}

// RequestGetObjects asks for blocks and transactions by id.
type RequestGetObjects struct {
	Txs    []chainhash.Hash
	Blocks []chainhash.Hash
}

func (m *RequestGetObjects) Section() *portable.Section {
	return portable.NewSection().
		Set("txs", packHashes(m.Txs)).
		Set("blocks", packHashes(m.Blocks))
}

func (m *RequestGetObjects) FromSection(s *portable.Section) error {
	var err error
	if m.Txs, err = hashListField(s, "txs"); err != nil {
		return err
	}
	m.Blocks, err = hashListField(s, "blocks")
	return err
}

// ResponseGetObjects carries the requested objects and the ids the sender
// does not have.
type ResponseGetObjects struct {
	Txs                     [][]byte
	Blocks                  []BlockCompleteEntry
	MissedIDs               []chainhash.Hash
	CurrentBlockchainHeight uint32
}

func (m *ResponseGetObjects) Section() *portable.Section {
	blocks := make([]*portable.Section, len(m.Blocks))
	for i := range m.Blocks {
		blocks[i] = m.Blocks[i].section()
	}
	s := portable.NewSection()
	if len(m.Txs) > 0 {
		s.Set("txs", portable.NewBytesArray(m.Txs))
	}
	if len(blocks) > 0 {
		s.Set("blocks", portable.NewSectionArray(blocks))
	}
	return s.
		Set("missed_ids", packHashes(m.MissedIDs)).
		Set("current_blockchain_height", m.CurrentBlockchainHeight)
}

func (m *ResponseGetObjects) FromSection(s *portable.Section) error {
	var err error
	if m.Txs, err = s.BytesArray("txs"); err != nil {
		return err
	}
	blocks, err := s.SectionArray("blocks")
	if err != nil {
		return err
	}
	m.Blocks = make([]BlockCompleteEntry, len(blocks))
	for i, b := range blocks {
		if err = m.Blocks[i].fromSection(b); err != nil {
			return err
		}
	}
	if m.MissedIDs, err = hashListField(s, "missed_ids"); err != nil {
		return err
	}
	m.CurrentBlockchainHeight, err = s.Uint32("current_blockchain_height")
	return err
}

// RequestChain carries the sender's sparse chain.
type RequestChain struct {
	BlockIDs []chainhash.Hash
}

func (m *RequestChain) Section() *portable.Section {
	return portable.NewSection().Set("block_ids", packHashes(m.BlockIDs))
}

func (m *RequestChain) FromSection(s *portable.Section) error {
	var err error
	m.BlockIDs, err = hashListField(s, "block_ids")
	return err
}

// ResponseChainEntry lists main chain ids starting at the most recent block
// both sides have.
type ResponseChainEntry struct {
	StartHeight uint32
	TotalHeight uint32
	BlockIDs    []chainhash.Hash
}

func (m *ResponseChainEntry) Section() *portable.Section {
	return portable.NewSection().
		Set("start_height", m.StartHeight).
		Set("total_height", m.TotalHeight).
		Set("m_block_ids", packHashes(m.BlockIDs))
}

func (m *ResponseChainEntry) FromSection(s *portable.Section) error {
	var err error
	if m.StartHeight, err = s.Uint32("start_height"); err != nil {
		return err
	}
	if m.TotalHeight, err = s.Uint32("total_height"); err != nil {
		return err
	}
	m.BlockIDs, err = hashListField(s, "m_block_ids")
	return err
}

// Message is a payload that maps to a portable section.
type Message interface {
	Section() *portable.Section
	FromSection(s *portable.Section) error
}

// EncodePayload serializes a message as a portable storage blob.
func EncodePayload(m Message) ([]byte, error) {
	return portable.Encode(m.Section())
}

// DecodePayload parses a portable storage blob into m.
func DecodePayload(b []byte, m Message) error {
	s, err := portable.Decode(b)
	if err != nil {
		return err
	}
	return m.FromSection(s)
}

// packHashes concatenates ids into the blob peers exchange id lists as.
func packHashes(hashes []chainhash.Hash) []byte {
	b := make([]byte, 0, len(hashes)*chainhash.HashSize)
	for i := range hashes {
		b = append(b, hashes[i][:]...)
	}
	return b
}

// unpackHashes splits a blob of concatenated ids.
func unpackHashes(b []byte) ([]chainhash.Hash, error) {
	if len(b)%chainhash.HashSize != 0 {
		return nil, fmt.Errorf("hash list of %d bytes is not a multiple of %d",
			len(b), chainhash.HashSize)
	}
	hashes := make([]chainhash.Hash, len(b)/chainhash.HashSize)
	for i := range hashes {
		copy(hashes[i][:], b[i*chainhash.HashSize:])
	}
	return hashes, nil
}

// hashListField reads a packed id list, an absent field being empty.
func hashListField(s *portable.Section, name string) ([]chainhash.Hash, error) {
	if !s.Has(name) {
		return nil, nil
	}
	b, err := s.Bytes(name)
	if err != nil {
		return nil, err
	}
	return unpackHashes(b)
}

func hashField(s *portable.Section, name string, dst *chainhash.Hash) error {
	b, err := s.Bytes(name)
	if err != nil {
		return err
	}
	if err = dst.SetBytes(b); err != nil {
		return fmt.Errorf("field %q: %v", name, err)
	}
	return nil
}
