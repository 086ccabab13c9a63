// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	// peerStoreServerVersion and peerStoreManagerVersion head the peer
	// store file.
	peerStoreServerVersion  = 1
	peerStoreManagerVersion = 1

	// maxStoredPeers bounds each list read from the peer store.
	maxStoredPeers = 1 << 20
)

// PeerManager keeps the white list of nodes this node talked to and the
// gray list of nodes it only heard of.
type PeerManager struct {
	mtx          sync.RWMutex
	white        *PeerList
	gray         *PeerList
	allowLocalIP bool
	peerID       uint64
}

// NewPeerManager returns empty lists of the given capacities.
func NewPeerManager(whiteSize, graySize int, allowLocalIP bool) *PeerManager {
	return &PeerManager{
		white:        NewPeerList(whiteSize),
		gray:         NewPeerList(graySize),
		allowLocalIP: allowLocalIP,
	}
}

// PeerID returns the id this node announces.
func (pm *PeerManager) PeerID() uint64 {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	return pm.peerID
}

// SetPeerID sets the id this node announces.
func (pm *PeerManager) SetPeerID(id uint64) {
	pm.mtx.Lock()
	pm.peerID = id
	pm.mtx.Unlock()
}

// IsAllowed reports whether an address may be stored or dialed.  Loopback
// and unspecified addresses never are, private ranges only in local mode.
func (pm *PeerManager) IsAllowed(addr NetworkAddress) bool {
	ip := addr.NetIP()
	if ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	if !pm.allowLocalIP && isPrivateIP(ip[0], ip[1]) {
		return false
	}
	return true
}

func isPrivateIP(a, b byte) bool {
	switch {
	case a == 10:
		return true
	case a == 172 && b >= 16 && b <= 31:
		return true
	case a == 192 && b == 168:
		return true
	}
	return false
}

// Merge adds gossiped entries to the gray list.  Disallowed addresses and
// entries already in the white list are skipped.
func (pm *PeerManager) Merge(entries []PeerlistEntry) {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	for _, e := range entries {
		if !pm.IsAllowed(e.Address) {
			continue
		}
		if _, ok := pm.white.Find(e.Address); ok {
			continue
		}
		pm.gray.Append(e)
	}
}

// AppendWhite records a node that answered, moving it out of the gray list.
func (pm *PeerManager) AppendWhite(entry PeerlistEntry) bool {
	if !pm.IsAllowed(entry.Address) {
		return false
	}
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.white.Append(entry)
	pm.gray.Remove(entry.Address)
	return true
}

// AppendGray records a node heard of.
func (pm *PeerManager) AppendGray(entry PeerlistEntry) bool {
	if !pm.IsAllowed(entry.Address) {
		return false
	}
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.gray.Append(entry)
	return true
}

// RemoveGray forgets a gray node, typically after a failed dial.
func (pm *PeerManager) RemoveGray(addr NetworkAddress) {
	pm.mtx.Lock()
	pm.gray.Remove(addr)
	pm.mtx.Unlock()
}

// PeerlistHead returns up to n most recent white entries, the list shared
// with other nodes.
func (pm *PeerManager) PeerlistHead(n int) []PeerlistEntry {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	return pm.white.Head(n)
}

// White returns a copy of the white list.
func (pm *PeerManager) White() []PeerlistEntry {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	return pm.white.Entries()
}

// Gray returns a copy of the gray list.
func (pm *PeerManager) Gray() []PeerlistEntry {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	return pm.gray.Entries()
}

// Counts returns the sizes of the white and gray lists.
func (pm *PeerManager) Counts() (white, gray int) {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	return pm.white.Count(), pm.gray.Count()
}

// FixTimeDelta shifts the last seen times of a remote list to local time.
// The whole list is refused when any entry claims to be seen after the
// remote node's own clock.
func FixTimeDelta(entries []PeerlistEntry, localTime, remoteTime int64) ([]PeerlistEntry, error) {
	delta := localTime - remoteTime
	res := make([]PeerlistEntry, len(entries))
	for i, e := range entries {
		if e.LastSeen > remoteTime {
			return nil, fmt.Errorf("peer %s last seen at %d, after remote time %d",
				e.Address, e.LastSeen, remoteTime)
		}
		e.LastSeen += delta
		res[i] = e
	}
	return res, nil
}

// Save writes the peer store file.
func (pm *PeerManager) Save(path string) error {
	pm.mtx.RLock()
	var buf bytes.Buffer
	err := pm.serialize(&buf)
	pm.mtx.RUnlock()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "can't create peer store directory")
	}
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return errors.Wrapf(err, "can't write peer store %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, path), "can't replace peer store %s", path)
}

// Load reads the peer store file.  A missing file leaves the lists empty
// and returns no error.
func (pm *PeerManager) Load(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "can't open peer store %s", path)
	}
	defer f.Close()

	store, err := ReadPeerStore(bufio.NewReader(f))
	if err != nil {
		return errors.Wrapf(err, "can't read peer store %s", path)
	}

	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	for _, e := range store.White {
		pm.white.Append(e)
	}
	for _, e := range store.Gray {
		pm.gray.Append(e)
	}
	pm.peerID = store.PeerID
	return nil
}

// PeerStore is the content of a peer store file.
type PeerStore struct {
	ServerVersion  uint64
	ManagerVersion uint64
	White          []PeerlistEntry
	Gray           []PeerlistEntry
	PeerID         uint64
}

func (pm *PeerManager) serialize(w io.Writer) error {
	if err := wire.WriteVarInt(w, peerStoreServerVersion); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, peerStoreManagerVersion); err != nil {
		return err
	}
	if err := writeStoredList(w, pm.white.entries); err != nil {
		return err
	}
	if err := writeStoredList(w, pm.gray.entries); err != nil {
		return err
	}
	return wire.WriteVarInt(w, pm.peerID)
}

// ReadPeerStore decodes a peer store file.
func ReadPeerStore(r io.Reader) (*PeerStore, error) {
	var (
		s   PeerStore
		err error
	)
	if s.ServerVersion, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}
	if s.ManagerVersion, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}
	if s.ServerVersion != peerStoreServerVersion || s.ManagerVersion != peerStoreManagerVersion {
		return nil, fmt.Errorf("unsupported peer store version %d.%d", s.ServerVersion, s.ManagerVersion)
	}
	if s.White, err = readStoredList(r, "white list"); err != nil {
		return nil, err
	}
	if s.Gray, err = readStoredList(r, "gray list"); err != nil {
		return nil, err
	}
	if s.PeerID, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}
	return &s, nil
}

func writeStoredList(w io.Writer, entries []PeerlistEntry) error {
	if err := wire.WriteVarInt(w, uint64(len(entries))); err != nil {
		return err
	}
	var id [8]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint64(id[:], e.ID)
		if err := wire.WriteVarInt(w, uint64(e.Address.IP)); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, uint64(e.Address.Port)); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, id[:]); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, uint64(e.LastSeen)); err != nil {
			return err
		}
	}
	return nil
}

func readStoredList(r io.Reader, fieldName string) ([]PeerlistEntry, error) {
	count, err := wire.ReadCount(r, maxStoredPeers, fieldName)
	if err != nil {
		return nil, err
	}
	entries := make([]PeerlistEntry, 0, count)
	for i := 0; i < count; i++ {
		var e PeerlistEntry
		if e.Address.IP, err = wire.ReadVarIntUint32(r, "peer ip"); err != nil {
			return nil, err
		}
		if e.Address.Port, err = wire.ReadVarIntUint32(r, "peer port"); err != nil {
			return nil, err
		}
		id, err := wire.ReadVarBytes(r, 8, "peer id")
		if err != nil {
			return nil, err
		}
		var idBuf [8]byte
		copy(idBuf[:], id)
		e.ID = binary.LittleEndian.Uint64(idBuf[:])
		lastSeen, err := wire.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		e.LastSeen = int64(lastSeen)
		entries = append(entries, e)
	}
	return entries, nil
}
