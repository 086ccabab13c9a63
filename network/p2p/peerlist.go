// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strconv"
)

// NetworkAddress is an IPv4 endpoint.  IP keeps the first octet in the low
// byte, the layout peers exchange it in.
type NetworkAddress struct {
	IP   uint32
	Port uint32
}

// NewNetworkAddress builds an address from an IPv4 address and a port.  It
// returns false for other address families.
func NewNetworkAddress(ip net.IP, port uint32) (NetworkAddress, bool) {
	ip4 := ip.To4()
	if ip4 == nil {
		return NetworkAddress{}, false
	}
	return NetworkAddress{IP: binary.LittleEndian.Uint32(ip4), Port: port}, true
}

// ParseNetworkAddress parses a host:port string with an IPv4 host.
func ParseNetworkAddress(s string) (NetworkAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return NetworkAddress{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return NetworkAddress{}, fmt.Errorf("bad port in %q: %v", s, err)
	}
	addr, ok := NewNetworkAddress(net.ParseIP(host), uint32(port))
	if !ok {
		return NetworkAddress{}, fmt.Errorf("%q is not an IPv4 address", host)
	}
	return addr, nil
}

// NetIP returns the IP as a net.IP.
func (a NetworkAddress) NetIP() net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.LittleEndian.PutUint32(ip, a.IP)
	return ip
}

// String returns the address in host:port form.
func (a NetworkAddress) String() string {
	return net.JoinHostPort(a.NetIP().String(), strconv.FormatUint(uint64(a.Port), 10))
}

// PeerlistEntry is a known node with the last time it was seen.
type PeerlistEntry struct {
	Address  NetworkAddress
	ID       uint64
	LastSeen int64
}

// PeerList is a capacity bounded list of entries ordered from the most
// recently seen.  It is not safe for concurrent access.
type PeerList struct {
	entries []PeerlistEntry
	maxSize int
}

// NewPeerList returns an empty list keeping at most maxSize entries.
func NewPeerList(maxSize int) *PeerList {
	return &PeerList{maxSize: maxSize}
}

// Count returns the number of entries.
func (pl *PeerList) Count() int {
	return len(pl.entries)
}

// Entries returns a copy of the entries, most recent first.
func (pl *PeerList) Entries() []PeerlistEntry {
	res := make([]PeerlistEntry, len(pl.entries))
	copy(res, pl.entries)
	return res
}

// Head returns up to n most recent entries.
func (pl *PeerList) Head(n int) []PeerlistEntry {
	if n > len(pl.entries) {
		n = len(pl.entries)
	}
	res := make([]PeerlistEntry, n)
	copy(res, pl.entries[:n])
	return res
}

// Get returns the entry at index i.
func (pl *PeerList) Get(i int) (PeerlistEntry, bool) {
	if i < 0 || i >= len(pl.entries) {
		return PeerlistEntry{}, false
	}
	return pl.entries[i], true
}

// Find returns the index of the entry with addr.
func (pl *PeerList) Find(addr NetworkAddress) (int, bool) {
	for i := range pl.entries {
		if pl.entries[i].Address == addr {
			return i, true
		}
	}
	return 0, false
}

// Append adds the entry or refreshes the one with the same address, then
// drops the oldest entries over capacity.
func (pl *PeerList) Append(entry PeerlistEntry) {
	if i, ok := pl.Find(entry.Address); ok {
		pl.entries[i] = entry
	} else {
		pl.entries = append(pl.entries, entry)
	}
	pl.trim()
}

// Remove deletes the entry with addr.
func (pl *PeerList) Remove(addr NetworkAddress) bool {
	i, ok := pl.Find(addr)
	if !ok {
		return false
	}
	pl.entries = append(pl.entries[:i], pl.entries[i+1:]...)
	return true
}

func (pl *PeerList) trim() {
	sort.SliceStable(pl.entries, func(i, j int) bool {
		return pl.entries[i].LastSeen > pl.entries[j].LastSeen
	})
	if len(pl.entries) > pl.maxSize {
		pl.entries = pl.entries[:pl.maxSize]
	}
}

// peerlistEntrySize is the packed size of one entry on the wire.
const peerlistEntrySize = 24

// packPeerlist serializes entries the way handshakes carry them: ip, port,
// id and last seen time, little-endian.
func packPeerlist(entries []PeerlistEntry) []byte {
	b := make([]byte, len(entries)*peerlistEntrySize)
	for i, e := range entries {
		off := i * peerlistEntrySize
		binary.LittleEndian.PutUint32(b[off:], e.Address.IP)
		binary.LittleEndian.PutUint32(b[off+4:], e.Address.Port)
		binary.LittleEndian.PutUint64(b[off+8:], e.ID)
		binary.LittleEndian.PutUint64(b[off+16:], uint64(e.LastSeen))
	}
	return b
}

// unpackPeerlist parses a packed peer list.
func unpackPeerlist(b []byte) ([]PeerlistEntry, error) {
	if len(b)%peerlistEntrySize != 0 {
		return nil, fmt.Errorf("peer list of %d bytes is not a multiple of %d",
			len(b), peerlistEntrySize)
	}
	entries := make([]PeerlistEntry, len(b)/peerlistEntrySize)
	for i := range entries {
		off := i * peerlistEntrySize
		entries[i] = PeerlistEntry{
			Address: NetworkAddress{
				IP:   binary.LittleEndian.Uint32(b[off:]),
				Port: binary.LittleEndian.Uint32(b[off+4:]),
			},
			ID:       binary.LittleEndian.Uint64(b[off+8:]),
			LastSeen: int64(binary.LittleEndian.Uint64(b[off+16:])),
		}
	}
	return entries, nil
}
