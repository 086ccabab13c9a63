// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		addr    string
		public  bool
		private bool
	}{
		{"8.8.8.8:1", true, true},
		{"127.0.0.1:1", false, false},
		{"0.0.0.0:1", false, false},
		{"10.1.2.3:1", false, true},
		{"172.16.0.1:1", false, true},
		{"172.32.0.1:1", true, true},
		{"192.168.1.1:1", false, true},
	}

	public := NewPeerManager(10, 10, false)
	local := NewPeerManager(10, 10, true)
	for _, test := range tests {
		addr := testAddress(t, test.addr)
		assert.Equal(t, test.public, public.IsAllowed(addr), test.addr)
		assert.Equal(t, test.private, local.IsAllowed(addr), test.addr)
	}
}

func TestPeerManagerLists(t *testing.T) {
	pm := NewPeerManager(10, 10, false)
	a := PeerlistEntry{Address: testAddress(t, "1.1.1.1:1"), ID: 1, LastSeen: 100}
	b := PeerlistEntry{Address: testAddress(t, "2.2.2.2:1"), ID: 2, LastSeen: 90}
	local := PeerlistEntry{Address: testAddress(t, "127.0.0.1:1"), ID: 3, LastSeen: 80}

	pm.Merge([]PeerlistEntry{a, b, local})
	white, gray := pm.Counts()
	assert.Equal(t, 0, white)
	assert.Equal(t, 2, gray)

	// A node that answered leaves the gray list.
	require.True(t, pm.AppendWhite(a))
	assert.Equal(t, []PeerlistEntry{a}, pm.White())
	assert.Equal(t, []PeerlistEntry{b}, pm.Gray())

	// White entries are not merged back into the gray list.
	pm.Merge([]PeerlistEntry{a})
	assert.Equal(t, []PeerlistEntry{b}, pm.Gray())

	assert.False(t, pm.AppendWhite(local))
	assert.Equal(t, []PeerlistEntry{a}, pm.PeerlistHead(5))

	pm.RemoveGray(b.Address)
	_, gray = pm.Counts()
	assert.Equal(t, 0, gray)
}

func TestFixTimeDelta(t *testing.T) {
	entries := []PeerlistEntry{
		{Address: testAddress(t, "1.1.1.1:1"), LastSeen: 900},
		{Address: testAddress(t, "2.2.2.2:1"), LastSeen: 1000},
	}

	fixed, err := FixTimeDelta(entries, 1100, 1000)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, fixed[0].LastSeen)
	assert.EqualValues(t, 1100, fixed[1].LastSeen)
	assert.EqualValues(t, 900, entries[0].LastSeen)

	// One entry from the future refuses the whole batch.
	entries = append(entries, PeerlistEntry{Address: testAddress(t, "3.3.3.3:1"), LastSeen: 1001})
	fixed, err = FixTimeDelta(entries, 1100, 1000)
	assert.Error(t, err)
	assert.Nil(t, fixed)
}

func TestPeerStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers", "p2pstate.bin")

	pm := NewPeerManager(10, 10, false)
	pm.SetPeerID(0xdeadbeef12345678)
	white := PeerlistEntry{Address: testAddress(t, "1.1.1.1:18080"), ID: 0xfffffffffffffff1, LastSeen: 1600000000}
	gray := PeerlistEntry{Address: testAddress(t, "2.2.2.2:18080"), ID: 7, LastSeen: 1500000000}
	require.True(t, pm.AppendWhite(white))
	require.True(t, pm.AppendGray(gray))
	require.NoError(t, pm.Save(path))

	loaded := NewPeerManager(10, 10, false)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, pm.PeerID(), loaded.PeerID())
	assert.Equal(t, []PeerlistEntry{white}, loaded.White())
	assert.Equal(t, []PeerlistEntry{gray}, loaded.Gray())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	store, err := ReadPeerStore(f)
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.ServerVersion)
	assert.EqualValues(t, 1, store.ManagerVersion)
	assert.Equal(t, []PeerlistEntry{gray}, store.Gray)

	// A missing file is an empty store.
	empty := NewPeerManager(10, 10, false)
	require.NoError(t, empty.Load(filepath.Join(t.TempDir(), "missing.bin")))
	assert.Zero(t, empty.PeerID())

	require.NoError(t, os.WriteFile(path, []byte{2, 1}, 0600))
	assert.Error(t, loaded.Load(path))
}
