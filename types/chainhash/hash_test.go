// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}

	for _, test := range tests {
		got := HashH([]byte(test.in))
		assert.Equal(t, test.want, got.String(), "input %q", test.in)
		assert.Equal(t, got, FastHash([]byte(test.in)))
	}

	// split input hashes the same as the joined one
	assert.Equal(t, HashH([]byte("abc")), FastHash([]byte("a"), []byte("bc")))
}

func TestHashStringRoundTrip(t *testing.T) {
	h := HashH([]byte("abc"))
	parsed, err := NewHashFromStr(h.String())
	require.NoError(t, err)
	assert.True(t, parsed.IsEqual(&h))

	_, err = NewHashFromStr("abcd")
	assert.Error(t, err)
	_, err = NewHashFromStr(h.String() + "00")
	assert.Equal(t, ErrHashStrSize, err)
	_, err = NewHashFromStr("zz" + h.String()[2:])
	assert.Error(t, err)

	assert.True(t, ZeroHash.IsZero())
	assert.False(t, h.IsZero())
}

func TestTreeHash(t *testing.T) {
	leaves := make([]Hash, 6)
	for i := range leaves {
		leaves[i] = HashH([]byte(fmt.Sprintf("leaf_%d", i)))
	}

	want := []string{
		"e2c27d94777f70170a1c2184f07f0ceedfe749e0fabf9af4ee9414fa59997605",
		"9a2d4c2c6c6bd26e01a370d97dcd7627d95b55f25356cf20d44d8ef9f5cb5e1f",
		"ea7439383ec05657cf1062937c4b179a76d985292a4c9ccfad298b6d61900aea",
		"9e26c72cff48ff847cebb876cdd103dfdbe56848033f0a3a142df371a6496385",
		"69d4eaae1fa81e2394d5b01a67f232ba5fc0efc630ab250ae0dd968bb558f687",
		"e327fb484ab3e03cdc2b02f34a63ea2d33c501f805e8dcea8219af787628ace3",
	}

	for n := 1; n <= len(leaves); n++ {
		root := TreeHash(leaves[:n])
		assert.Equal(t, want[n-1], root.String(), "leaves %d", n)
	}

	assert.Panics(t, func() { TreeHash(nil) })
}
