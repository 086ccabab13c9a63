// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

// treeHashCount returns the largest power of two that is not greater than
// count-1.
func treeHashCount(count int) int {
	cnt := 1
	for cnt*2 <= count-1 {
		cnt *= 2
	}
	return cnt
}

// TreeHash computes the merkle root over hashes the way block hashing blobs
// require it: a single hash is its own root, two hashes are hashed together,
// larger sets are first folded to a power of two and then reduced pairwise.
//
// It panics on an empty input since every block carries a miner transaction.
func TreeHash(hashes []Hash) Hash {
	switch len(hashes) {
	case 0:
		panic("chainhash: tree hash of empty set")
	case 1:
		return hashes[0]
	case 2:
		return FastHash(hashes[0][:], hashes[1][:])
	}

	count := len(hashes)
	cnt := treeHashCount(count)
	ints := make([]Hash, cnt)
	copy(ints, hashes[:2*cnt-count])

	for i, j := 2*cnt-count, 2*cnt-count; j < cnt; i, j = i+2, j+1 {
		ints[j] = FastHash(hashes[i][:], hashes[i+1][:])
	}

	for cnt > 2 {
		cnt >>= 1
		for i, j := 0, 0; j < cnt; i, j = i+2, j+1 {
			ints[j] = FastHash(ints[i][:], ints[i+1][:])
		}
	}

	return FastHash(ints[0][:], ints[1][:])
}
