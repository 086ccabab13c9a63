// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
	"sort"
	"sync"

	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

// Checkpoints is the table of height to hash pins.  Pins are never removed or
// replaced once added.
type Checkpoints struct {
	mtx     sync.RWMutex
	points  map[uint32]chainhash.Hash
	heights []uint32
}

// NewCheckpoints returns a table holding the given checkpoints.
func NewCheckpoints(list []chaincfg.Checkpoint) (*Checkpoints, error) {
	c := &Checkpoints{points: make(map[uint32]chainhash.Hash)}
	for _, cp := range list {
		if err := c.Add(cp.Height, cp.Hash); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add pins height to the hash given in hex.
func (c *Checkpoints) Add(height uint32, hashHex string) error {
	hash, err := chainhash.NewHashFromStr(hashHex)
	if err != nil {
		return fmt.Errorf("checkpoint at height %d: %v", height, err)
	}
	return c.AddHash(height, *hash)
}

// AddHash pins height to hash.
func (c *Checkpoints) AddHash(height uint32, hash chainhash.Hash) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if _, ok := c.points[height]; ok {
		return fmt.Errorf("checkpoint at height %d already exists", height)
	}
	c.points[height] = hash

	i := sort.Search(len(c.heights), func(i int) bool { return c.heights[i] > height })
	c.heights = append(c.heights, 0)
	copy(c.heights[i+1:], c.heights[i:])
	c.heights[i] = height
	return nil
}

// IsCheckpoint reports whether height is pinned.
func (c *Checkpoints) IsCheckpoint(height uint32) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	_, ok := c.points[height]
	return ok
}

// Check reports whether height is pinned to exactly hash.  Unpinned heights
// never check.
func (c *Checkpoints) Check(height uint32, hash chainhash.Hash) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	pinned, ok := c.points[height]
	return ok && pinned == hash
}

// IsInCheckpointZone reports whether height is at or below the last pin.
func (c *Checkpoints) IsInCheckpointZone(height uint32) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return len(c.heights) > 0 && height <= c.heights[len(c.heights)-1]
}

// IsAllowed reports whether an alternative block at blockHeight may be
// accepted while the main chain is chainHeight blocks high.  The block must
// be above the greatest pin not exceeding chainHeight; genesis is never
// replaceable.
func (c *Checkpoints) IsAllowed(chainHeight, blockHeight uint32) bool {
	if blockHeight == 0 {
		return false
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	i := sort.Search(len(c.heights), func(i int) bool { return c.heights[i] > chainHeight })
	if i == 0 {
		return true
	}
	return c.heights[i-1] < blockHeight
}

// Heights returns the pinned heights in ascending order.
func (c *Checkpoints) Heights() []uint32 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	res := make([]uint32, len(c.heights))
	copy(res, c.heights)
	return res
}

// Hash returns the pin at height.
func (c *Checkpoints) Hash(height uint32) (chainhash.Hash, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	h, ok := c.points[height]
	return h, ok
}
