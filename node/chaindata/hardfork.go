// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"sort"

	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/pow"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// Hardforks maps heights onto block major versions.
type Hardforks struct {
	schedule []chaincfg.Hardfork
}

// NewHardforks returns the schedule sorted by activation height.
func NewHardforks(schedule []chaincfg.Hardfork) *Hardforks {
	s := make([]chaincfg.Hardfork, len(schedule))
	copy(s, schedule)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Height < s[j].Height })
	return &Hardforks{schedule: s}
}

// MajorVersion is the version of the last schedule entry activated at or
// below height, or 1 when none is.
func (h *Hardforks) MajorVersion(height uint32) uint8 {
	version := uint8(1)
	for _, hf := range h.schedule {
		if hf.Height > height {
			break
		}
		version = hf.MajorVersion
	}
	return version
}

// Variant selects the proof-of-work variant of a block.
func (h *Hardforks) Variant(block *wire.MsgBlock) int {
	return pow.Variant(block.Header.MajorVersion)
}
