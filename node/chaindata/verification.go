// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"strings"
)

// BlockVerificationFlags report what happened to a submitted block.
type BlockVerificationFlags uint8

const (
	// BVFailed is set when the block was rejected.
	BVFailed BlockVerificationFlags = 1 << iota

	// BVAddedToMainChain is set when the block extended the main chain,
	// directly or as part of a switch to an alternative chain.
	BVAddedToMainChain

	// BVMarkedAsOrphaned is set when the block's parent is unknown.
	BVMarkedAsOrphaned

	// BVAlreadyExists is set when the block is already known.
	BVAlreadyExists

	// BVSwitchedToAltChain is set when the block made an alternative
	// chain canonical.
	BVSwitchedToAltChain

	// BVAddedAsAlternative is set when the block was stored on an
	// alternative branch.
	BVAddedAsAlternative
)

var bvFlagStrings = []struct {
	flag BlockVerificationFlags
	name string
}{
	{BVFailed, "verification_failed"},
	{BVAddedToMainChain, "added_to_main_chain"},
	{BVMarkedAsOrphaned, "marked_as_orphaned"},
	{BVAlreadyExists, "already_exists"},
	{BVSwitchedToAltChain, "switched_to_alt_chain"},
	{BVAddedAsAlternative, "added_as_alternative"},
}

// Has reports whether all bits of f are set.
func (v BlockVerificationFlags) Has(f BlockVerificationFlags) bool {
	return v&f == f
}

func (v BlockVerificationFlags) String() string {
	var names []string
	for _, s := range bvFlagStrings {
		if v.Has(s.flag) {
			names = append(names, s.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// BlockVerificationContext is filled by block submission.  Err carries the
// RuleError of a failed verification.
type BlockVerificationContext struct {
	Flags BlockVerificationFlags
	Err   error
}

// Failed reports whether the block was rejected.
func (c *BlockVerificationContext) Failed() bool {
	return c.Flags.Has(BVFailed)
}

// Fail marks the context failed with err.
func (c *BlockVerificationContext) Fail(err error) {
	c.Flags |= BVFailed
	c.Err = err
}

// TxVerificationContext is filled by transaction submission.
type TxVerificationContext struct {
	Failed                 bool
	AddedToPool            bool
	ShouldBeRelayed        bool
	VerificationImpossible bool
	Err                    error
}
