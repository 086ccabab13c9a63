// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock ErrorCode = iota

	// ErrPrevBlockNotTip indicates the block does not extend the current
	// main chain tip.
	ErrPrevBlockNotTip

	// ErrTimeTooOld indicates the time is either before the median time of
	// the last several blocks per the chain consensus rules.
	ErrTimeTooOld

	// ErrTimeTooNew indicates the time is too far in the future as compared
	// the current time.
	ErrTimeTooNew

	// ErrDifficulty indicates the next difficulty could not be computed.
	ErrDifficulty

	// ErrCheckpointMismatch indicates a block at a pinned height does not
	// match the pinned hash.
	ErrCheckpointMismatch

	// ErrHighHash indicates the block does not hash to a value which is
	// lower than the required target difficultly.
	ErrHighHash

	// ErrBadMinerTx indicates the miner transaction does not have the
	// shape required at its height.
	ErrBadMinerTx

	// ErrDoubleSpend indicates a transaction is attempting to spend a key
	// image that has already been spent.
	ErrDoubleSpend

	// ErrDuplicateTx indicates a transaction hash is already indexed.
	ErrDuplicateTx

	// ErrMissingTx indicates a transaction the block includes is not known.
	ErrMissingTx

	// ErrBadInput indicates a transaction input does not resolve against
	// the output registries or is otherwise invalid.
	ErrBadInput

	// ErrBadTx indicates a transaction is malformed.
	ErrBadTx

	// ErrBlockTooBig indicates the cumulative size of the block exceeds
	// the limit at its height.
	ErrBlockTooBig

	// ErrBadReward indicates the miner transaction pays something other
	// than the block reward.
	ErrBadReward

	// ErrOrphan indicates the block's parent is unknown.
	ErrOrphan

	// ErrCheckpointZone indicates an alternative block would rewrite
	// history at or below a checkpoint.
	ErrCheckpointZone

	// ErrBadVersion indicates the block major version does not match the
	// hardfork schedule.
	ErrBadVersion

	// ErrChainHalted indicates the chain refused a mutation after a
	// consistency violation.
	ErrChainHalted
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:     "ErrDuplicateBlock",
	ErrPrevBlockNotTip:    "ErrPrevBlockNotTip",
	ErrTimeTooOld:         "ErrTimeTooOld",
	ErrTimeTooNew:         "ErrTimeTooNew",
	ErrDifficulty:         "ErrDifficulty",
	ErrCheckpointMismatch: "ErrCheckpointMismatch",
	ErrHighHash:           "ErrHighHash",
	ErrBadMinerTx:         "ErrBadMinerTx",
	ErrDoubleSpend:        "ErrDoubleSpend",
	ErrDuplicateTx:        "ErrDuplicateTx",
	ErrMissingTx:          "ErrMissingTx",
	ErrBadInput:           "ErrBadInput",
	ErrBadTx:              "ErrBadTx",
	ErrBlockTooBig:        "ErrBlockTooBig",
	ErrBadReward:          "ErrBadReward",
	ErrOrphan:             "ErrOrphan",
	ErrCheckpointZone:     "ErrCheckpointZone",
	ErrBadVersion:         "ErrBadVersion",
	ErrChainHalted:        "ErrChainHalted",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules.  The caller can use type assertions to determine if a failure was
// specifically due to a rule violation and access the ErrorCode field to
// ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// NewRuleError creates an RuleError given a set of arguments.
func NewRuleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsRuleError reports whether err is a RuleError with the given code.
func IsRuleError(err error, c ErrorCode) bool {
	rerr, ok := err.(RuleError)
	return ok && rerr.ErrorCode == c
}
