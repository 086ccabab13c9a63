// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
)

const (
	// PublicKeySize is the size of an ed25519-style point.
	PublicKeySize = 32

	// KeyImageSize is the size of a key image.
	KeyImageSize = 32

	// SignatureSize is the size of one ring signature element pair.
	SignatureSize = 64
)

// PublicKey is an output one-time key or a transaction public key.
type PublicKey [PublicKeySize]byte

func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// KeyImage is the spend tag of a key input.
type KeyImage [KeyImageSize]byte

func (k KeyImage) String() string { return hex.EncodeToString(k[:]) }

// Signature is a single (c, r) pair of a ring signature.
type Signature [SignatureSize]byte

func (s Signature) String() string { return hex.EncodeToString(s[:]) }
