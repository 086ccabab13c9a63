// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashSize of array used to store hashes.  See Hash.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error that indicates the caller specified a hash
// string that has too many characters.
var ErrHashStrSize = fmt.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// ZeroHash is the zero value hash (all zeros).
var ZeroHash Hash

// Hash is used in several of the messages and common structures.  It
// typically represents the Keccak-256 of data.  Unlike bitcoin hashes the
// string form is the plain hex of the bytes in storage order.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of the bytes.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// CloneBytes returns a copy of the bytes which represent the hash as a byte
// slice.
func (hash *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])

	return newHash
}

// SetBytes sets the bytes which represent the hash.  An error is returned if
// the number of bytes passed in is not HashSize.
func (hash *Hash) SetBytes(newHash []byte) error {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return fmt.Errorf("invalid hash length of %v, want %v", nhlen,
			HashSize)
	}
	copy(hash[:], newHash)

	return nil
}

// IsEqual returns true if target is the same as hash.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// IsZero reports whether every byte of the hash is zero.
func (hash Hash) IsZero() bool {
	return hash == ZeroHash
}

// NewHash returns a new Hash from a byte slice.  An error is returned if
// the number of bytes passed in is not HashSize.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, err
}

// NewHashFromStr creates a Hash from a hash string.  The string must be
// exactly 64 hexadecimal characters.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the hexadecimal string encoding of a Hash to a destination.
func Decode(dst *Hash, src string) error {
	if len(src) != MaxHashStringSize {
		if len(src) > MaxHashStringSize {
			return ErrHashStrSize
		}
		return fmt.Errorf("hash string must be %d characters, got %d",
			MaxHashStringSize, len(src))
	}

	var buf Hash
	if _, err := hex.Decode(buf[:], []byte(src)); err != nil {
		return err
	}
	*dst = buf
	return nil
}

// HashB calculates the fast hash (legacy Keccak-256) of b and returns the
// resulting bytes.
func HashB(b []byte) []byte {
	h := HashH(b)
	return h[:]
}

// HashH calculates the fast hash (legacy Keccak-256) of b and returns the
// resulting bytes as a Hash.
func HashH(b []byte) Hash {
	var out Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(b)
	d.Sum(out[:0])
	return out
}

// FastHash hashes the concatenation of all passed parts.
func FastHash(parts ...[]byte) Hash {
	var out Hash
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	d.Sum(out[:0])
	return out
}
