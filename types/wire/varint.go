// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

const (
	// MaxVarIntPayload is the maximum payload size for a variable length
	// integer: ten 7-bit groups cover 64 bits.
	MaxVarIntPayload = 10

	varIntContinuation = 0x80
	varIntMask         = 0x7f
)

// ReadVarInt reads a variable length integer from r.  Each byte carries 7 bits
// of the value, least significant group first; the high bit marks that
// another group follows.  Encodings that overflow 64 bits or end with a
// redundant zero group are rejected.
func ReadVarInt(r io.Reader) (uint64, error) {
	var (
		rv    uint64
		shift uint
	)

	for i := 0; ; i++ {
		piece, err := readByte(r)
		if err != nil {
			return 0, asTruncated("ReadVarInt", err)
		}

		if i >= MaxVarIntPayload || (shift == 63 && piece&varIntMask > 1) {
			return 0, Error("ReadVarInt", ErrBadVarInt,
				"value does not fit into 64 bits")
		}

		rv |= uint64(piece&varIntMask) << shift
		if piece&varIntContinuation == 0 {
			if piece == 0 && shift != 0 {
				return 0, Error("ReadVarInt", ErrBadVarInt,
					fmt.Sprintf("non-canonical encoding of %d", rv))
			}
			return rv, nil
		}
		shift += 7
	}
}

// WriteVarInt serializes val to w as a 7-bit group variable length integer.
func WriteVarInt(w io.Writer, val uint64) error {
	var buf [MaxVarIntPayload]byte
	n := PutVarInt(buf[:], val)
	_, err := w.Write(buf[:n])
	return err
}

// PutVarInt encodes val into buf, which must be large enough, and returns the
// number of bytes written.
func PutVarInt(buf []byte, val uint64) int {
	i := 0
	for val >= varIntContinuation {
		buf[i] = byte(val&varIntMask) | varIntContinuation
		val >>= 7
		i++
	}
	buf[i] = byte(val)
	return i + 1
}

// AppendVarInt appends the encoding of val to dst.
func AppendVarInt(dst []byte, val uint64) []byte {
	var buf [MaxVarIntPayload]byte
	n := PutVarInt(buf[:], val)
	return append(dst, buf[:n]...)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	n := 1
	for val >= varIntContinuation {
		val >>= 7
		n++
	}
	return n
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	return BinarySerializer.Uint8(r)
}
