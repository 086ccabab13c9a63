// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package portable

import (
	"fmt"

	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	sizeClassMask  = 0x03
	sizeClassByte  = 0
	sizeClassWord  = 1
	sizeClassDword = 2
	sizeClassQword = 3

	// MaxVarInt is the largest value the size-class varint can carry.
	MaxVarInt = 1<<62 - 1
)

// AppendVarInt appends the size-class encoding of v to dst.
func AppendVarInt(dst []byte, v uint64) ([]byte, error) {
	switch {
	case v < 1<<6:
		return append(dst, byte(v<<2)|sizeClassByte), nil
	case v < 1<<14:
		x := uint16(v<<2) | sizeClassWord
		return append(dst, byte(x), byte(x>>8)), nil
	case v < 1<<30:
		x := uint32(v<<2) | sizeClassDword
		return append(dst, byte(x), byte(x>>8), byte(x>>16), byte(x>>24)), nil
	case v <= MaxVarInt:
		x := v<<2 | sizeClassQword
		var b [8]byte
		for i := range b {
			b[i] = byte(x >> (8 * i))
		}
		return append(dst, b[:]...), nil
	}
	return dst, wire.Error("portable.AppendVarInt", wire.ErrOversize,
		fmt.Sprintf("value %d does not fit into a size-class varint", v))
}

// readVarInt decodes a size-class varint from the head of b and returns the
// value with the number of consumed bytes.
func readVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, wire.Error("portable.readVarInt", wire.ErrTruncated, "empty input")
	}

	var width int
	switch b[0] & sizeClassMask {
	case sizeClassByte:
		width = 1
	case sizeClassWord:
		width = 2
	case sizeClassDword:
		width = 4
	case sizeClassQword:
		width = 8
	}
	if len(b) < width {
		return 0, 0, wire.Error("portable.readVarInt", wire.ErrTruncated,
			fmt.Sprintf("need %d bytes, have %d", width, len(b)))
	}

	var raw uint64
	for i := width - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(b[i])
	}
	return raw >> 2, width, nil
}
