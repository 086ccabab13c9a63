// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 129, 255, 300, 16383, 16384, 65535,
		math.MaxInt32, math.MaxUint32, 1 << 56, math.MaxUint64}

	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		assert.Equal(t, VarIntSerializeSize(v), buf.Len(), "size of %d", v)

		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Zero(t, buf.Len())
	}
}

func TestVarIntEncoding(t *testing.T) {
	tests := []struct {
		val uint64
		buf []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{129, []byte{0x81, 0x01}},
		{300, []byte{0xac, 0x02}},
		{65535, []byte{0xff, 0xff, 0x03}},
		{math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, test := range tests {
		assert.Equal(t, test.buf, AppendVarInt(nil, test.val), "encode %d", test.val)
		got, err := ReadVarInt(bytes.NewReader(test.buf))
		require.NoError(t, err)
		assert.Equal(t, test.val, got)
	}
}

func TestVarIntMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		kind DecodeErrorKind
	}{
		{"empty", []byte{}, ErrTruncated},
		{"unterminated", []byte{0x80, 0x80}, ErrTruncated},
		{"trailing zero group", []byte{0x80, 0x00}, ErrBadVarInt},
		{"redundant zero", []byte{0x81, 0x80, 0x00}, ErrBadVarInt},
		{"overflow in last group", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}, ErrBadVarInt},
		{"too long", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, ErrBadVarInt},
	}

	for _, test := range tests {
		_, err := ReadVarInt(bytes.NewReader(test.buf))
		require.Error(t, err, test.name)

		var msgErr *MessageError
		require.True(t, errors.As(err, &msgErr), test.name)
		assert.Equal(t, test.kind, msgErr.Kind, test.name)
		assert.True(t, IsDecodeError(err), test.name)
	}
}

func TestReadVarBytesOversize(t *testing.T) {
	buf := AppendVarInt(nil, 10)
	buf = append(buf, make([]byte, 10)...)

	_, err := ReadVarBytes(bytes.NewReader(buf), 9, "field")
	var msgErr *MessageError
	require.True(t, errors.As(err, &msgErr))
	assert.Equal(t, ErrOversize, msgErr.Kind)

	b, err := ReadVarBytes(bytes.NewReader(buf), 10, "field")
	require.NoError(t, err)
	assert.Len(t, b, 10)
}
