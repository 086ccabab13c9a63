// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package levin

import (
	"bytes"
	"encoding/hex"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/types/wire"
)

func TestHeaderLayout(t *testing.T) {
	msg := NewRequest(1001, []byte{0xaa, 0xbb}, true)
	var buf bytes.Buffer
	n, err := WriteMessageN(&buf, msg, ProtocolVersion1)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize+2, n)

	want := "0121010101010101" + // signature
		"0200000000000000" + // size
		"01" + // expect response
		"e9030000" + // command 1001
		"00000000" + // return code
		"01000000" + // request flag
		"01000000" + // version
		"aabb"
	assert.Equal(t, want, hex.EncodeToString(buf.Bytes()))
}

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		notify   bool
		response bool
	}{
		{"invoke", NewRequest(1002, []byte("sync"), true), false, false},
		{"notify", NewRequest(2001, []byte("block"), false), true, false},
		{"response", NewResponse(1003, ReturnOK, []byte("pong")), false, true},
		{"error response", NewResponse(1001, ErrFormat, nil), false, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := WriteMessageN(&buf, test.msg, ProtocolVersion1)
			require.NoError(t, err)

			n, got, err := ReadMessageN(&buf, 1<<20)
			require.NoError(t, err)
			assert.Equal(t, HeaderSize+len(test.msg.Payload), n)
			assert.Equal(t, test.msg.Header, got.Header)
			assert.Equal(t, len(test.msg.Payload), len(got.Payload))
			assert.Equal(t, test.notify, got.Header.IsNotify())
			assert.Equal(t, test.response, got.Header.IsResponse())
		})
	}
}

func TestReadRejectsMalformedFrames(t *testing.T) {
	var frame bytes.Buffer
	_, err := WriteMessageN(&frame, NewRequest(2002, make([]byte, 64), false), ProtocolVersion1)
	require.NoError(t, err)
	raw := frame.Bytes()

	kindOf := func(err error) wire.DecodeErrorKind {
		msgErr, ok := err.(*wire.MessageError)
		require.True(t, ok, "%v", err)
		return msgErr.Kind
	}

	t.Run("oversize", func(t *testing.T) {
		_, _, err := ReadMessageN(bytes.NewReader(raw), 63)
		assert.Equal(t, wire.ErrOversize, kindOf(err))
	})

	t.Run("bad signature", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		bad[0] ^= 0xff
		_, _, err := ReadMessageN(bytes.NewReader(bad), 1<<20)
		assert.Equal(t, wire.ErrBadSignature, kindOf(err))
	})

	t.Run("truncated header", func(t *testing.T) {
		_, _, err := ReadMessageN(bytes.NewReader(raw[:HeaderSize-1]), 1<<20)
		assert.Equal(t, wire.ErrTruncated, kindOf(err))
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, _, err := ReadMessageN(bytes.NewReader(raw[:len(raw)-1]), 1<<20)
		assert.Equal(t, wire.ErrTruncated, kindOf(err))
	})

	t.Run("clean end of stream", func(t *testing.T) {
		_, _, err := ReadMessageN(bytes.NewReader(nil), 1<<20)
		assert.Equal(t, io.EOF, err)
	})
}

func TestConnOverPipe(t *testing.T) {
	a, b := net.Pipe()
	left := NewConn(a, 1<<20, ProtocolVersion1)
	right := NewConn(b, 1<<20, ProtocolVersion1)
	defer left.Close()
	defer right.Close()

	done := make(chan error, 1)
	go func() {
		done <- left.WriteMessage(NewRequest(1003, []byte("ping"), true))
	}()

	msg, err := right.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1003, msg.Header.Command)
	assert.Equal(t, []byte("ping"), msg.Payload)
	assert.EqualValues(t, HeaderSize+4, left.BytesSent())
	assert.EqualValues(t, HeaderSize+4, right.BytesReceived())
}
