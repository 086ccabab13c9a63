// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/network/levin"
)

const testPacketSize = 1 << 20

func TestFailedRequestIsAnswered(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	p := NewInboundPeer(&Config{
		MaxPacketSize: testPacketSize,
		OnRequest: func(*Peer, *levin.Message) ([]byte, int32, error) {
			return nil, levin.ReturnOK, errors.New("malformed payload")
		},
	}, local)
	p.Start()

	rc := levin.NewConn(remote, testPacketSize, levin.ProtocolVersion1)
	require.NoError(t, rc.WriteMessage(levin.NewRequest(1003, []byte{0x01}, true)))

	resp, err := rc.ReadMessage()
	require.NoError(t, err)
	assert.True(t, resp.Header.IsResponse())
	assert.EqualValues(t, 1003, resp.Header.Command)
	assert.Equal(t, levin.ErrFormat, resp.Header.ReturnCode)

	p.WaitForDisconnect()
	assert.Equal(t, StateShutdown, p.State())
	assert.False(t, p.Connected())
}

func TestInvokeResponse(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	p := NewOutboundPeer(&Config{MaxPacketSize: testPacketSize}, local)
	p.Start()
	defer p.Disconnect()

	rc := levin.NewConn(remote, testPacketSize, levin.ProtocolVersion1)
	go func() {
		req, err := rc.ReadMessage()
		if err != nil || !req.Header.ExpectResponse {
			return
		}
		_ = rc.WriteMessage(levin.NewResponse(req.Header.Command, levin.ReturnOK, []byte("pong")))
	}()

	payload, err := p.Invoke(context.Background(), 1003, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), payload)
}
