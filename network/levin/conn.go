// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package levin

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"

	"gitlab.com/jaxnet/cnoted/types/wire"
)

// Message is a decoded frame.
type Message struct {
	Header  Header
	Payload []byte
}

// NewRequest builds a request frame.  A request without expectResponse is a
// notification.
func NewRequest(command uint32, payload []byte, expectResponse bool) *Message {
	return &Message{
		Header: Header{
			ExpectResponse: expectResponse,
			Command:        command,
			Flags:          PacketRequest,
		},
		Payload: payload,
	}
}

// NewResponse builds the answer to a request of command.
func NewResponse(command uint32, returnCode int32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Command:    command,
			ReturnCode: returnCode,
			Flags:      PacketResponse,
		},
		Payload: payload,
	}
}

// ReadMessageN reads the next frame from r and returns it with the number of
// bytes consumed.  Frames with a payload over maxPacketSize are rejected
// before the payload is read.
func ReadMessageN(r io.Reader, maxPacketSize uint64) (int, *Message, error) {
	msg := new(Message)
	if err := msg.Header.Deserialize(r, maxPacketSize); err != nil {
		return 0, nil, err
	}

	msg.Payload = make([]byte, msg.Header.Size)
	n, err := io.ReadFull(r, msg.Payload)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return HeaderSize + n, nil, wire.Error("ReadMessageN", wire.ErrTruncated, err.Error())
		}
		return HeaderSize + n, nil, err
	}
	return HeaderSize + n, msg, nil
}

// WriteMessageN writes msg with its payload size and version filled in.
func WriteMessageN(w io.Writer, msg *Message, version uint32) (int, error) {
	msg.Header.Size = uint64(len(msg.Payload))
	msg.Header.Version = version

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(msg.Payload))
	if err := msg.Header.Serialize(&buf); err != nil {
		return 0, err
	}
	buf.Write(msg.Payload)
	return w.Write(buf.Bytes())
}

// Conn frames messages over a byte stream.  Reads must come from a single
// goroutine, writes may be concurrent.
type Conn struct {
	bytesReceived uint64
	bytesSent     uint64

	rw            io.ReadWriteCloser
	maxPacketSize uint64
	version       uint32

	writeMtx sync.Mutex
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriteCloser, maxPacketSize uint64, version uint32) *Conn {
	return &Conn{rw: rw, maxPacketSize: maxPacketSize, version: version}
}

// ReadMessage reads the next frame.
func (c *Conn) ReadMessage() (*Message, error) {
	n, msg, err := ReadMessageN(c.rw, c.maxPacketSize)
	atomic.AddUint64(&c.bytesReceived, uint64(n))
	if err != nil {
		return nil, err
	}

	if e := log.Trace(); e.Enabled() {
		e.Msgf("received frame %s", spew.Sdump(msg.Header))
	}
	return msg, nil
}

// WriteMessage writes a whole frame.
func (c *Conn) WriteMessage(msg *Message) error {
	c.writeMtx.Lock()
	n, err := WriteMessageN(c.rw, msg, c.version)
	c.writeMtx.Unlock()
	atomic.AddUint64(&c.bytesSent, uint64(n))

	if e := log.Trace(); e.Enabled() {
		e.Msgf("sent frame %s", spew.Sdump(msg.Header))
	}
	return err
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.rw.Close()
}

// BytesReceived returns the total number of bytes read.
func (c *Conn) BytesReceived() uint64 {
	return atomic.LoadUint64(&c.bytesReceived)
}

// BytesSent returns the total number of bytes written.
func (c *Conn) BytesSent() uint64 {
	return atomic.LoadUint64(&c.bytesSent)
}
