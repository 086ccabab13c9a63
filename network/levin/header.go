// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package levin

import (
	"encoding/binary"
	"fmt"
	"io"

	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	// Signature opens every frame.
	Signature uint64 = 0x0101010101012101

	// HeaderSize is the encoded size of a frame header.
	HeaderSize = 33

	// ProtocolVersion1 is the frame layout version written by this package.
	ProtocolVersion1 uint32 = 1
)

// Frame flags.
const (
	PacketRequest  uint32 = 0x00000001
	PacketResponse uint32 = 0x00000002
)

// Return codes carried by responses.
const (
	ReturnOK                       int32 = 0
	ErrConnection                  int32 = -1
	ErrConnectionNotFound          int32 = -2
	ErrConnectionDestroyed         int32 = -3
	ErrConnectionTimedOut          int32 = -4
	ErrConnectionNoDuplexProtocol  int32 = -5
	ErrConnectionHandlerNotDefined int32 = -6
	ErrFormat                      int32 = -7
)

// Header is the fixed part of a frame.
type Header struct {
	// Size is the payload length.
	Size uint64

	// ExpectResponse is set on requests the sender waits an answer for.
	ExpectResponse bool

	Command    uint32
	ReturnCode int32
	Flags      uint32
	Version    uint32
}

// IsResponse reports whether the frame answers an earlier request.
func (h *Header) IsResponse() bool {
	return h.Flags&PacketResponse != 0
}

// IsNotify reports whether the frame is a request nobody waits for.
func (h *Header) IsNotify() bool {
	return !h.IsResponse() && !h.ExpectResponse
}

// Serialize writes the header in its wire form.
func (h *Header) Serialize(w io.Writer) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], Signature)
	binary.LittleEndian.PutUint64(buf[8:16], h.Size)
	if h.ExpectResponse {
		buf[16] = 1
	}
	binary.LittleEndian.PutUint32(buf[17:21], h.Command)
	binary.LittleEndian.PutUint32(buf[21:25], uint32(h.ReturnCode))
	binary.LittleEndian.PutUint32(buf[25:29], h.Flags)
	binary.LittleEndian.PutUint32(buf[29:33], h.Version)
	_, err := w.Write(buf[:])
	return err
}

// Deserialize reads a header and checks its signature and declared size
// against maxPacketSize.
func (h *Header) Deserialize(r io.Reader, maxPacketSize uint64) error {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return wire.Error("Header.Deserialize", wire.ErrTruncated, err.Error())
		}
		return err
	}

	if sig := binary.LittleEndian.Uint64(buf[0:8]); sig != Signature {
		return wire.Error("Header.Deserialize", wire.ErrBadSignature,
			fmt.Sprintf("frame signature %#016x, want %#016x", sig, Signature))
	}

	h.Size = binary.LittleEndian.Uint64(buf[8:16])
	if h.Size > maxPacketSize {
		return wire.Error("Header.Deserialize", wire.ErrOversize,
			fmt.Sprintf("frame payload of %d bytes exceeds %d", h.Size, maxPacketSize))
	}
	switch buf[16] {
	case 0:
		h.ExpectResponse = false
	case 1:
		h.ExpectResponse = true
	default:
		return wire.Error("Header.Deserialize", wire.ErrBadValue,
			fmt.Sprintf("expect response flag %d", buf[16]))
	}
	h.Command = binary.LittleEndian.Uint32(buf[17:21])
	h.ReturnCode = int32(binary.LittleEndian.Uint32(buf[21:25]))
	h.Flags = binary.LittleEndian.Uint32(buf[25:29])
	h.Version = binary.LittleEndian.Uint32(buf[29:33])
	return nil
}
