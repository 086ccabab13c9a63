// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"fmt"
	"io"
)

// DecodeErrorKind classifies malformed input.
type DecodeErrorKind int

const (
	// ErrTruncated means the input ended before the value was complete.
	ErrTruncated DecodeErrorKind = iota

	// ErrBadVarInt means a variable length integer overflowed or was not
	// canonically encoded.
	ErrBadVarInt

	// ErrUnknownTag means a variant tag byte is not one of the known ones.
	ErrUnknownTag

	// ErrOversize means a declared length exceeds the allowed maximum.
	ErrOversize

	// ErrBadSignature means a magic signature did not match.
	ErrBadSignature

	// ErrTrailingBytes means a blob carried data past the decoded value.
	ErrTrailingBytes

	// ErrBadValue means the value is structurally valid but not permitted.
	ErrBadValue
)

var kindStrings = map[DecodeErrorKind]string{
	ErrTruncated:     "truncated",
	ErrBadVarInt:     "bad varint",
	ErrUnknownTag:    "unknown tag",
	ErrOversize:      "oversize",
	ErrBadSignature:  "bad signature",
	ErrTrailingBytes: "trailing bytes",
	ErrBadValue:      "bad value",
}

func (k DecodeErrorKind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown DecodeErrorKind (%d)", int(k))
}

// MessageError describes an issue with a message or blob.  It is always fatal
// to the message being decoded and to the connection it came from, never to
// the process.
type MessageError struct {
	Func        string          // Function name
	Kind        DecodeErrorKind // Error class
	Description string          // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%v: %v: %v", e.Func, e.Kind, e.Description)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Description)
}

// Error creates an error for the given function and description.
func Error(f string, kind DecodeErrorKind, desc string) *MessageError {
	return &MessageError{Func: f, Kind: kind, Description: desc}
}

// IsDecodeError reports whether err is a malformed-input error, including
// short reads of the underlying stream.
func IsDecodeError(err error) bool {
	var msgErr *MessageError
	if errors.As(err, &msgErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// asTruncated converts short-read errors into typed decode errors so callers
// can branch on them uniformly.
func asTruncated(f string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Error(f, ErrTruncated, err.Error())
	}
	return err
}
