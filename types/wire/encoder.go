// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

const (
	// MaxBlobPayload caps any length-prefixed byte field.
	MaxBlobPayload = 50 * 1000 * 1000

	// MaxElementsCount caps any length-prefixed collection.  No valid
	// block or transaction comes anywhere near it.
	MaxElementsCount = 1 << 20
)

// ReadElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		rv, err := BinarySerializer.Uint8(r)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = rv
		return nil

	case *uint16:
		rv, err := BinarySerializer.Uint16(r, littleEndian)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = rv
		return nil

	case *int32:
		rv, err := BinarySerializer.Uint32(r, littleEndian)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = int32(rv)
		return nil

	case *uint32:
		rv, err := BinarySerializer.Uint32(r, littleEndian)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = rv
		return nil

	case *int64:
		rv, err := BinarySerializer.Uint64(r, littleEndian)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = int64(rv)
		return nil

	case *uint64:
		rv, err := BinarySerializer.Uint64(r, littleEndian)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = rv
		return nil

	case *bool:
		rv, err := BinarySerializer.Uint8(r)
		if err != nil {
			return asTruncated("ReadElement", err)
		}
		*e = rv != 0x00
		return nil

	case *chainhash.Hash:
		return readFixed(r, e[:])
	case *PublicKey:
		return readFixed(r, e[:])
	case *KeyImage:
		return readFixed(r, e[:])
	case *Signature:
		return readFixed(r, e[:])
	}

	return fmt.Errorf("ReadElement: unsupported element type %T", element)
}

// ReadElements reads multiple items from r.  It is equivalent to multiple
// calls to ReadElement.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		err := ReadElement(r, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteElement writes the little endian representation of element to w.
func WriteElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		return BinarySerializer.PutUint8(w, e)
	case uint16:
		return BinarySerializer.PutUint16(w, littleEndian, e)
	case int32:
		return BinarySerializer.PutUint32(w, littleEndian, uint32(e))
	case uint32:
		return BinarySerializer.PutUint32(w, littleEndian, e)
	case int64:
		return BinarySerializer.PutUint64(w, littleEndian, uint64(e))
	case uint64:
		return BinarySerializer.PutUint64(w, littleEndian, e)
	case bool:
		var v uint8
		if e {
			v = 0x01
		}
		return BinarySerializer.PutUint8(w, v)

	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case PublicKey:
		_, err := w.Write(e[:])
		return err
	case KeyImage:
		_, err := w.Write(e[:])
		return err
	case Signature:
		_, err := w.Write(e[:])
		return err
	}

	return fmt.Errorf("WriteElement: unsupported element type %T", element)
}

// WriteElements writes multiple items to w.  It is equivalent to multiple
// calls to WriteElement.
func WriteElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		err := WriteElement(w, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadVarIntUint32 reads a varint that must fit into 32 bits.
func ReadVarIntUint32(r io.Reader, fieldName string) (uint32, error) {
	v, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, Error("ReadVarIntUint32", ErrBadValue,
			fmt.Sprintf("%s value %d exceeds 32 bits", fieldName, v))
	}
	return uint32(v), nil
}

// ReadCount reads a varint element count and checks it against max.
func ReadCount(r io.Reader, max uint64, fieldName string) (int, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if count > max {
		str := fmt.Sprintf("%s count %d exceeds max %d", fieldName, count, max)
		return 0, Error("ReadCount", ErrOversize, str)
	}
	return int(count), nil
}

// ReadVarBytes reads a variable length byte array.  A byte array is encoded
// as a varint containing the length of the array followed by the bytes
// themselves.  An error is returned if the length is greater than the
// passed maxAllowed parameter which helps protect against memory exhaustion
// attacks and forced panics through malformed messages.  The fieldName
// parameter is only used for the error message so it provides more context in
// the error.
func ReadVarBytes(r io.Reader, maxAllowed uint32, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	// Prevent byte array larger than the max message size.  It would
	// be possible to cause memory exhaustion and panics without a sane
	// upper bound on this count.
	if count > uint64(maxAllowed) {
		str := fmt.Sprintf("%s is larger than the max allowed size "+
			"[count %d, max %d]", fieldName, count, maxAllowed)
		return nil, Error("ReadVarBytes", ErrOversize, str)
	}

	b := make([]byte, count)
	if err := readFixed(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes serializes a variable length byte array to w as a varint
// containing the number of bytes, followed by the bytes themselves.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	slen := uint64(len(bytes))
	err := WriteVarInt(w, slen)
	if err != nil {
		return err
	}

	_, err = w.Write(bytes)
	return err
}

func readFixed(r io.Reader, dst []byte) error {
	_, err := io.ReadFull(r, dst)
	return asTruncated("readFixed", err)
}
