// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package portable

import (
	"encoding/binary"
	"fmt"
	"math"

	"gitlab.com/jaxnet/cnoted/types/wire"
)

const (
	SignatureA    uint32 = 0x01011101
	SignatureB    uint32 = 0x01020101
	FormatVersion uint8  = 1

	headerSize = 9

	// maxDepth bounds object nesting.
	maxDepth = 32

	// maxNameLen is imposed by the one-byte name length.
	maxNameLen = 255
)

// Encode serializes the section as a complete document.
func Encode(s *Section) ([]byte, error) {
	buf := make([]byte, headerSize, 256)
	binary.LittleEndian.PutUint32(buf[0:], SignatureA)
	binary.LittleEndian.PutUint32(buf[4:], SignatureB)
	buf[8] = FormatVersion
	return appendSection(buf, s, 0)
}

func appendSection(dst []byte, s *Section, depth int) ([]byte, error) {
	if depth > maxDepth {
		return dst, wire.Error("portable.Encode", wire.ErrOversize, "nesting too deep")
	}
	var err error
	if s == nil {
		return AppendVarInt(dst, 0)
	}
	if dst, err = AppendVarInt(dst, uint64(len(s.entries))); err != nil {
		return dst, err
	}
	for _, e := range s.entries {
		if len(e.Name) > maxNameLen {
			return dst, wire.Error("portable.Encode", wire.ErrOversize,
				fmt.Sprintf("entry name of %d bytes", len(e.Name)))
		}
		dst = append(dst, byte(len(e.Name)))
		dst = append(dst, e.Name...)

		if arr, ok := e.Value.(*Array); ok {
			dst = append(dst, uint8(arr.ElemType)|FlagArray)
			if dst, err = AppendVarInt(dst, uint64(len(arr.Items))); err != nil {
				return dst, err
			}
			for _, it := range arr.Items {
				if t, _ := typeOf(it); t != arr.ElemType {
					return dst, fmt.Errorf("array %q holds %T, want %v", e.Name, it, arr.ElemType)
				}
				if dst, err = appendValue(dst, it, depth); err != nil {
					return dst, err
				}
			}
			continue
		}

		t, ok := typeOf(e.Value)
		if !ok {
			return dst, fmt.Errorf("entry %q has unsupported type %T", e.Name, e.Value)
		}
		dst = append(dst, uint8(t))
		if dst, err = appendValue(dst, e.Value, depth); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func appendValue(dst []byte, v interface{}, depth int) ([]byte, error) {
	switch x := v.(type) {
	case int64:
		return binary.LittleEndian.AppendUint64(dst, uint64(x)), nil
	case int32:
		return binary.LittleEndian.AppendUint32(dst, uint32(x)), nil
	case int16:
		return binary.LittleEndian.AppendUint16(dst, uint16(x)), nil
	case int8:
		return append(dst, byte(x)), nil
	case uint64:
		return binary.LittleEndian.AppendUint64(dst, x), nil
	case uint32:
		return binary.LittleEndian.AppendUint32(dst, x), nil
	case uint16:
		return binary.LittleEndian.AppendUint16(dst, x), nil
	case uint8:
		return append(dst, x), nil
	case float64:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(x)), nil
	case bool:
		if x {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case []byte:
		dst, err := AppendVarInt(dst, uint64(len(x)))
		if err != nil {
			return dst, err
		}
		return append(dst, x...), nil
	case *Section:
		return appendSection(dst, x, depth+1)
	case *Array:
		return dst, fmt.Errorf("nested arrays are not supported")
	}
	return dst, fmt.Errorf("unsupported value type %T", v)
}

// Decode parses a complete document and returns its root section.
func Decode(b []byte) (*Section, error) {
	if len(b) < headerSize {
		return nil, wire.Error("portable.Decode", wire.ErrTruncated, "short header")
	}
	if binary.LittleEndian.Uint32(b[0:]) != SignatureA ||
		binary.LittleEndian.Uint32(b[4:]) != SignatureB {
		return nil, wire.Error("portable.Decode", wire.ErrBadSignature,
			fmt.Sprintf("signature %x", b[:8]))
	}
	if b[8] != FormatVersion {
		return nil, wire.Error("portable.Decode", wire.ErrBadValue,
			fmt.Sprintf("format version %d", b[8]))
	}

	d := decoder{buf: b[headerSize:]}
	s, err := d.section(0)
	if err != nil {
		return nil, err
	}
	if len(d.buf) != 0 {
		return nil, wire.Error("portable.Decode", wire.ErrTrailingBytes,
			fmt.Sprintf("%d bytes after root section", len(d.buf)))
	}
	return s, nil
}

type decoder struct {
	buf []byte
}

func (d *decoder) take(n uint64) ([]byte, error) {
	if uint64(len(d.buf)) < n {
		return nil, wire.Error("portable.Decode", wire.ErrTruncated,
			fmt.Sprintf("need %d bytes, have %d", n, len(d.buf)))
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

func (d *decoder) varint() (uint64, error) {
	v, n, err := readVarInt(d.buf)
	if err != nil {
		return 0, err
	}
	d.buf = d.buf[n:]
	return v, nil
}

// count reads an element count that cannot exceed the remaining input when
// every element takes at least one byte.
func (d *decoder) count() (int, error) {
	n, err := d.varint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.buf)) {
		return 0, wire.Error("portable.Decode", wire.ErrOversize,
			fmt.Sprintf("count %d exceeds remaining %d bytes", n, len(d.buf)))
	}
	return int(n), nil
}

func (d *decoder) section(depth int) (*Section, error) {
	if depth > maxDepth {
		return nil, wire.Error("portable.Decode", wire.ErrOversize, "nesting too deep")
	}
	count, err := d.count()
	if err != nil {
		return nil, err
	}

	s := NewSection()
	for i := 0; i < count; i++ {
		nameLen, err := d.take(1)
		if err != nil {
			return nil, err
		}
		name, err := d.take(uint64(nameLen[0]))
		if err != nil {
			return nil, err
		}
		tag, err := d.take(1)
		if err != nil {
			return nil, err
		}

		var v interface{}
		if tag[0]&FlagArray != 0 {
			v, err = d.array(Type(tag[0]&^FlagArray), depth)
		} else {
			v, err = d.value(Type(tag[0]), depth)
		}
		if err != nil {
			return nil, err
		}
		s.Set(string(name), v)
	}
	return s, nil
}

func (d *decoder) array(t Type, depth int) (*Array, error) {
	count, err := d.count()
	if err != nil {
		return nil, err
	}
	arr := &Array{ElemType: t, Items: make([]interface{}, 0, count)}
	for i := 0; i < count; i++ {
		v, err := d.value(t, depth)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, v)
	}
	return arr, nil
}

func (d *decoder) value(t Type, depth int) (interface{}, error) {
	fixed := func(n uint64) ([]byte, error) { return d.take(n) }

	switch t {
	case TypeInt64:
		b, err := fixed(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TypeInt32:
		b, err := fixed(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(b)), nil
	case TypeInt16:
		b, err := fixed(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case TypeInt8:
		b, err := fixed(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0]), nil
	case TypeUint64:
		b, err := fixed(8)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(b), nil
	case TypeUint32:
		b, err := fixed(4)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(b), nil
	case TypeUint16:
		b, err := fixed(2)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(b), nil
	case TypeUint8:
		b, err := fixed(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case TypeDouble:
		b, err := fixed(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case TypeBool:
		b, err := fixed(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case TypeString:
		n, err := d.varint()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case TypeObject:
		return d.section(depth + 1)
	}
	return nil, wire.Error("portable.Decode", wire.ErrUnknownTag,
		fmt.Sprintf("value type %d", uint8(t)))
}
