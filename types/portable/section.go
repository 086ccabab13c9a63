// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package portable

import (
	"fmt"
	"math"
)

// Type is the serialized type tag of a value.
type Type uint8

// Value type tags.
const (
	TypeInt64  Type = 1
	TypeInt32  Type = 2
	TypeInt16  Type = 3
	TypeInt8   Type = 4
	TypeUint64 Type = 5
	TypeUint32 Type = 6
	TypeUint16 Type = 7
	TypeUint8  Type = 8
	TypeDouble Type = 9
	TypeString Type = 10
	TypeBool   Type = 11
	TypeObject Type = 12
	TypeArray  Type = 13

	// FlagArray marks a homogeneous array of the type in the low bits.
	FlagArray uint8 = 0x80
)

var typeStrings = map[Type]string{
	TypeInt64:  "int64",
	TypeInt32:  "int32",
	TypeInt16:  "int16",
	TypeInt8:   "int8",
	TypeUint64: "uint64",
	TypeUint32: "uint32",
	TypeUint16: "uint16",
	TypeUint8:  "uint8",
	TypeDouble: "double",
	TypeString: "string",
	TypeBool:   "bool",
	TypeObject: "object",
	TypeArray:  "array",
}

func (t Type) String() string {
	if s, ok := typeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Type (%d)", uint8(t))
}

// Array is a homogeneous list of values of ElemType.  Items hold the same Go
// types a section entry of ElemType holds.
type Array struct {
	ElemType Type
	Items    []interface{}
}

// Entry is a named value inside a section.
type Entry struct {
	Name  string
	Value interface{}
}

// Section is an ordered set of named entries.  Values are one of int64,
// int32, int16, int8, uint64, uint32, uint16, uint8, float64, []byte (the
// string type), bool, *Section or *Array.
type Section struct {
	entries []Entry
	index   map[string]int
}

// NewSection returns an empty section.
func NewSection() *Section {
	return &Section{index: make(map[string]int)}
}

// Entries returns the entries in insertion order.
func (s *Section) Entries() []Entry {
	return s.entries
}

// Len is the number of entries.
func (s *Section) Len() int {
	return len(s.entries)
}

// Set adds or replaces the named entry.
func (s *Section) Set(name string, value interface{}) *Section {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.entries[i].Value = value
		return s
	}
	s.index[name] = len(s.entries)
	s.entries = append(s.entries, Entry{Name: name, Value: value})
	return s
}

// Get returns the raw value of the named entry.
func (s *Section) Get(name string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.entries[i].Value, true
}

// Has reports whether the entry exists.
func (s *Section) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Uint64 returns the named entry as an unsigned integer.  Any integer width
// is accepted since peers do not agree on the width of every field.
func (s *Section) Uint64(name string) (uint64, error) {
	v, ok := s.Get(name)
	if !ok {
		return 0, missing(name)
	}
	return toUint64(name, v)
}

// Uint32 returns the named entry as a 32-bit unsigned integer.
func (s *Section) Uint32(name string) (uint32, error) {
	v, err := s.Uint64(name)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("field %q value %d overflows uint32", name, v)
	}
	return uint32(v), nil
}

// Int64 returns the named entry as a signed integer.
func (s *Section) Int64(name string) (int64, error) {
	v, ok := s.Get(name)
	if !ok {
		return 0, missing(name)
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	}
	u, err := toUint64(name, v)
	if err != nil {
		return 0, err
	}
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("field %q value %d overflows int64", name, u)
	}
	return int64(u), nil
}

// Bool returns the named boolean entry.
func (s *Section) Bool(name string) (bool, error) {
	v, ok := s.Get(name)
	if !ok {
		return false, missing(name)
	}
	b, ok := v.(bool)
	if !ok {
		return false, mistyped(name, v)
	}
	return b, nil
}

// Bytes returns the named string entry as raw bytes.
func (s *Section) Bytes(name string) ([]byte, error) {
	v, ok := s.Get(name)
	if !ok {
		return nil, missing(name)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, mistyped(name, v)
	}
	return b, nil
}

// String returns the named string entry.
func (s *Section) String(name string) (string, error) {
	b, err := s.Bytes(name)
	return string(b), err
}

// Section returns the named object entry.
func (s *Section) Section(name string) (*Section, error) {
	v, ok := s.Get(name)
	if !ok {
		return nil, missing(name)
	}
	sec, ok := v.(*Section)
	if !ok {
		return nil, mistyped(name, v)
	}
	return sec, nil
}

// Array returns the named array entry.
func (s *Section) Array(name string) (*Array, error) {
	v, ok := s.Get(name)
	if !ok {
		return nil, missing(name)
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, mistyped(name, v)
	}
	return arr, nil
}

// BytesArray returns the items of a string array.  A missing entry is an
// empty list because empty arrays are commonly omitted by peers.
func (s *Section) BytesArray(name string) ([][]byte, error) {
	if !s.Has(name) {
		return nil, nil
	}
	arr, err := s.Array(name)
	if err != nil {
		return nil, err
	}
	if arr.ElemType != TypeString {
		return nil, fmt.Errorf("field %q is an array of %v, want string", name, arr.ElemType)
	}
	res := make([][]byte, len(arr.Items))
	for i, it := range arr.Items {
		res[i] = it.([]byte)
	}
	return res, nil
}

// SectionArray returns the items of an object array, or nil if absent.
func (s *Section) SectionArray(name string) ([]*Section, error) {
	if !s.Has(name) {
		return nil, nil
	}
	arr, err := s.Array(name)
	if err != nil {
		return nil, err
	}
	if arr.ElemType != TypeObject {
		return nil, fmt.Errorf("field %q is an array of %v, want object", name, arr.ElemType)
	}
	res := make([]*Section, len(arr.Items))
	for i, it := range arr.Items {
		res[i] = it.(*Section)
	}
	return res, nil
}

// NewBytesArray builds a string array.
func NewBytesArray(items [][]byte) *Array {
	arr := &Array{ElemType: TypeString, Items: make([]interface{}, len(items))}
	for i, it := range items {
		arr.Items[i] = it
	}
	return arr
}

// NewSectionArray builds an object array.
func NewSectionArray(items []*Section) *Array {
	arr := &Array{ElemType: TypeObject, Items: make([]interface{}, len(items))}
	for i, it := range items {
		arr.Items[i] = it
	}
	return arr
}

func toUint64(name string, v interface{}) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case uint32:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case int64, int32, int16, int8:
		i := toInt64(x)
		if i < 0 {
			return 0, fmt.Errorf("field %q has negative value %d", name, i)
		}
		return uint64(i), nil
	}
	return 0, mistyped(name, v)
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	}
	return 0
}

func missing(name string) error {
	return fmt.Errorf("field %q is missing", name)
}

func mistyped(name string, v interface{}) error {
	return fmt.Errorf("field %q has unexpected type %T", name, v)
}

// typeOf maps a Go value to its type tag.
func typeOf(v interface{}) (Type, bool) {
	switch v.(type) {
	case int64:
		return TypeInt64, true
	case int32:
		return TypeInt32, true
	case int16:
		return TypeInt16, true
	case int8:
		return TypeInt8, true
	case uint64:
		return TypeUint64, true
	case uint32:
		return TypeUint32, true
	case uint16:
		return TypeUint16, true
	case uint8:
		return TypeUint8, true
	case float64:
		return TypeDouble, true
	case []byte:
		return TypeString, true
	case bool:
		return TypeBool, true
	case *Section:
		return TypeObject, true
	case *Array:
		return TypeArray, true
	}
	return 0, false
}
