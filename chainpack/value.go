// The MIT License (MIT)
//
// Copyright (c) 2013-2017 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package chainpack implements the self-describing, schema-less value model
// shared by the CP-binary and CP-text wire encodings, plus the streaming
// CP-binary codec itself.
package chainpack

import (
	"fmt"
	"time"
)

// Kind is the tag of a single streamed value item.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindUInt
	KindDouble
	KindDecimal
	KindDateTime
	KindBlob
	KindString
	KindList
	KindMap
	KindIMap
	KindMeta
	KindContainerEnd
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindUInt:
		return "UInt"
	case KindDouble:
		return "Double"
	case KindDecimal:
		return "Decimal"
	case KindDateTime:
		return "DateTime"
	case KindBlob:
		return "Blob"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindIMap:
		return "IMap"
	case KindMeta:
		return "Meta"
	case KindContainerEnd:
		return "ContainerEnd"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsContainerStart reports whether this kind opens a container that must
// be matched by a KindContainerEnd item.
func (k Kind) IsContainerStart() bool {
	switch k {
	case KindList, KindMap, KindIMap, KindMeta:
		return true
	default:
		return false
	}
}

// RemainingUnknown is the sentinel chunk.Remaining value meaning "the total
// length of this BLOB/STRING was not known when this chunk was produced".
const RemainingUnknown = ^uint64(0)

// Chunk is one slice of a chunk-streamed BLOB or STRING value, per spec
// section 3.2. FIRST is set exactly once per value (on the first chunk),
// LAST exactly once (on the final chunk); any number of interior chunks
// may appear between them.
type Chunk struct {
	Data []byte
	// Remaining is how many bytes remain *after* this chunk, or
	// RemainingUnknown if the total length isn't known yet.
	Remaining uint64
	First     bool
	Last      bool
	// Stream indicates the total length was not known when FIRST was sent.
	Stream bool
	// Hex requests textual hex encoding for a BLOB in CP-text.
	Hex bool
}

// Decimal is a fixed-point value: value == Mantissa * 10^Exponent.
type Decimal struct {
	Mantissa int64
	Exponent int32
}

// ChainpackEpochMs is 2018-02-02T00:00:00Z, the zero point CP-binary
// datetimes are packed relative to.
const ChainpackEpochMs int64 = 1517529600000

// DateTime is milliseconds since the Unix epoch plus a UTC offset in
// minutes. HasOffset distinguishes "UTC, offset known to be zero" from
// "no offset was carried on the wire" (CP-text always carries one).
type DateTime struct {
	EpochMs   int64
	OffsetMin int16
	HasOffset bool
}

// Time converts d to a time.Time in its carried offset (or UTC if none).
func (d DateTime) Time() time.Time {
	loc := time.UTC
	if d.HasOffset && d.OffsetMin != 0 {
		loc = time.FixedZone("", int(d.OffsetMin)*60)
	}
	sec := d.EpochMs / 1000
	nsec := (d.EpochMs % 1000) * int64(time.Millisecond)
	if nsec < 0 {
		sec--
		nsec += int64(time.Second)
	}
	return time.Unix(sec, nsec).In(loc)
}

// NewDateTime builds a DateTime from a wall-clock time, preserving its
// zone as a minutes-offset.
func NewDateTime(t time.Time) DateTime {
	_, offsetSec := t.Zone()
	return DateTime{
		EpochMs:   t.UnixMilli(),
		OffsetMin: int16(offsetSec / 60),
		HasOffset: true,
	}
}

// Item is one streamed unit of the value model: either a scalar, a
// container open/close marker, or one chunk of a BLOB/STRING value.
// A META container precedes the value it annotates; consumers treat the
// pair as one logical item for copy/skip purposes (see Copy).
type Item struct {
	Kind Kind

	Int      int64
	UInt     uint64
	Bool     bool
	Double   float64
	Decimal  Decimal
	DateTime DateTime
	Chunk    Chunk
}

// Value is an in-memory tree representation of a fully materialized
// value, convenient for tests, small RPC payloads (method directories,
// login maps) and anything that doesn't need the chunk-streaming path.
// Large BLOB/STRING payloads should instead be produced/consumed through
// the Packer/Unpacker item stream directly (see doc.go).
type Value struct {
	Kind Kind

	Int      int64
	UInt     uint64
	Bool     bool
	Double   float64
	Decimal  Decimal
	DateTime DateTime
	Blob     []byte
	Str      string

	// Meta, if non-nil, is the META prefix container's contents, keyed by
	// the same dynamic key space as IMap (ints) unioned with Map (strings)
	// is not legal on the wire; meta keys in SHV are always integers.
	Meta *IMap

	List []*Value
	Map  map[string]*Value
	IMap *IMap
}

// IMap is an ordered integer-keyed map; order is preserved because meta
// and message envelopes are read/written in a canonical key order.
type IMap struct {
	keys   []int64
	values map[int64]*Value
}

func NewIMap() *IMap {
	return &IMap{values: map[int64]*Value{}}
}

func (m *IMap) Set(key int64, v *Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *IMap) Get(key int64) (*Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *IMap) Keys() []int64 {
	return m.keys
}

func (m *IMap) Len() int {
	return len(m.keys)
}

// Convenience constructors, mirroring amf0's NewNumber/NewString style.

func Null() *Value                { return &Value{Kind: KindNull} }
func Bool(b bool) *Value          { return &Value{Kind: KindBool, Bool: b} }
func Int(i int64) *Value          { return &Value{Kind: KindInt, Int: i} }
func UInt(u uint64) *Value        { return &Value{Kind: KindUInt, UInt: u} }
func Double(f float64) *Value     { return &Value{Kind: KindDouble, Double: f} }
func Str(s string) *Value         { return &Value{Kind: KindString, Str: s} }
func Blob(b []byte) *Value        { return &Value{Kind: KindBlob, Blob: b} }
func DecimalValue(d Decimal) *Value { return &Value{Kind: KindDecimal, Decimal: d} }
func DateTimeValue(d DateTime) *Value { return &Value{Kind: KindDateTime, DateTime: d} }

func List(items ...*Value) *Value {
	return &Value{Kind: KindList, List: items}
}

func Map(m map[string]*Value) *Value {
	return &Value{Kind: KindMap, Map: m}
}

func IMapValue(m *IMap) *Value {
	return &Value{Kind: KindIMap, IMap: m}
}

// Equal does a deep structural comparison, used by tests instead of
// reflect.DeepEqual so NaN doubles and map ordering don't trip false
// negatives.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindUInt:
		return v.UInt == o.UInt
	case KindDouble:
		return v.Double == o.Double || (v.Double != v.Double && o.Double != o.Double)
	case KindDecimal:
		return v.Decimal == o.Decimal
	case KindDateTime:
		return v.DateTime == o.DateTime
	case KindBlob:
		return string(v.Blob) == string(o.Blob)
	case KindString:
		return v.Str == o.Str
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, vv := range v.Map {
			ov, ok := o.Map[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	case KindIMap:
		if v.IMap.Len() != o.IMap.Len() {
			return false
		}
		for _, k := range v.IMap.Keys() {
			vv, _ := v.IMap.Get(k)
			ov, ok := o.IMap.Get(k)
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
