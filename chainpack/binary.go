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

package chainpack

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Packer writes a stream of Items as CP-binary. It keeps no state besides
// which BLOB/STRING chunk sequence (if any) is currently open, matching
// the "no hidden parser state" contract in spec section 4.1.
type Packer struct {
	w         io.Writer
	chunkKind Kind // 0 (KindInvalid) when not mid chunk-stream
	nwritten  int
}

func NewPacker(w io.Writer) *Packer {
	return &Packer{w: w}
}

func (p *Packer) writeByte(b byte) error {
	_, err := p.w.Write([]byte{b})
	if err == nil {
		p.nwritten++
	}
	return err
}

func (p *Packer) write(b []byte) error {
	n, err := p.w.Write(b)
	p.nwritten += n
	return err
}

func (p *Packer) writeUvarint(v uint64) error {
	buf := make([]byte, sizeofUvarint(v))
	putUvarint(buf, v)
	return p.write(buf)
}

func (p *Packer) writeVarint(v int64) error {
	buf := make([]byte, sizeofVarint(v))
	putVarint(buf, v)
	return p.write(buf)
}

// PackItem writes one Item and returns the number of bytes written for it.
func (p *Packer) PackItem(item *Item) (int, error) {
	start := p.nwritten
	var err error

	switch item.Kind {
	case KindNull:
		err = p.writeByte(tagNull)
	case KindBool:
		if item.Bool {
			err = p.writeByte(tagTrue)
		} else {
			err = p.writeByte(tagFalse)
		}
	case KindInt:
		if item.Int >= 0 && item.Int <= tagCompactUIntMax {
			err = p.writeByte(tagCompactIntBase + byte(item.Int))
		} else {
			if err = p.writeByte(tagInt); err == nil {
				err = p.writeVarint(item.Int)
			}
		}
	case KindUInt:
		if item.UInt <= tagCompactUIntMax {
			err = p.writeByte(byte(item.UInt))
		} else {
			if err = p.writeByte(tagUInt); err == nil {
				err = p.writeUvarint(item.UInt)
			}
		}
	case KindDouble:
		if err = p.writeByte(tagDouble); err == nil {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(item.Double))
			err = p.write(buf[:])
		}
	case KindDecimal:
		if err = p.writeByte(tagDecimal); err == nil {
			if err = p.writeVarint(item.Decimal.Mantissa); err == nil {
				err = p.writeVarint(int64(item.Decimal.Exponent))
			}
		}
	case KindDateTime:
		if err = p.writeByte(tagDateTime); err == nil {
			err = p.writeVarint(encodeDateTime(item.DateTime))
		}
	case KindBlob:
		err = p.packBlob(item)
	case KindString:
		err = p.packString(item)
	case KindList:
		err = p.writeByte(tagList)
	case KindMap:
		err = p.writeByte(tagMap)
	case KindIMap:
		err = p.writeByte(tagIMap)
	case KindMeta:
		err = p.writeByte(tagMeta)
	case KindContainerEnd:
		err = p.writeByte(tagContainerEnd)
	default:
		err = fmt.Errorf("chainpack: cannot pack item kind %v", item.Kind)
	}

	return p.nwritten - start, err
}

// packBlob implements BLOB's wire form (tag 0x85): a chain of
// uvarint(chunk_len)+data chunks terminated by a zero-length chunk (spec
// section 3.1's tag table entry, expanded in section 4.1.1: "blobs have
// length-prefixed and chain-streamed [forms]; each chunk prefixed with
// its own length; terminated by a zero-length chunk"). There is only one
// tag, so the "plain" one-shot case is just the degenerate chain of one
// data chunk followed immediately by the terminator.
func (p *Packer) packBlob(item *Item) error {
	c := item.Chunk
	if c.First {
		if err := p.writeByte(tagBlob); err != nil {
			return err
		}
		p.chunkKind = KindBlob
	} else if p.chunkKind != KindBlob {
		return fmt.Errorf("chainpack: blob chunk continuation without a FIRST chunk")
	}

	if err := p.writeUvarint(uint64(len(c.Data))); err != nil {
		return err
	}
	if len(c.Data) > 0 {
		if err := p.write(c.Data); err != nil {
			return err
		}
	}

	if c.Last {
		p.chunkKind = KindInvalid
		if len(c.Data) > 0 {
			// A final chunk that carried data still needs the
			// zero-length terminator chunk after it; an already-empty
			// final chunk (including a one-shot empty BLOB) serves as
			// its own terminator and needs nothing further.
			return p.writeByte(0)
		}
	}
	return nil
}

// packString implements STRING's two distinct wire forms (spec section
// 4.1.1): tag 0x86 (length-prefixed) writes the total length once and
// then the raw bytes in a single shot; tag 0x8E (CSTRING) writes no
// length at all, just raw bytes per call terminated by a NUL byte on the
// LAST chunk. The two forms use different tags so the decoder never has
// to guess which one it's looking at.
func (p *Packer) packString(item *Item) error {
	c := item.Chunk
	streaming := c.Stream || !(c.First && c.Last)

	if c.First {
		tag := byte(tagString)
		if streaming {
			tag = tagCString
		}
		if err := p.writeByte(tag); err != nil {
			return err
		}
		if !streaming {
			if err := p.writeUvarint(uint64(len(c.Data))); err != nil {
				return err
			}
		} else {
			p.chunkKind = KindString
		}
	} else if p.chunkKind != KindString {
		return fmt.Errorf("chainpack: string chunk continuation without a FIRST chunk")
	}

	if len(c.Data) > 0 {
		if err := p.write(c.Data); err != nil {
			return err
		}
	}

	if c.Last && streaming {
		if err := p.writeByte(0); err != nil {
			return err
		}
		p.chunkKind = KindInvalid
	}
	return nil
}

// cstringChunkSize bounds how many bytes a single CSTRING decode chunk
// reads before yielding an Item, keeping decode memory-bounded even
// though the wire form carries no length prefix to split on.
const cstringChunkSize = 4096

// Unpacker reads a stream of Items from CP-binary bytes.
type Unpacker struct {
	r         *bufio.Reader
	chunkKind Kind // KindInvalid when not mid a chunked BLOB/STRING
	cstring   bool // true if the open chunk stream is a CSTRING (NUL-terminated, no length prefix)
}

func NewUnpacker(r io.Reader) *Unpacker {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Unpacker{r: br}
}

// NextItem reads and returns the next Item, or io.EOF when the underlying
// reader is exhausted between items. A decode failure returns a
// KindInvalid item alongside the error, per spec section 3.1's INVALID
// sentinel.
func (u *Unpacker) NextItem() (Item, error) {
	if u.chunkKind != KindInvalid {
		if u.cstring {
			return u.nextCStringChunk()
		}
		return u.nextBlobChunk()
	}

	tag, err := u.r.ReadByte()
	if err != nil {
		return Item{Kind: KindInvalid}, err
	}

	switch {
	case tag <= tagCompactUIntMax:
		return Item{Kind: KindUInt, UInt: uint64(tag)}, nil
	case tag >= tagCompactIntBase && tag <= tagCompactIntMax:
		return Item{Kind: KindInt, Int: int64(tag - tagCompactIntBase)}, nil
	}

	switch tag {
	case tagNull:
		return Item{Kind: KindNull}, nil
	case tagTrue:
		return Item{Kind: KindBool, Bool: true}, nil
	case tagFalse:
		return Item{Kind: KindBool, Bool: false}, nil
	case tagUInt:
		v, _, err := getUvarint(u.r)
		return Item{Kind: KindUInt, UInt: v}, err
	case tagInt:
		v, _, err := getVarint(u.r)
		return Item{Kind: KindInt, Int: v}, err
	case tagDouble:
		var buf [8]byte
		if _, err := io.ReadFull(u.r, buf[:]); err != nil {
			return Item{Kind: KindInvalid}, err
		}
		return Item{Kind: KindDouble, Double: math.Float64frombits(binary.BigEndian.Uint64(buf[:]))}, nil
	case tagDecimal:
		mant, _, err := getVarint(u.r)
		if err != nil {
			return Item{Kind: KindInvalid}, err
		}
		exp, _, err := getVarint(u.r)
		if err != nil {
			return Item{Kind: KindInvalid}, err
		}
		return Item{Kind: KindDecimal, Decimal: Decimal{Mantissa: mant, Exponent: int32(exp)}}, nil
	case tagDateTime:
		packed, _, err := getVarint(u.r)
		if err != nil {
			return Item{Kind: KindInvalid}, err
		}
		return Item{Kind: KindDateTime, DateTime: decodeDateTime(packed)}, nil
	case tagBlob:
		return u.startBlobChunk()
	case tagString:
		return u.readPlainString()
	case tagCString:
		return u.startCStringChunk()
	case tagList:
		return Item{Kind: KindList}, nil
	case tagMap:
		return Item{Kind: KindMap}, nil
	case tagIMap:
		return Item{Kind: KindIMap}, nil
	case tagMeta:
		return Item{Kind: KindMeta}, nil
	case tagContainerEnd:
		return Item{Kind: KindContainerEnd}, nil
	case tagDateTimeEpochDeprecated, tagCStringEndDeprecated:
		return Item{Kind: KindInvalid}, fmt.Errorf("chainpack: deprecated tag %#x is not supported", tag)
	default:
		return Item{Kind: KindInvalid}, fmt.Errorf("chainpack: unknown tag %#x", tag)
	}
}

// startBlobChunk reads the first chunk of a BLOB (tag 0x85 already
// consumed): uvarint(chunk_len) followed by that many bytes. A
// zero-length first chunk is an empty BLOB and needs no terminator of
// its own; otherwise more chunks (and eventually a zero-length
// terminator) follow via nextBlobChunk.
func (u *Unpacker) startBlobChunk() (Item, error) {
	data, ln, err := readLengthPrefixedChunk(u.r)
	if err != nil {
		return Item{Kind: KindInvalid}, err
	}
	if ln == 0 {
		return Item{Kind: KindBlob, Chunk: Chunk{First: true, Last: true}}, nil
	}
	u.chunkKind = KindBlob
	u.cstring = false
	return Item{Kind: KindBlob, Chunk: Chunk{Data: data, First: true, Stream: true}}, nil
}

func (u *Unpacker) nextBlobChunk() (Item, error) {
	data, ln, err := readLengthPrefixedChunk(u.r)
	if err != nil {
		return Item{Kind: KindInvalid}, err
	}
	if ln == 0 {
		u.chunkKind = KindInvalid
		return Item{Kind: KindBlob, Chunk: Chunk{Last: true, Stream: true}}, nil
	}
	return Item{Kind: KindBlob, Chunk: Chunk{Data: data, Stream: true}}, nil
}

func readLengthPrefixedChunk(r byteReader) ([]byte, uint64, error) {
	ln, _, err := getUvarint(r)
	if err != nil {
		return nil, 0, err
	}
	if ln == 0 {
		return nil, 0, nil
	}
	data := make([]byte, ln)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, 0, err
	}
	return data, ln, nil
}

// readPlainString reads STRING's length-prefixed wire form (tag 0x86
// already consumed): a single uvarint(total_len) followed by that many
// bytes, all in one shot.
func (u *Unpacker) readPlainString() (Item, error) {
	ln, _, err := getUvarint(u.r)
	if err != nil {
		return Item{Kind: KindInvalid}, err
	}
	data := make([]byte, ln)
	if ln > 0 {
		if _, err := io.ReadFull(u.r, data); err != nil {
			return Item{Kind: KindInvalid}, err
		}
	}
	return Item{Kind: KindString, Chunk: Chunk{Data: data, First: true, Last: true}}, nil
}

// startCStringChunk reads the first chunk of a CSTRING (tag 0x8E already
// consumed): raw bytes, no length prefix, up to cstringChunkSize or a
// terminating NUL, whichever comes first.
func (u *Unpacker) startCStringChunk() (Item, error) {
	data, last, err := readCStringChunk(u.r)
	if err != nil {
		return Item{Kind: KindInvalid}, err
	}
	if last {
		return Item{Kind: KindString, Chunk: Chunk{Data: data, First: true, Last: true, Stream: true}}, nil
	}
	u.chunkKind = KindString
	u.cstring = true
	return Item{Kind: KindString, Chunk: Chunk{Data: data, First: true, Stream: true}}, nil
}

func (u *Unpacker) nextCStringChunk() (Item, error) {
	data, last, err := readCStringChunk(u.r)
	if err != nil {
		return Item{Kind: KindInvalid}, err
	}
	if last {
		u.chunkKind = KindInvalid
	}
	return Item{Kind: KindString, Chunk: Chunk{Data: data, Last: last, Stream: true}}, nil
}

func readCStringChunk(r byteReader) ([]byte, bool, error) {
	var buf []byte
	for len(buf) < cstringChunkSize {
		b, err := r.ReadByte()
		if err != nil {
			return nil, false, err
		}
		if b == 0 {
			return buf, true, nil
		}
		buf = append(buf, b)
	}
	return buf, false, nil
}

func encodeDateTime(dt DateTime) int64 {
	ms := dt.EpochMs - ChainpackEpochMs
	noMsec := ms%1000 == 0
	val := ms
	if noMsec {
		val /= 1000
	}

	shift := uint(2)
	var offsetQ int64
	if dt.HasOffset {
		offsetQ = int64(dt.OffsetMin) / 15
		shift += 7
	}

	packed := val << shift
	if dt.HasOffset {
		packed |= (offsetQ & 0x7F) << 2
	}
	if noMsec {
		packed |= 2
	}
	if dt.HasOffset {
		packed |= 1
	}
	return packed
}

func decodeDateTime(packed int64) DateTime {
	hasOffset := packed&1 != 0
	noMsec := packed&2 != 0
	rest := packed >> 2

	var offsetMin int16
	if hasOffset {
		offsetQ := rest & 0x7F
		if offsetQ&0x40 != 0 {
			offsetQ |= ^int64(0x7F)
		}
		offsetMin = int16(offsetQ * 15)
		rest >>= 7
	}

	ms := rest
	if noMsec {
		ms *= 1000
	}
	return DateTime{EpochMs: ms + ChainpackEpochMs, OffsetMin: offsetMin, HasOffset: hasOffset}
}
