package chainpack

import (
	"fmt"
	"io"
)

// bytelen returns the minimal number of big-endian bytes needed to hold v
// (0 for v == 0).
func bytelen(v uint64) int {
	n := 0
	for x := v; x > 0; x >>= 8 {
		n++
	}
	return n
}

// uvarintWidth picks the total encoded byte width for v, following the
// CP-binary variable-length unsigned integer layout (spec section 6.1):
// a 1-, 2-, 3- or 4-byte fixed form carrying 7/14/21/28 data bits, or a
// long form (lead byte 0b11110xxx) whose low 3 bits count additional
// 8-bit bytes beyond the first four.
func uvarintWidth(v uint64) int {
	switch {
	case v <= 1<<7-1:
		return 1
	case v <= 1<<14-1:
		return 2
	case v <= 1<<21-1:
		return 3
	case v <= 1<<28-1:
		return 4
	default:
		n := bytelen(v)
		if n < 4 {
			n = 4
		}
		return n + 1
	}
}

func sizeofUvarint(v uint64) int {
	return uvarintWidth(v)
}

func putUvarint(buf []byte, v uint64) int {
	width := uvarintWidth(v)
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		buf[0] = 0x80 | byte(v>>8)
		buf[1] = byte(v)
	case 3:
		buf[0] = 0xC0 | byte(v>>16)
		buf[1] = byte(v >> 8)
		buf[2] = byte(v)
	case 4:
		buf[0] = 0xE0 | byte(v>>24)
		buf[1] = byte(v >> 16)
		buf[2] = byte(v >> 8)
		buf[3] = byte(v)
	default:
		n := width - 1 // data bytes following the lead byte
		extra := n - 4
		buf[0] = 0xF0 | byte(extra)
		for i := 0; i < n; i++ {
			shift := uint(8 * (n - 1 - i))
			buf[1+i] = byte(v >> shift)
		}
	}
	return width
}

// byteReader is the minimal input chainpack needs to decode tags and
// varints one byte at a time, satisfied by bufio.Reader.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// PutUvarint encodes v into buf (which must be at least SizeofUvarint(v)
// bytes) using the wire's variable-length unsigned integer layout (spec
// section 6.1), for callers that need the raw encoding outside of a full
// Item — e.g. rpcframe's Block framing length prefix.
func PutUvarint(buf []byte, v uint64) int { return putUvarint(buf, v) }

// SizeofUvarint returns the encoded width of v under the same layout.
func SizeofUvarint(v uint64) int { return sizeofUvarint(v) }

// GetUvarint decodes one variable-length unsigned integer from r.
func GetUvarint(r byteReader) (uint64, int, error) { return getUvarint(r) }

func getUvarint(r byteReader) (uint64, int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint64(b0), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		return uint64(b0&0x3F)<<8 | uint64(b1), 2, nil
	case b0&0xE0 == 0xC0:
		v := uint64(b0 & 0x1F)
		for i := 0; i < 2; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			v = v<<8 | uint64(b)
		}
		return v, 3, nil
	case b0&0xF0 == 0xE0:
		v := uint64(b0 & 0x0F)
		for i := 0; i < 3; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			v = v<<8 | uint64(b)
		}
		return v, 4, nil
	case b0&0xF8 == 0xF0:
		n := 4 + int(b0&0x07)
		var v uint64
		for i := 0; i < n; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			v = v<<8 | uint64(b)
		}
		return v, n + 1, nil
	default:
		return 0, 0, fmt.Errorf("chainpack: invalid uvarint lead byte %#x", b0)
	}
}

// Signed integers reuse the unsigned varint's width tiers, but each tier
// gives up its top data bit to an explicit sign flag (spec section 6.1:
// "signed integers reuse the same layout with a sign bit at the high
// position of the extension bytes"): 0x40/0x20/0x10/0x08 for the 1..4
// byte forms, and the top bit of the first data byte for the long form.
// This is the embedded-sign-bit scheme from chainpack_pack_int, not
// zigzag — zigzag would pack differently than the wire expects (e.g.
// Int(-1) must be 0x41, not the zigzag encoding's 0x01).

// magnitude returns |v| as a uint64 without overflowing on
// math.MinInt64, whose negation doesn't fit in an int64.
func magnitude(v int64) uint64 {
	if v >= 0 {
		return uint64(v)
	}
	return uint64(-(v+1)) + 1
}

// signedFrom is magnitude's inverse: it rebuilds v from |v| and its
// sign, again without overflowing for the math.MinInt64 case.
func signedFrom(mag uint64, neg bool) int64 {
	if !neg {
		return int64(mag)
	}
	w := int64(mag - 1)
	return -w - 1
}

// intWidth picks the total encoded byte width for v, mirroring
// uvarintWidth's tiers but with one magnitude bit per tier reserved for
// the sign flag (caps 0x3F/0x1FFF/0xFFFFF/0x7FFFFFF instead of
// 0x7F/0x3FFF/0x1FFFFF/0xFFFFFFF). The long form stores the sign as the
// high bit of the first data byte, so whenever the magnitude's natural
// minimal-byte encoding already uses that bit, one extra byte is added
// to make room for it.
func intWidth(v int64) int {
	mag := magnitude(v)
	switch {
	case mag <= 0x3F:
		return 1
	case mag <= 0x1FFF:
		return 2
	case mag <= 0xFFFFF:
		return 3
	case mag <= 0x7FFFFFF:
		return 4
	default:
		n := bytelen(mag)
		if n < 4 {
			n = 4
		}
		topByte := byte(mag >> uint(8*(n-1)))
		if topByte&0x80 != 0 {
			n++
		}
		return n + 1
	}
}

func sizeofVarint(v int64) int {
	return intWidth(v)
}

func putVarint(buf []byte, v int64) int {
	neg := v < 0
	mag := magnitude(v)
	width := intWidth(v)
	switch width {
	case 1:
		buf[0] = byte(mag)
		if neg {
			buf[0] |= 0x40
		}
	case 2:
		buf[0] = 0x80 | byte(mag>>8)
		buf[1] = byte(mag)
		if neg {
			buf[0] |= 0x20
		}
	case 3:
		buf[0] = 0xC0 | byte(mag>>16)
		buf[1] = byte(mag >> 8)
		buf[2] = byte(mag)
		if neg {
			buf[0] |= 0x10
		}
	case 4:
		buf[0] = 0xE0 | byte(mag>>24)
		buf[1] = byte(mag >> 16)
		buf[2] = byte(mag >> 8)
		buf[3] = byte(mag)
		if neg {
			buf[0] |= 0x08
		}
	default:
		n := width - 1
		extra := n - 4
		buf[0] = 0xF0 | byte(extra)
		for i := 0; i < n; i++ {
			shift := uint(8 * (n - 1 - i))
			buf[1+i] = byte(mag >> shift)
		}
		if neg {
			buf[1] |= 0x80
		}
	}
	return width
}

// PutVarint encodes v into buf (which must be at least SizeofVarint(v)
// bytes) using the wire's embedded-sign-bit signed integer layout.
func PutVarint(buf []byte, v int64) int { return putVarint(buf, v) }

// SizeofVarint returns the encoded width of v under the same layout.
func SizeofVarint(v int64) int { return sizeofVarint(v) }

// GetVarint decodes one embedded-sign-bit signed integer from r.
func GetVarint(r byteReader) (int64, int, error) { return getVarint(r) }

func getVarint(r byteReader) (int64, int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		neg := b0&0x40 != 0
		mag := uint64(b0 & 0x3F)
		return signedFrom(mag, neg), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		neg := b0&0x20 != 0
		mag := uint64(b0&0x1F)<<8 | uint64(b1)
		return signedFrom(mag, neg), 2, nil
	case b0&0xE0 == 0xC0:
		neg := b0&0x10 != 0
		mag := uint64(b0 & 0x0F)
		for i := 0; i < 2; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			mag = mag<<8 | uint64(b)
		}
		return signedFrom(mag, neg), 3, nil
	case b0&0xF0 == 0xE0:
		neg := b0&0x08 != 0
		mag := uint64(b0 & 0x07)
		for i := 0; i < 3; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			mag = mag<<8 | uint64(b)
		}
		return signedFrom(mag, neg), 4, nil
	case b0&0xF8 == 0xF0:
		n := 4 + int(b0&0x07)
		buf := make([]byte, n)
		for i := 0; i < n; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			buf[i] = b
		}
		neg := buf[0]&0x80 != 0
		buf[0] &= 0x7F
		var mag uint64
		for _, b := range buf {
			mag = mag<<8 | uint64(b)
		}
		return signedFrom(mag, neg), n + 1, nil
	default:
		return 0, 0, fmt.Errorf("chainpack: invalid varint lead byte %#x", b0)
	}
}
