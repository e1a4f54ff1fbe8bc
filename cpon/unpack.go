package cpon

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	cp "github.com/shvgo/shv/chainpack"
)

// Unpacker reads a stream of chainpack.Items from CP-text bytes. It keeps
// a stack of open container kinds so it can validate matching close
// brackets, just as the Packer keeps a per-depth stack for
// pretty-printing.
type Unpacker struct {
	r     *bufio.Reader
	stack []cp.Kind
}

func NewUnpacker(r io.Reader) *Unpacker {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Unpacker{r: br}
}

func (u *Unpacker) peekByte() (byte, error) {
	b, err := u.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (u *Unpacker) skipWS() error {
	for {
		b, err := u.peekByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			u.r.ReadByte()
		case '/':
			two, err := u.r.Peek(2)
			if err != nil || len(two) < 2 || two[1] != '*' {
				return nil
			}
			u.r.Discard(2)
			for {
				bb, err := u.r.ReadByte()
				if err != nil {
					return err
				}
				if bb == '*' {
					nb, err := u.peekByte()
					if err == nil && nb == '/' {
						u.r.ReadByte()
						break
					}
				}
			}
		default:
			return nil
		}
	}
}

// NextItem reads and returns the next Item.
func (u *Unpacker) NextItem() (cp.Item, error) {
	if err := u.skipWS(); err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	b, err := u.peekByte()
	if err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}

	switch b {
	case ',', ':':
		u.r.ReadByte()
		return u.NextItem()
	case ']', '}', '>':
		u.r.ReadByte()
		if len(u.stack) == 0 {
			return cp.Item{Kind: cp.KindInvalid}, fmt.Errorf("cpon: unexpected close %q", b)
		}
		u.stack = u.stack[:len(u.stack)-1]
		return cp.Item{Kind: cp.KindContainerEnd}, nil
	case '[':
		u.r.ReadByte()
		u.stack = append(u.stack, cp.KindList)
		return cp.Item{Kind: cp.KindList}, nil
	case '{':
		u.r.ReadByte()
		u.stack = append(u.stack, cp.KindMap)
		return cp.Item{Kind: cp.KindMap}, nil
	case '<':
		u.r.ReadByte()
		u.stack = append(u.stack, cp.KindMeta)
		return cp.Item{Kind: cp.KindMeta}, nil
	case 'i':
		two, err := u.r.Peek(2)
		if err == nil && len(two) == 2 && two[1] == '{' {
			u.r.Discard(2)
			u.stack = append(u.stack, cp.KindIMap)
			return cp.Item{Kind: cp.KindIMap}, nil
		}
		return cp.Item{Kind: cp.KindInvalid}, fmt.Errorf("cpon: unexpected byte %q", b)
	case 'n':
		return u.readLiteral("null", cp.Item{Kind: cp.KindNull})
	case 't':
		return u.readLiteral("true", cp.Item{Kind: cp.KindBool, Bool: true})
	case 'f':
		return u.readLiteral("false", cp.Item{Kind: cp.KindBool, Bool: false})
	case '"':
		return u.readString()
	case 'b':
		return u.readBlob(false)
	case 'x':
		return u.readBlob(true)
	case 'd':
		return u.readDateTime()
	default:
		if b == '-' || (b >= '0' && b <= '9') {
			return u.readNumber()
		}
		return cp.Item{Kind: cp.KindInvalid}, fmt.Errorf("cpon: unexpected byte %q", b)
	}
}

func (u *Unpacker) readLiteral(lit string, item cp.Item) (cp.Item, error) {
	buf := make([]byte, len(lit))
	if _, err := io.ReadFull(u.r, buf); err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	if string(buf) != lit {
		return cp.Item{Kind: cp.KindInvalid}, fmt.Errorf("cpon: expected literal %q, got %q", lit, buf)
	}
	return item, nil
}

func (u *Unpacker) readQuoted() (string, error) {
	if _, err := u.r.ReadByte(); err != nil { // opening quote
		return "", err
	}
	var b strings.Builder
	for {
		c, err := u.r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == '"' {
			break
		}
		if c == '\\' {
			e, err := u.r.ReadByte()
			if err != nil {
				return "", err
			}
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'x':
				hex := make([]byte, 2)
				if _, err := io.ReadFull(u.r, hex); err != nil {
					return "", err
				}
				v, err := strconv.ParseUint(string(hex), 16, 8)
				if err != nil {
					return "", err
				}
				b.WriteByte(byte(v))
			default:
				b.WriteByte(e)
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

func (u *Unpacker) readString() (cp.Item, error) {
	s, err := u.readQuoted()
	if err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	return cp.Item{Kind: cp.KindString, Chunk: cp.Chunk{Data: []byte(s), First: true, Last: true}}, nil
}

func (u *Unpacker) readBlob(hex bool) (cp.Item, error) {
	u.r.ReadByte() // consume 'b' or 'x' prefix
	s, err := u.readQuoted()
	if err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	var data []byte
	if hex {
		if len(s)%2 != 0 {
			return cp.Item{Kind: cp.KindInvalid}, fmt.Errorf("cpon: odd-length hex blob")
		}
		data = make([]byte, len(s)/2)
		for i := 0; i < len(data); i++ {
			v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
			if err != nil {
				return cp.Item{Kind: cp.KindInvalid}, err
			}
			data[i] = byte(v)
		}
	} else {
		data = []byte(s)
	}
	return cp.Item{Kind: cp.KindBlob, Chunk: cp.Chunk{Data: data, First: true, Last: true, Hex: hex}}, nil
}

func (u *Unpacker) readDateTime() (cp.Item, error) {
	u.r.ReadByte() // consume 'd'
	s, err := u.readQuoted()
	if err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	dt, err := parseDateTime(s)
	if err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	return cp.Item{Kind: cp.KindDateTime, DateTime: dt}, nil
}

func parseDateTime(s string) (cp.DateTime, error) {
	layouts := []string{
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
	}
	var t time.Time
	var err error
	for _, layout := range layouts {
		t, err = time.Parse(layout, s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return cp.DateTime{}, fmt.Errorf("cpon: invalid datetime %q: %w", s, err)
	}
	return cp.NewDateTime(t), nil
}

func (u *Unpacker) readNumber() (cp.Item, error) {
	var raw strings.Builder
	neg := false
	if b, _ := u.peekByte(); b == '-' {
		neg = true
		raw.WriteByte(b)
		u.r.ReadByte()
	}
	hasDot, hasExp := false, false
	for {
		b, err := u.peekByte()
		if err != nil {
			break
		}
		switch {
		case b >= '0' && b <= '9':
			raw.WriteByte(b)
			u.r.ReadByte()
		case b == '.' && !hasDot && !hasExp:
			hasDot = true
			raw.WriteByte(b)
			u.r.ReadByte()
		case (b == 'e' || b == 'E') && !hasExp:
			hasExp = true
			raw.WriteByte(b)
			u.r.ReadByte()
			if nb, err := u.peekByte(); err == nil && (nb == '+' || nb == '-') {
				raw.WriteByte(nb)
				u.r.ReadByte()
			}
		case b == 'u' && !hasDot && !hasExp:
			u.r.ReadByte()
			v, err := strconv.ParseUint(raw.String(), 10, 64)
			if err != nil {
				return cp.Item{Kind: cp.KindInvalid}, err
			}
			return cp.Item{Kind: cp.KindUInt, UInt: v}, nil
		default:
			goto done
		}
	}
done:
	text := raw.String()
	if !hasDot && !hasExp {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return cp.Item{Kind: cp.KindInvalid}, err
		}
		return cp.Item{Kind: cp.KindInt, Int: v}, nil
	}
	_ = neg
	mant, exp, err := parseDecimalText(text)
	if err != nil {
		return cp.Item{Kind: cp.KindInvalid}, err
	}
	return cp.Item{Kind: cp.KindDecimal, Decimal: cp.Decimal{Mantissa: mant, Exponent: exp}}, nil
}

// parseDecimalText canonicalizes a "123.45" or "123e-2" style literal
// into (mantissa, exponent) such that mantissa*10^exponent == the value,
// matching the canonical form from spec section 8's decimal example.
func parseDecimalText(s string) (int64, int32, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	mantPart := s
	exp := int32(0)
	if idx := strings.IndexAny(s, "eE"); idx >= 0 {
		mantPart = s[:idx]
		e, err := strconv.ParseInt(s[idx+1:], 10, 32)
		if err != nil {
			return 0, 0, err
		}
		exp = int32(e)
	}

	if dot := strings.IndexByte(mantPart, '.'); dot >= 0 {
		frac := mantPart[dot+1:]
		mantPart = mantPart[:dot] + frac
		exp -= int32(len(frac))
	}

	m, err := strconv.ParseInt(mantPart, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if neg {
		m = -m
	}
	return m, exp, nil
}
