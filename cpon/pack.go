package cpon

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	cp "github.com/shvgo/shv/chainpack"
)

type frame struct {
	kind cp.Kind
	n    int
}

// Packer writes a stream of chainpack.Items as CP-text, tracking a
// per-depth pretty-print context (container kind, key/value position,
// first-element flag) so it can insert ","/":" separators and, once
// MaxDepth is exceeded, elide deeper content behind a single "…" token
// while still closing every bracket so the output stays valid CP-text at
// depth zero (spec section 4.1.2 and the logger-elision open question).
type Packer struct {
	w     io.Writer
	n     int
	stack []frame

	metaJustClosed bool

	elideFromDepth int
	MaxDepth       int // 0 = unlimited
}

func NewPacker(w io.Writer) *Packer {
	return &Packer{w: w}
}

func (p *Packer) depth() int { return len(p.stack) }

func (p *Packer) writeStr(s string) error {
	_, err := io.WriteString(p.w, s)
	if err == nil {
		p.n += len(s)
	}
	return err
}

func (p *Packer) suppressed() bool {
	return p.elideFromDepth != 0 && p.depth() >= p.elideFromDepth
}

// beforeValue emits the separator/colon required before the next value at
// the current top-of-stack context, per frame.n's parity for maps/imaps/
// meta. It is skipped entirely for the value immediately following a
// closed META prefix, since meta+value count as one logical slot.
func (p *Packer) beforeValue() error {
	if p.metaJustClosed {
		p.metaJustClosed = false
		return nil
	}
	if len(p.stack) == 0 {
		return nil
	}
	top := &p.stack[len(p.stack)-1]
	switch top.kind {
	case cp.KindList:
		if top.n > 0 {
			if err := p.writeStr(","); err != nil {
				return err
			}
		}
	case cp.KindMap, cp.KindIMap, cp.KindMeta:
		if top.n%2 == 0 {
			if top.n > 0 {
				if err := p.writeStr(","); err != nil {
					return err
				}
			}
		} else {
			if err := p.writeStr(":"); err != nil {
				return err
			}
		}
	}
	top.n++
	return nil
}

func openBracket(k cp.Kind) string {
	switch k {
	case cp.KindList:
		return "["
	case cp.KindMap:
		return "{"
	case cp.KindIMap:
		return "i{"
	case cp.KindMeta:
		return "<"
	default:
		return "?"
	}
}

func closeBracket(k cp.Kind) string {
	switch k {
	case cp.KindList:
		return "]"
	case cp.KindMap, cp.KindIMap:
		return "}"
	case cp.KindMeta:
		return ">"
	default:
		return "?"
	}
}

// PackItem writes one Item and returns the number of bytes written.
func (p *Packer) PackItem(item *cp.Item) (int, error) {
	start := p.n

	switch {
	case item.Kind == cp.KindContainerEnd:
		if len(p.stack) == 0 {
			return 0, fmt.Errorf("cpon: container end with no open container")
		}
		top := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		wasElided := p.elideFromDepth != 0 && p.depth()+1 == p.elideFromDepth
		if wasElided {
			p.elideFromDepth = 0
		}
		if !p.suppressed() {
			if err := p.writeStr(closeBracket(top.kind)); err != nil {
				return p.n - start, err
			}
		}
		if top.kind == cp.KindMeta {
			p.metaJustClosed = true
		}
		return p.n - start, nil

	case item.Kind.IsContainerStart():
		if !p.suppressed() {
			if err := p.beforeValue(); err != nil {
				return p.n - start, err
			}
			if err := p.writeStr(openBracket(item.Kind)); err != nil {
				return p.n - start, err
			}
		}
		p.stack = append(p.stack, frame{kind: item.Kind})
		if p.elideFromDepth == 0 && p.MaxDepth > 0 && p.depth() > p.MaxDepth {
			if err := p.writeStr("…"); err != nil {
				return p.n - start, err
			}
			p.elideFromDepth = p.depth()
		}
		return p.n - start, nil

	case item.Kind == cp.KindBlob || item.Kind == cp.KindString:
		if p.suppressed() {
			return 0, nil
		}
		if item.Chunk.First {
			if err := p.beforeValue(); err != nil {
				return p.n - start, err
			}
			if err := p.writeStr(chunkOpenQuote(item.Kind, item.Chunk.Hex)); err != nil {
				return p.n - start, err
			}
		}
		if err := p.writeStr(escapeChunk(item.Kind, item.Chunk)); err != nil {
			return p.n - start, err
		}
		if item.Chunk.Last {
			if err := p.writeStr("\""); err != nil {
				return p.n - start, err
			}
		}
		return p.n - start, nil

	default:
		if p.suppressed() {
			return 0, nil
		}
		if err := p.beforeValue(); err != nil {
			return p.n - start, err
		}
		if err := p.writeStr(formatScalar(item)); err != nil {
			return p.n - start, err
		}
		return p.n - start, nil
	}
}

func chunkOpenQuote(kind cp.Kind, hex bool) string {
	if kind == cp.KindBlob {
		if hex {
			return `x"`
		}
		return `b"`
	}
	return `"`
}

func escapeChunk(kind cp.Kind, c cp.Chunk) string {
	if kind == cp.KindBlob {
		if c.Hex {
			return strings.ToUpper(hexEncode(c.Data))
		}
		return escapeBytes(c.Data)
	}
	return escapeString(string(c.Data))
}

func formatScalar(item *cp.Item) string {
	switch item.Kind {
	case cp.KindNull:
		return "null"
	case cp.KindBool:
		if item.Bool {
			return "true"
		}
		return "false"
	case cp.KindInt:
		return strconv.FormatInt(item.Int, 10)
	case cp.KindUInt:
		return strconv.FormatUint(item.UInt, 10) + "u"
	case cp.KindDouble:
		s := strconv.FormatFloat(item.Double, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += "."
		}
		return s
	case cp.KindDecimal:
		return formatDecimal(item.Decimal)
	case cp.KindDateTime:
		return `d"` + formatDateTime(item.DateTime) + `"`
	default:
		return ""
	}
}

func formatDecimal(d cp.Decimal) string {
	if d.Exponent < -9 || d.Exponent > 6 {
		return strconv.FormatInt(d.Mantissa, 10) + "e" + strconv.FormatInt(int64(d.Exponent), 10)
	}

	neg := d.Mantissa < 0
	m := d.Mantissa
	if neg {
		m = -m
	}
	s := strconv.FormatInt(m, 10)
	exp := int(d.Exponent)

	var out string
	if exp >= 0 {
		out = s + strings.Repeat("0", exp) + "."
	} else {
		dotPos := len(s) + exp
		if dotPos <= 0 {
			s = strings.Repeat("0", 1-dotPos) + s
			dotPos = 1
		}
		out = s[:dotPos] + "." + s[dotPos:]
	}
	if neg {
		out = "-" + out
	}
	return out
}

func formatDateTime(d cp.DateTime) string {
	t := d.Time()
	if d.HasOffset && d.OffsetMin == 0 {
		return t.UTC().Format("2006-01-02T15:04:05.000") + "Z"
	}
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeBytes(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if c >= 0x20 && c < 0x7f {
				sb.WriteByte(c)
			} else {
				sb.WriteString(fmt.Sprintf(`\x%02x`, c))
			}
		}
	}
	return sb.String()
}

func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}
