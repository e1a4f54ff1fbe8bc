package cpon

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	cp "github.com/shvgo/shv/chainpack"
)

var cmpValue = cmp.Comparer(func(a, b *cp.Value) bool { return a.Equal(b) })

func roundTrip(t *testing.T, v *cp.Value) *cp.Value {
	t.Helper()
	var buf bytes.Buffer
	if _, err := PackValue(&buf, v); err != nil {
		t.Fatalf("pack: %v (text=%q)", err, buf.String())
	}
	got, err := UnpackValue(&buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []*cp.Value{
		cp.Null(),
		cp.Bool(true),
		cp.Bool(false),
		cp.Int(0),
		cp.Int(63),
		cp.Int(-123456789),
		cp.UInt(0),
		cp.UInt(math.MaxUint32),
		cp.Str(""),
		cp.Str("hello, world"),
		cp.Str("with \"quotes\" and \\backslash\\"),
		cp.Blob([]byte{0, 1, 2, 3, 0xff}),
		cp.DecimalValue(cp.Decimal{Mantissa: 125, Exponent: -2}),
		cp.DecimalValue(cp.Decimal{Mantissa: -5, Exponent: 3}),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		if !v.Equal(got) {
			t.Errorf("round trip mismatch for %+v: got %+v", v, got)
		}
	}
}

func TestDecimalCanonicalForm(t *testing.T) {
	cases := []struct {
		d    cp.Decimal
		want string
	}{
		{cp.Decimal{Mantissa: 125, Exponent: -2}, "1.25"},
		{cp.Decimal{Mantissa: 125, Exponent: 2}, "12500."},
		{cp.Decimal{Mantissa: 1, Exponent: -10}, "1e-10"},
		{cp.Decimal{Mantissa: 1, Exponent: 7}, "1e7"},
	}
	for _, c := range cases {
		got := formatDecimal(c.d)
		if got != c.want {
			t.Errorf("formatDecimal(%+v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestRoundTripContainers(t *testing.T) {
	v := cp.List(
		cp.Int(1),
		cp.Int(2),
		cp.Str("three"),
		cp.List(cp.Int(4), cp.Int(5)),
		cp.Map(map[string]*cp.Value{"a": cp.Int(1), "b": cp.Str("two")}),
	)
	got := roundTrip(t, v)
	if diff := cmp.Diff(v, got, cmpValue); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripIMapAndMeta(t *testing.T) {
	im := cp.NewIMap()
	im.Set(1, cp.Int(42))
	im.Set(2, cp.Str("ok"))
	v := cp.IMapValue(im)
	got := roundTrip(t, v)
	if !v.Equal(got) {
		t.Errorf("imap round trip mismatch")
	}

	meta := cp.NewIMap()
	meta.Set(1, cp.Int(1))
	withMeta := cp.List(cp.Int(1), cp.Int(2), cp.Int(3))
	withMeta.Meta = meta
	got2 := roundTrip(t, withMeta)
	if got2.Meta == nil {
		t.Fatalf("expected meta to survive round trip")
	}
	if mv, ok := got2.Meta.Get(1); !ok || !mv.Equal(cp.Int(1)) {
		t.Errorf("meta field 1 mismatch: %+v", got2.Meta)
	}
	if !withMeta.Equal(got2) {
		t.Errorf("list-with-meta round trip mismatch")
	}
}

func TestPackMapUsesColonAndComma(t *testing.T) {
	var buf bytes.Buffer
	v := cp.Map(map[string]*cp.Value{"a": cp.Int(1)})
	if _, err := PackValue(&buf, v); err != nil {
		t.Fatalf("pack: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, `"a":1`) {
		t.Errorf("expected colon-separated map entry, got %q", got)
	}
}

func TestPackListUsesComma(t *testing.T) {
	var buf bytes.Buffer
	if _, err := PackValue(&buf, cp.List(cp.Int(1), cp.Int(2), cp.Int(3))); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if got := buf.String(); got != "[1,2,3]" {
		t.Errorf("got %q, want [1,2,3]", got)
	}
}

func TestHexBlob(t *testing.T) {
	var buf bytes.Buffer
	p := NewPacker(&buf)
	if _, err := p.PackItem(&cp.Item{Kind: cp.KindBlob, Chunk: cp.Chunk{Data: []byte{0xde, 0xad, 0xbe, 0xef}, First: true, Last: true, Hex: true}}); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if got := buf.String(); got != `x"DEADBEEF"` {
		t.Errorf("got %q, want x\"DEADBEEF\"", got)
	}

	u := NewUnpacker(bytes.NewReader(buf.Bytes()))
	item, err := u.NextItem()
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if !bytes.Equal(item.Chunk.Data, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("hex blob round trip mismatch: %x", item.Chunk.Data)
	}
}

func TestSkipsCommentsAndWhitespace(t *testing.T) {
	src := "[ 1, /* comment */ 2,\n\t3 ]"
	u := NewUnpacker(strings.NewReader(src))
	var got []int64
	for {
		item, err := u.NextItem()
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		if item.Kind == cp.KindContainerEnd {
			break
		}
		if item.Kind == cp.KindList {
			continue
		}
		got = append(got, item.Int)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestMaxDepthElision(t *testing.T) {
	var buf bytes.Buffer
	p := NewPacker(&buf)
	p.MaxDepth = 1
	v := cp.List(cp.List(cp.List(cp.Int(1))))
	if _, err := packValue(p, v); err != nil {
		t.Fatalf("pack: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "…") {
		t.Errorf("expected elision marker in %q", got)
	}
	opens := strings.Count(got, "[")
	closes := strings.Count(got, "]")
	if opens != closes {
		t.Errorf("unbalanced brackets in elided output: %q", got)
	}
}

func TestCopyPreservesStructure(t *testing.T) {
	var src bytes.Buffer
	meta := cp.NewIMap()
	meta.Set(1, cp.Int(42))
	v := cp.List(cp.Int(1), cp.Int(2), cp.Int(3))
	v.Meta = meta
	if _, err := PackValue(&src, v); err != nil {
		t.Fatalf("pack: %v", err)
	}

	u := NewUnpacker(bytes.NewReader(src.Bytes()))
	var dst bytes.Buffer
	p := NewPacker(&dst)
	if _, err := Copy(p, u); err != nil {
		t.Fatalf("copy: %v", err)
	}

	got, err := UnpackValue(bytes.NewReader(dst.Bytes()))
	if err != nil {
		t.Fatalf("unpack copied text: %v", err)
	}
	if !v.Equal(got) {
		t.Errorf("copy did not preserve structure: want %+v got %+v", v, got)
	}
}
