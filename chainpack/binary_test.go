package chainpack

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var cmpValue = cmp.Comparer(func(a, b *Value) bool { return a.Equal(b) })

func roundTrip(t *testing.T, v *Value) *Value {
	t.Helper()
	var buf bytes.Buffer
	if _, err := PackValue(&buf, v); err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := UnpackValue(&buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []*Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(63),
		Int(64),
		Int(-1),
		Int(-123456789),
		UInt(0),
		UInt(63),
		UInt(64),
		UInt(math.MaxUint32),
		Double(1.5),
		Double(-0.0),
		Str(""),
		Str("hello, world"),
		Blob([]byte{0, 1, 2, 3, 0xff}),
		DecimalValue(Decimal{Mantissa: 125, Exponent: -2}),
	}

	for _, v := range cases {
		got := roundTrip(t, v)
		if !v.Equal(got) {
			t.Errorf("round trip mismatch for %+v: got %+v", v, got)
		}
	}
}

func TestRoundTripDateTime(t *testing.T) {
	dt := DateTime{EpochMs: ChainpackEpochMs + 1234567, OffsetMin: 120, HasOffset: true}
	got := roundTrip(t, DateTimeValue(dt))
	if got.Kind != KindDateTime {
		t.Fatalf("expected datetime, got %v", got.Kind)
	}
	if got.DateTime != dt {
		t.Errorf("datetime mismatch: want %+v got %+v", dt, got.DateTime)
	}
}

func TestRoundTripContainers(t *testing.T) {
	v := List(
		Int(1),
		Int(2),
		Str("three"),
		List(Int(4), Int(5)),
		Map(map[string]*Value{"a": Int(1), "b": Str("two")}),
	)
	got := roundTrip(t, v)
	if diff := cmp.Diff(v, got, cmpValue); diff != "" {
		t.Errorf("round trip mismatch for list/map container (-want +got):\n%s", diff)
	}
}

func TestRoundTripIMapAndMeta(t *testing.T) {
	im := NewIMap()
	im.Set(1, Int(42))
	im.Set(2, Str("ok"))
	v := IMapValue(im)
	got := roundTrip(t, v)
	if !v.Equal(got) {
		t.Errorf("imap round trip mismatch")
	}

	meta := NewIMap()
	meta.Set(1, Int(1))
	withMeta := List(Int(1), Int(2), Int(3))
	withMeta.Meta = meta
	got2 := roundTrip(t, withMeta)
	if got2.Meta == nil {
		t.Fatalf("expected meta to survive round trip")
	}
	if mv, ok := got2.Meta.Get(1); !ok || !mv.Equal(Int(1)) {
		t.Errorf("meta field 1 mismatch: %+v", got2.Meta)
	}
	if !withMeta.Equal(got2) {
		t.Errorf("list-with-meta round trip mismatch")
	}
}

func TestCompactIntTagFastPath(t *testing.T) {
	var buf bytes.Buffer
	if _, err := PackValue(&buf, Int(10)); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("expected 1-byte compact encoding for small int, got %d bytes", buf.Len())
	}
	if buf.Bytes()[0] != tagCompactIntBase+10 {
		t.Fatalf("expected compact tag byte, got %#x", buf.Bytes()[0])
	}
}

func TestContainerBalance(t *testing.T) {
	v := List(List(List(Int(1))), Int(2))
	var buf bytes.Buffer
	if _, err := PackValue(&buf, v); err != nil {
		t.Fatalf("pack: %v", err)
	}
	opens, closes := 0, 0
	for _, b := range buf.Bytes() {
		switch b {
		case tagList, tagMap, tagIMap, tagMeta:
			opens++
		case tagContainerEnd:
			closes++
		}
	}
	if opens != closes {
		t.Fatalf("unbalanced containers: %d opens vs %d closes", opens, closes)
	}
}

func TestChunkedBlobStream(t *testing.T) {
	var buf bytes.Buffer
	p := NewPacker(&buf)
	if _, err := p.PackItem(&Item{Kind: KindBlob, Chunk: Chunk{Data: []byte("abc"), First: true, Stream: true}}); err != nil {
		t.Fatalf("pack first chunk: %v", err)
	}
	if _, err := p.PackItem(&Item{Kind: KindBlob, Chunk: Chunk{Data: []byte("defg"), Last: true}}); err != nil {
		t.Fatalf("pack last chunk: %v", err)
	}

	u := NewUnpacker(&buf)
	first, err := u.NextItem()
	if err != nil {
		t.Fatalf("unpack first: %v", err)
	}
	if !first.Chunk.First || first.Chunk.Last {
		t.Fatalf("expected FIRST-only chunk, got %+v", first.Chunk)
	}
	second, err := u.NextItem()
	if err != nil {
		t.Fatalf("unpack second: %v", err)
	}
	if second.Chunk.Last {
		t.Fatalf("expected a data chunk, not yet the terminator, got %+v", second.Chunk)
	}
	// The wire form terminates a BLOB's chunk chain with its own
	// zero-length chunk (spec section 4.1.1), so the LAST flag arrives
	// on a third, empty Item rather than riding along with "defg".
	term, err := u.NextItem()
	if err != nil {
		t.Fatalf("unpack terminator: %v", err)
	}
	if !term.Chunk.Last || len(term.Chunk.Data) != 0 {
		t.Fatalf("expected empty LAST terminator chunk, got %+v", term.Chunk)
	}
	got := append(append([]byte(nil), first.Chunk.Data...), second.Chunk.Data...)
	if string(got) != "abcdefg" {
		t.Fatalf("reconstructed blob mismatch: %q", got)
	}
}

func TestCopyPreservesBytes(t *testing.T) {
	var src bytes.Buffer
	meta := NewIMap()
	meta.Set(1, Int(42))
	v := List(Int(1), Int(2), Int(3))
	v.Meta = meta
	if _, err := PackValue(&src, v); err != nil {
		t.Fatalf("pack: %v", err)
	}

	u := NewUnpacker(bytes.NewReader(src.Bytes()))
	var dst bytes.Buffer
	p := NewPacker(&dst)
	if _, err := Copy(p, u, make([]byte, 64)); err != nil {
		t.Fatalf("copy: %v", err)
	}

	if !bytes.Equal(src.Bytes(), dst.Bytes()) {
		t.Fatalf("copy did not preserve bytes:\nsrc=%x\ndst=%x", src.Bytes(), dst.Bytes())
	}
}

func TestRejectsDeprecatedTags(t *testing.T) {
	for _, tag := range []byte{tagDateTimeEpochDeprecated, tagCStringEndDeprecated} {
		u := NewUnpacker(bytes.NewReader([]byte{tag}))
		if _, err := u.NextItem(); err == nil {
			t.Errorf("expected error decoding deprecated tag %#x", tag)
		}
	}
}
