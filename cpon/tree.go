package cpon

import (
	"fmt"
	"io"

	cp "github.com/shvgo/shv/chainpack"
)

// PackValue writes a fully materialized chainpack.Value tree as CP-text.
func PackValue(w io.Writer, v *cp.Value) (int, error) {
	p := NewPacker(w)
	return packValue(p, v)
}

func packValue(p *Packer, v *cp.Value) (int, error) {
	if v.Meta != nil {
		n1, err := p.PackItem(&cp.Item{Kind: cp.KindMeta})
		if err != nil {
			return n1, err
		}
		n2, err := packIMapBody(p, v.Meta)
		n1 += n2
		if err != nil {
			return n1, err
		}
		n3, err := p.PackItem(&cp.Item{Kind: cp.KindContainerEnd})
		n1 += n3
		if err != nil {
			return n1, err
		}
		n4, err := packValueNoMeta(p, v)
		return n1 + n4, err
	}
	return packValueNoMeta(p, v)
}

func packValueNoMeta(p *Packer, v *cp.Value) (int, error) {
	switch v.Kind {
	case cp.KindBlob:
		return p.PackItem(&cp.Item{Kind: cp.KindBlob, Chunk: cp.Chunk{Data: v.Blob, First: true, Last: true}})
	case cp.KindString:
		return p.PackItem(&cp.Item{Kind: cp.KindString, Chunk: cp.Chunk{Data: []byte(v.Str), First: true, Last: true}})
	case cp.KindList:
		n, err := p.PackItem(&cp.Item{Kind: cp.KindList})
		if err != nil {
			return n, err
		}
		for _, child := range v.List {
			cn, err := packValue(p, child)
			n += cn
			if err != nil {
				return n, err
			}
		}
		cn, err := p.PackItem(&cp.Item{Kind: cp.KindContainerEnd})
		return n + cn, err
	case cp.KindMap:
		n, err := p.PackItem(&cp.Item{Kind: cp.KindMap})
		if err != nil {
			return n, err
		}
		for key, child := range v.Map {
			kn, err := p.PackItem(&cp.Item{Kind: cp.KindString, Chunk: cp.Chunk{Data: []byte(key), First: true, Last: true}})
			n += kn
			if err != nil {
				return n, err
			}
			cn, err := packValue(p, child)
			n += cn
			if err != nil {
				return n, err
			}
		}
		cn, err := p.PackItem(&cp.Item{Kind: cp.KindContainerEnd})
		return n + cn, err
	case cp.KindIMap:
		n, err := p.PackItem(&cp.Item{Kind: cp.KindIMap})
		if err != nil {
			return n, err
		}
		bn, err := packIMapBody(p, v.IMap)
		n += bn
		if err != nil {
			return n, err
		}
		cn, err := p.PackItem(&cp.Item{Kind: cp.KindContainerEnd})
		return n + cn, err
	default:
		return p.PackItem(&cp.Item{
			Kind:     v.Kind,
			Int:      v.Int,
			UInt:     v.UInt,
			Bool:     v.Bool,
			Double:   v.Double,
			Decimal:  v.Decimal,
			DateTime: v.DateTime,
		})
	}
}

func packIMapBody(p *Packer, m *cp.IMap) (int, error) {
	n := 0
	for _, key := range m.Keys() {
		child, _ := m.Get(key)
		kn, err := p.PackItem(&cp.Item{Kind: cp.KindInt, Int: key})
		n += kn
		if err != nil {
			return n, err
		}
		cn, err := packValue(p, child)
		n += cn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// UnpackValue reads one fully materialized chainpack.Value tree from
// CP-text, including an optional leading META prefix.
func UnpackValue(r io.Reader) (*cp.Value, error) {
	u := NewUnpacker(r)
	return unpackValue(u)
}

func unpackValue(u *Unpacker) (*cp.Value, error) {
	item, err := u.NextItem()
	if err != nil {
		return nil, err
	}
	return unpackValueFrom(u, item)
}

func unpackValueFrom(u *Unpacker, item cp.Item) (*cp.Value, error) {
	switch item.Kind {
	case cp.KindMeta:
		meta, err := unpackIMapBody(u)
		if err != nil {
			return nil, err
		}
		v, err := unpackValue(u)
		if err != nil {
			return nil, err
		}
		v.Meta = meta
		return v, nil
	case cp.KindNull:
		return cp.Null(), nil
	case cp.KindBool:
		return cp.Bool(item.Bool), nil
	case cp.KindInt:
		return cp.Int(item.Int), nil
	case cp.KindUInt:
		return cp.UInt(item.UInt), nil
	case cp.KindDouble:
		return cp.Double(item.Double), nil
	case cp.KindDecimal:
		return cp.DecimalValue(item.Decimal), nil
	case cp.KindDateTime:
		return cp.DateTimeValue(item.DateTime), nil
	case cp.KindBlob:
		data, err := readFullChunked(u, item)
		if err != nil {
			return nil, err
		}
		return cp.Blob(data), nil
	case cp.KindString:
		data, err := readFullChunked(u, item)
		if err != nil {
			return nil, err
		}
		return cp.Str(string(data)), nil
	case cp.KindList:
		var list []*cp.Value
		for {
			child, err := u.NextItem()
			if err != nil {
				return nil, err
			}
			if child.Kind == cp.KindContainerEnd {
				break
			}
			v, err := unpackValueFrom(u, child)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return &cp.Value{Kind: cp.KindList, List: list}, nil
	case cp.KindMap:
		m := map[string]*cp.Value{}
		for {
			keyItem, err := u.NextItem()
			if err != nil {
				return nil, err
			}
			if keyItem.Kind == cp.KindContainerEnd {
				break
			}
			if keyItem.Kind != cp.KindString {
				return nil, fmt.Errorf("cpon: map key must be a string, got %v", keyItem.Kind)
			}
			keyData, err := readFullChunked(u, keyItem)
			if err != nil {
				return nil, err
			}
			valItem, err := u.NextItem()
			if err != nil {
				return nil, err
			}
			v, err := unpackValueFrom(u, valItem)
			if err != nil {
				return nil, err
			}
			m[string(keyData)] = v
		}
		return &cp.Value{Kind: cp.KindMap, Map: m}, nil
	case cp.KindIMap:
		m, err := unpackIMapBody(u)
		if err != nil {
			return nil, err
		}
		return &cp.Value{Kind: cp.KindIMap, IMap: m}, nil
	default:
		return nil, fmt.Errorf("cpon: unexpected item kind %v at value start", item.Kind)
	}
}

func unpackIMapBody(u *Unpacker) (*cp.IMap, error) {
	m := cp.NewIMap()
	for {
		keyItem, err := u.NextItem()
		if err != nil {
			return nil, err
		}
		if keyItem.Kind == cp.KindContainerEnd {
			break
		}
		var key int64
		switch keyItem.Kind {
		case cp.KindInt:
			key = keyItem.Int
		case cp.KindUInt:
			key = int64(keyItem.UInt)
		default:
			return nil, fmt.Errorf("cpon: imap/meta key must be an integer, got %v", keyItem.Kind)
		}
		valItem, err := u.NextItem()
		if err != nil {
			return nil, err
		}
		v, err := unpackValueFrom(u, valItem)
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
	}
	return m, nil
}

// readFullChunked drains every chunk of a BLOB/STRING item (the first of
// which has already been read into `first`) into one contiguous buffer.
// The CP-text Unpacker always produces a single First+Last chunk per
// value, so this loop runs at most once in practice; it stays generic so
// Copy works the same way as the binary codec's.
func readFullChunked(u *Unpacker, first cp.Item) ([]byte, error) {
	data := append([]byte(nil), first.Chunk.Data...)
	for !first.Chunk.Last {
		next, err := u.NextItem()
		if err != nil {
			return nil, err
		}
		data = append(data, next.Chunk.Data...)
		first = next
	}
	return data, nil
}

// Copy pulls one logical value (including its META prefix, if present)
// from src and pushes it unchanged as CP-text into dst.
func Copy(dst *Packer, src *Unpacker) (int, error) {
	item, err := src.NextItem()
	if err != nil {
		return 0, err
	}
	return copyFrom(dst, src, item)
}

func copyFrom(dst *Packer, src *Unpacker, item cp.Item) (int, error) {
	n, err := dst.PackItem(&item)
	if err != nil {
		return n, err
	}

	switch item.Kind {
	case cp.KindList, cp.KindMap, cp.KindIMap:
		depth := 1
		for depth > 0 {
			child, err := src.NextItem()
			if err != nil {
				return n, err
			}
			if child.Kind == cp.KindContainerEnd {
				depth--
				cn, err := dst.PackItem(&child)
				n += cn
				if err != nil {
					return n, err
				}
				continue
			}
			cn, err := copyFrom(dst, src, child)
			n += cn
			if err != nil {
				return n, err
			}
		}
	case cp.KindMeta:
		depth := 1
		for depth > 0 {
			child, err := src.NextItem()
			if err != nil {
				return n, err
			}
			if child.Kind == cp.KindContainerEnd {
				depth--
				cn, err := dst.PackItem(&child)
				n += cn
				if err != nil {
					return n, err
				}
				continue
			}
			cn, err := copyFrom(dst, src, child)
			n += cn
			if err != nil {
				return n, err
			}
		}
		next, err := src.NextItem()
		if err != nil {
			return n, err
		}
		cn, err := copyFrom(dst, src, next)
		n += cn
		if err != nil {
			return n, err
		}
	case cp.KindBlob, cp.KindString:
		cur := item
		for !cur.Chunk.Last {
			next, err := src.NextItem()
			if err != nil {
				return n, err
			}
			cn, err := dst.PackItem(&next)
			n += cn
			if err != nil {
				return n, err
			}
			cur = next
		}
	}

	return n, nil
}
