package chainpack

import (
	"fmt"
	"io"
)

// PackValue writes a fully materialized Value tree. BLOB/STRING payloads
// are written as a single non-streaming chunk; callers that need to
// stream large payloads without materializing them should drive a
// Packer directly with a Chunk sequence instead.
func PackValue(w io.Writer, v *Value) (int, error) {
	p := NewPacker(w)
	return packValue(p, v)
}

func packValue(p *Packer, v *Value) (int, error) {
	if v.Meta != nil {
		n1, err := p.PackItem(&Item{Kind: KindMeta})
		if err != nil {
			return n1, err
		}
		n2, err := packIMapBody(p, v.Meta)
		n1 += n2
		if err != nil {
			return n1, err
		}
		n3, err := p.PackItem(&Item{Kind: KindContainerEnd})
		n1 += n3
		if err != nil {
			return n1, err
		}
		n4, err := packValueNoMeta(p, v)
		return n1 + n4, err
	}
	return packValueNoMeta(p, v)
}

func packValueNoMeta(p *Packer, v *Value) (int, error) {
	switch v.Kind {
	case KindBlob:
		return p.PackItem(&Item{Kind: KindBlob, Chunk: Chunk{Data: v.Blob, First: true, Last: true}})
	case KindString:
		return p.PackItem(&Item{Kind: KindString, Chunk: Chunk{Data: []byte(v.Str), First: true, Last: true}})
	case KindList:
		n, err := p.PackItem(&Item{Kind: KindList})
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
		cn, err := p.PackItem(&Item{Kind: KindContainerEnd})
		return n + cn, err
	case KindMap:
		n, err := p.PackItem(&Item{Kind: KindMap})
		if err != nil {
			return n, err
		}
		for key, child := range v.Map {
			kn, err := p.PackItem(&Item{Kind: KindString, Chunk: Chunk{Data: []byte(key), First: true, Last: true}})
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
		cn, err := p.PackItem(&Item{Kind: KindContainerEnd})
		return n + cn, err
	case KindIMap:
		n, err := p.PackItem(&Item{Kind: KindIMap})
		if err != nil {
			return n, err
		}
		bn, err := packIMapBody(p, v.IMap)
		n += bn
		if err != nil {
			return n, err
		}
		cn, err := p.PackItem(&Item{Kind: KindContainerEnd})
		return n + cn, err
	default:
		return p.PackItem(&Item{
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

func packIMapBody(p *Packer, m *IMap) (int, error) {
	n := 0
	for _, key := range m.Keys() {
		child, _ := m.Get(key)
		kn, err := p.PackItem(&Item{Kind: KindInt, Int: key})
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

// UnpackValue reads one fully materialized Value tree, including an
// optional leading META prefix.
func UnpackValue(r io.Reader) (*Value, error) {
	u := NewUnpacker(r)
	return unpackValue(u)
}

func unpackValue(u *Unpacker) (*Value, error) {
	item, err := u.NextItem()
	if err != nil {
		return nil, err
	}
	return unpackValueFrom(u, item)
}

// UnpackValueFrom reads one fully materialized Value tree from an
// Unpacker a caller already positioned (e.g. rpcframe's NextMessage,
// which returns an Unpacker sitting at a frame's first item) rather than
// a fresh io.Reader.
func UnpackValueFrom(u *Unpacker) (*Value, error) {
	return unpackValue(u)
}

func unpackValueFrom(u *Unpacker, item Item) (*Value, error) {
	switch item.Kind {
	case KindMeta:
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
	case KindNull:
		return Null(), nil
	case KindBool:
		return Bool(item.Bool), nil
	case KindInt:
		return Int(item.Int), nil
	case KindUInt:
		return UInt(item.UInt), nil
	case KindDouble:
		return Double(item.Double), nil
	case KindDecimal:
		return DecimalValue(item.Decimal), nil
	case KindDateTime:
		return DateTimeValue(item.DateTime), nil
	case KindBlob:
		data, err := readFullChunked(u, item)
		if err != nil {
			return nil, err
		}
		return Blob(data), nil
	case KindString:
		data, err := readFullChunked(u, item)
		if err != nil {
			return nil, err
		}
		return Str(string(data)), nil
	case KindList:
		var list []*Value
		for {
			child, err := u.NextItem()
			if err != nil {
				return nil, err
			}
			if child.Kind == KindContainerEnd {
				break
			}
			v, err := unpackValueFrom(u, child)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return &Value{Kind: KindList, List: list}, nil
	case KindMap:
		m := map[string]*Value{}
		for {
			keyItem, err := u.NextItem()
			if err != nil {
				return nil, err
			}
			if keyItem.Kind == KindContainerEnd {
				break
			}
			if keyItem.Kind != KindString {
				return nil, fmt.Errorf("chainpack: map key must be a string, got %v", keyItem.Kind)
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
		return &Value{Kind: KindMap, Map: m}, nil
	case KindIMap:
		m, err := unpackIMapBody(u)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindIMap, IMap: m}, nil
	default:
		return nil, fmt.Errorf("chainpack: unexpected item kind %v at value start", item.Kind)
	}
}

func unpackIMapBody(u *Unpacker) (*IMap, error) {
	m := NewIMap()
	for {
		keyItem, err := u.NextItem()
		if err != nil {
			return nil, err
		}
		if keyItem.Kind == KindContainerEnd {
			break
		}
		var key int64
		switch keyItem.Kind {
		case KindInt:
			key = keyItem.Int
		case KindUInt:
			key = int64(keyItem.UInt)
		default:
			return nil, fmt.Errorf("chainpack: imap/meta key must be an integer, got %v", keyItem.Kind)
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
func readFullChunked(u *Unpacker, first Item) ([]byte, error) {
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
// from src and pushes it unchanged into dst (spec section 4.1.3).
// chunkBuf is not used: each BLOB/STRING chunk is forwarded in the buffer
// the Unpacker allocated for it, so memory use per chunk follows the
// chunk sizes found on the wire rather than len(chunkBuf).
func Copy(dst *Packer, src *Unpacker, chunkBuf []byte) (int, error) {
	item, err := src.NextItem()
	if err != nil {
		return 0, err
	}
	return copyFrom(dst, src, item, chunkBuf)
}

func copyFrom(dst *Packer, src *Unpacker, item Item, buf []byte) (int, error) {
	n, err := dst.PackItem(&item)
	if err != nil {
		return n, err
	}

	switch item.Kind {
	case KindList, KindMap, KindIMap:
		depth := 1
		for depth > 0 {
			child, err := src.NextItem()
			if err != nil {
				return n, err
			}
			if child.Kind == KindContainerEnd {
				depth--
				cn, err := dst.PackItem(&child)
				n += cn
				if err != nil {
					return n, err
				}
				continue
			}
			cn, err := copyFrom(dst, src, child, buf)
			n += cn
			if err != nil {
				return n, err
			}
		}
	case KindMeta:
		// A META container's own body is IMap-shaped; once its
		// CONTAINER_END is copied, the value it annotates follows as
		// the next item on the wire and is part of the same logical
		// copy (spec section 3.1).
		depth := 1
		for depth > 0 {
			child, err := src.NextItem()
			if err != nil {
				return n, err
			}
			if child.Kind == KindContainerEnd {
				depth--
				cn, err := dst.PackItem(&child)
				n += cn
				if err != nil {
					return n, err
				}
				continue
			}
			cn, err := copyFrom(dst, src, child, buf)
			n += cn
			if err != nil {
				return n, err
			}
		}
		next, err := src.NextItem()
		if err != nil {
			return n, err
		}
		cn, err := copyFrom(dst, src, next, buf)
		n += cn
		if err != nil {
			return n, err
		}
	case KindBlob, KindString:
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
