package docstream

import (
	"fmt"
	"io"
	"sort"
)

// Undefined is the materialized form of an undefined document.
type Undefined struct{}

// Materialize fully reads a document into plain Go values: nil, Undefined{},
// bool, uint64, int64, float64, string (text), []byte (bytes), []any,
// map[any]any. Byte-string map keys become string so the result is hashable.
//
// This defeats the streaming model on purpose; it exists for tests, small
// documents and debugging.
func Materialize(d Document) (any, error) {
	switch d.Tag() {
	case TagUndefined:
		return Undefined{}, nil
	case TagNull:
		return nil, nil
	case TagBoolean:
		return d.Bool(), nil
	case TagUnsignedInt:
		return d.Uint(), nil
	case TagSignedInt:
		return d.Int(), nil
	case TagFloat:
		return d.Float(), nil
	case TagByteString:
		return io.ReadAll(d.ByteString())
	case TagTextString:
		return ReadAllString(d.TextString())
	case TagArray:
		a := d.Array()
		vals := []any{}
		for {
			elem, ok, err := a.Read()
			if err != nil {
				return nil, err
			}
			if !ok {
				return vals, nil
			}
			v, err := Materialize(elem)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
	case TagMap:
		m := d.Map()
		vals := map[any]any{}
		for {
			key, ok, err := m.ReadKey()
			if err != nil {
				return nil, err
			}
			if !ok {
				return vals, nil
			}
			k, err := Materialize(key)
			if err != nil {
				return nil, err
			}
			if b, isBytes := k.([]byte); isBytes {
				k = string(b)
			}
			value, err := m.ReadValue()
			if err != nil {
				return nil, err
			}
			v, err := Materialize(value)
			if err != nil {
				return nil, err
			}
			vals[k] = v
		}
	default:
		return nil, fmt.Errorf("docstream: cannot materialize %s document", d.Tag())
	}
}

// WriteValue emits a plain Go value through a writer position. Accepted
// types: nil, Undefined{}, booleans, all integer kinds, float32/float64,
// string, []byte, []any, map[string]any, map[uint64]any, map[any]any, and
// Document (copied via CopyDocument). Maps with sortable key types are
// emitted in sorted key order; map[any]any entries go out in iteration
// order.
func WriteValue(w ValueWriter, v any) error {
	switch x := v.(type) {
	case nil:
		return w.WriteNull()
	case Undefined:
		return w.WriteUndefined()
	case bool:
		return w.WriteBool(x)
	case uint64:
		return w.WriteUint(x)
	case uint:
		return w.WriteUint(uint64(x))
	case uint8:
		return w.WriteUint(uint64(x))
	case uint16:
		return w.WriteUint(uint64(x))
	case uint32:
		return w.WriteUint(uint64(x))
	case int64:
		return writeInt(w, x)
	case int:
		return writeInt(w, int64(x))
	case int8:
		return writeInt(w, int64(x))
	case int16:
		return writeInt(w, int64(x))
	case int32:
		return writeInt(w, int64(x))
	case float32:
		return w.WriteFloat(float64(x))
	case float64:
		return w.WriteFloat(x)
	case string:
		sw, err := w.WriteTextStringLen(uint64(len(x)))
		if err != nil {
			return err
		}
		if _, err := io.WriteString(sw, x); err != nil {
			return err
		}
		return sw.Close()
	case []byte:
		sw, err := w.WriteByteStringLen(uint64(len(x)))
		if err != nil {
			return err
		}
		if _, err := sw.Write(x); err != nil {
			return err
		}
		return sw.Close()
	case []any:
		aw, err := w.WriteArrayLen(uint64(len(x)))
		if err != nil {
			return err
		}
		for _, elem := range x {
			ew, err := aw.Append()
			if err != nil {
				return err
			}
			if err := WriteValue(ew, elem); err != nil {
				return err
			}
		}
		return aw.Close()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		mw, err := w.WriteMapLen(uint64(len(x)))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeEntry(mw, k, x[k]); err != nil {
				return err
			}
		}
		return mw.Close()
	case map[uint64]any:
		keys := make([]uint64, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		mw, err := w.WriteMapLen(uint64(len(x)))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeEntry(mw, k, x[k]); err != nil {
				return err
			}
		}
		return mw.Close()
	case map[any]any:
		mw, err := w.WriteMapLen(uint64(len(x)))
		if err != nil {
			return err
		}
		for k, val := range x {
			if err := writeEntry(mw, k, val); err != nil {
				return err
			}
		}
		return mw.Close()
	case Document:
		return CopyDocument(w, x)
	default:
		return fmt.Errorf("docstream: cannot write value of type %T", v)
	}
}

func writeInt(w ValueWriter, v int64) error {
	if v >= 0 {
		return w.WriteUint(uint64(v))
	}
	return w.WriteInt(v)
}

func writeEntry(mw MapWriter, k, v any) error {
	kw, err := mw.AppendKey()
	if err != nil {
		return err
	}
	if err := WriteValue(kw, k); err != nil {
		return err
	}
	vw, err := mw.AppendValue()
	if err != nil {
		return err
	}
	return WriteValue(vw, v)
}

// CopyDocument streams a document from a reader tree into a writer position,
// preserving structure. String and container sizes are not declared on the
// output (sources do not know their sizes up front).
func CopyDocument(w ValueWriter, d Document) error {
	switch d.Tag() {
	case TagUndefined:
		return w.WriteUndefined()
	case TagNull:
		return w.WriteNull()
	case TagBoolean:
		return w.WriteBool(d.Bool())
	case TagUnsignedInt:
		return w.WriteUint(d.Uint())
	case TagSignedInt:
		return w.WriteInt(d.Int())
	case TagFloat:
		return w.WriteFloat(d.Float())
	case TagByteString:
		sw, err := w.WriteByteString()
		if err != nil {
			return err
		}
		if _, err := CopyStream(sw, d.ByteString()); err != nil {
			return err
		}
		return sw.Close()
	case TagTextString:
		sw, err := w.WriteTextString()
		if err != nil {
			return err
		}
		if _, err := CopyStream(sw, d.TextString()); err != nil {
			return err
		}
		return sw.Close()
	case TagArray:
		a := d.Array()
		aw, err := w.WriteArray()
		if err != nil {
			return err
		}
		for {
			elem, ok, err := a.Read()
			if err != nil {
				return err
			}
			if !ok {
				return aw.Close()
			}
			ew, err := aw.Append()
			if err != nil {
				return err
			}
			if err := CopyDocument(ew, elem); err != nil {
				return err
			}
		}
	case TagMap:
		m := d.Map()
		mw, err := w.WriteMap()
		if err != nil {
			return err
		}
		for {
			key, ok, err := m.ReadKey()
			if err != nil {
				return err
			}
			if !ok {
				return mw.Close()
			}
			kw, err := mw.AppendKey()
			if err != nil {
				return err
			}
			if err := CopyDocument(kw, key); err != nil {
				return err
			}
			value, err := m.ReadValue()
			if err != nil {
				return err
			}
			vw, err := mw.AppendValue()
			if err != nil {
				return err
			}
			if err := CopyDocument(vw, value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("docstream: cannot copy %s document", d.Tag())
	}
}
