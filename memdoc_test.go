package docstream

import (
	"bytes"
	"strings"
)

// In-memory document nodes, used to exercise the format-independent core
// without a wire codec.

func memDoc(v any) Document {
	switch x := v.(type) {
	case nil:
		return NewNull()
	case Undefined:
		return NewUndefined()
	case bool:
		return NewBool(x)
	case uint64:
		return NewUint(x)
	case int64:
		return NewInt(x)
	case int:
		return NewInt(int64(x))
	case float64:
		return NewFloat(x)
	case string:
		return NewTextString(strings.NewReader(x))
	case []byte:
		return NewByteString(bytes.NewReader(x))
	case []any:
		return NewArray(&memArray{items: x})
	case [][2]any:
		return NewMap(&memMap{pairs: x})
	default:
		panic("memDoc: unsupported value")
	}
}

type memArray struct {
	items []any
	i     int
}

func (a *memArray) Read() (Document, bool, error) {
	if a.i >= len(a.items) {
		return Document{}, false, nil
	}
	d := memDoc(a.items[a.i])
	a.i++
	return d, true, nil
}

type memMap struct {
	pairs        [][2]any
	i            int
	valuePending bool
}

func (m *memMap) ReadKey() (Document, bool, error) {
	if m.valuePending {
		m.valuePending = false
		m.i++
	}
	if m.i >= len(m.pairs) {
		return Document{}, false, nil
	}
	d := memDoc(m.pairs[m.i][0])
	m.valuePending = true
	return d, true, nil
}

func (m *memMap) ReadValue() (Document, error) {
	if !m.valuePending {
		panic("memMap: ReadValue without a preceding ReadKey")
	}
	m.valuePending = false
	d := memDoc(m.pairs[m.i][1])
	m.i++
	return d, nil
}
