package docstream

import (
	"fmt"
	"io"
)

// Document is the runtime union of the ten document kinds. Scalars are
// carried by value; strings, arrays and maps hold lazy single-pass readers
// bound to the underlying byte stream.
//
// Accessors panic when called on the wrong kind; use Tag or Is first when
// the kind is not known statically. A Document is single-pass and must not
// be copied once its payload reader has been touched.
type Document struct {
	tag Tag
	b   bool
	u   uint64
	i   int64
	f   float64
	str io.Reader
	arr ArrayReader
	m   MapReader
}

func NewUndefined() Document { return Document{tag: TagUndefined} }
func NewNull() Document      { return Document{tag: TagNull} }

func NewBool(v bool) Document { return Document{tag: TagBoolean, b: v} }

func NewUint(v uint64) Document { return Document{tag: TagUnsignedInt, u: v} }

// NewInt builds an integer document. Nonnegative values become unsigned_int,
// matching the wire-level convention of the supported formats.
func NewInt(v int64) Document {
	if v >= 0 {
		return NewUint(uint64(v))
	}
	return Document{tag: TagSignedInt, i: v}
}

func NewFloat(v float64) Document { return Document{tag: TagFloat, f: v} }

func NewByteString(r io.Reader) Document { return Document{tag: TagByteString, str: r} }
func NewTextString(r io.Reader) Document { return Document{tag: TagTextString, str: r} }

func NewArray(r ArrayReader) Document { return Document{tag: TagArray, arr: r} }
func NewMap(r MapReader) Document     { return Document{tag: TagMap, m: r} }

func (d Document) Tag() Tag { return d.tag }

func (d Document) Is(t Tag) bool { return d.tag == t }

func (d Document) Bool() bool {
	d.check(TagBoolean)
	return d.b
}

func (d Document) Uint() uint64 {
	d.check(TagUnsignedInt)
	return d.u
}

// Int returns the value of a signed_int document. It is always negative;
// nonnegative integers carry the unsigned_int tag.
func (d Document) Int() int64 {
	d.check(TagSignedInt)
	return d.i
}

func (d Document) Float() float64 {
	d.check(TagFloat)
	return d.f
}

func (d Document) ByteString() io.Reader {
	d.check(TagByteString)
	return d.str
}

func (d Document) TextString() io.Reader {
	d.check(TagTextString)
	return d.str
}

func (d Document) Array() ArrayReader {
	d.check(TagArray)
	return d.arr
}

func (d Document) Map() MapReader {
	d.check(TagMap)
	return d.m
}

// Node returns the concrete payload node: the scalar value, the string
// io.Reader, or the ArrayReader/MapReader. Use it to test for an exact
// implementation type.
func (d Document) Node() any {
	switch d.tag {
	case TagUndefined, TagNull:
		return nil
	case TagBoolean:
		return d.b
	case TagUnsignedInt:
		return d.u
	case TagSignedInt:
		return d.i
	case TagFloat:
		return d.f
	case TagByteString, TagTextString:
		return d.str
	case TagArray:
		return d.arr
	case TagMap:
		return d.m
	default:
		return nil
	}
}

// Visit dispatches over the inhabited alternative.
func (d Document) Visit(v Visitor) error {
	switch d.tag {
	case TagUndefined:
		return v.Undefined()
	case TagNull:
		return v.Null()
	case TagBoolean:
		return v.Bool(d.b)
	case TagUnsignedInt:
		return v.Uint(d.u)
	case TagSignedInt:
		return v.Int(d.i)
	case TagFloat:
		return v.Float(d.f)
	case TagByteString:
		return v.ByteString(d.str)
	case TagTextString:
		return v.TextString(d.str)
	case TagArray:
		return v.Array(d.arr)
	case TagMap:
		return v.Map(d.m)
	default:
		panic("docstream: Visit on zero Document")
	}
}

func (d Document) check(t Tag) {
	if d.tag != t {
		panic(fmt.Sprintf("docstream: %s accessor called on %s document", t, d.tag))
	}
}
