// Package msgpack implements the docstream reader and writer trees for
// MessagePack, on top of the token-level Encoder/Decoder API of
// github.com/vmihailenco/msgpack/v5.
//
// MessagePack has no indefinite-length containers, so WriteArray and
// WriteMap without a declared size are not representable and return a codec
// error; string payloads, with or without a declared size, are buffered until
// Close. On the read side string payloads are materialized by the underlying
// library before being served through the stream interface, a documented
// deviation from the zero-copy contract of the binary backends. Extension
// types and the undefined kind have no wire form: extensions are a codec
// error on read, undefined encodes as nil.
package msgpack

import (
	"bytes"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/andreyvit/docstream"
)

const formatName = "msgpack"

// Reader is a root MessagePack reader bound to a byte stream.
type Reader struct {
	c    *core
	used bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{c: &core{dec: msgpack.NewDecoder(r)}}
}

// Read parses the document header and returns the document. A clean end of
// stream before the first byte returns io.EOF.
func (r *Reader) Read() (docstream.Document, error) {
	if r.used {
		return docstream.Document{}, &docstream.MisuseError{Op: "Read", Msg: "root reader already produced its document"}
	}
	r.used = true
	c, err := r.c.dec.PeekCode()
	if err == io.EOF {
		return docstream.Document{}, r.c.fail(io.EOF)
	}
	if err != nil {
		return docstream.Document{}, r.c.fail(err)
	}
	return r.c.parseDocument(c)
}

// Read parses a single document from r. Shorthand for NewReader(r).Read().
func Read(r io.Reader) (docstream.Document, error) {
	return NewReader(r).Read()
}

type core struct {
	dec *msgpack.Decoder
	err error // sticky
}

func (c *core) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

func (c *core) corrupt(cause error, msg string, args ...any) error {
	return c.fail(docstream.CodecErrf(formatName, 0, cause, msg, args...))
}

func (c *core) parseNext() (docstream.Document, error) {
	if c.err != nil {
		return docstream.Document{}, c.err
	}
	code, err := c.dec.PeekCode()
	if err != nil {
		if err == io.EOF {
			return docstream.Document{}, c.corrupt(docstream.ErrUnexpectedEnd, "truncated item")
		}
		return docstream.Document{}, c.fail(err)
	}
	return c.parseDocument(code)
}

func (c *core) parseDocument(code byte) (docstream.Document, error) {
	switch {
	case code == msgpcode.Nil:
		if err := c.dec.DecodeNil(); err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewNull(), nil

	case code == msgpcode.True || code == msgpcode.False:
		v, err := c.dec.DecodeBool()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewBool(v), nil

	case msgpcode.IsFixedNum(code):
		v, err := c.dec.DecodeInt64()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewInt(v), nil

	case code == msgpcode.Uint8 || code == msgpcode.Uint16 || code == msgpcode.Uint32 || code == msgpcode.Uint64:
		v, err := c.dec.DecodeUint64()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewUint(v), nil

	case code == msgpcode.Int8 || code == msgpcode.Int16 || code == msgpcode.Int32 || code == msgpcode.Int64:
		v, err := c.dec.DecodeInt64()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewInt(v), nil

	case code == msgpcode.Float || code == msgpcode.Double:
		v, err := c.dec.DecodeFloat64()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewFloat(v), nil

	case msgpcode.IsFixedString(code) || msgpcode.IsString(code):
		s, err := c.dec.DecodeString()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewTextString(strings.NewReader(s)), nil

	case msgpcode.IsBin(code):
		b, err := c.dec.DecodeBytes()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewByteString(bytes.NewReader(b)), nil

	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := c.dec.DecodeArrayLen()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewArray(&arrayReader{c: c, remaining: n}), nil

	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := c.dec.DecodeMapLen()
		if err != nil {
			return docstream.Document{}, c.fail(err)
		}
		return docstream.NewMap(&mapReader{c: c, remaining: n}), nil

	case msgpcode.IsFixedExt(code) || msgpcode.IsExt(code):
		return docstream.Document{}, c.corrupt(nil, "extension types are not supported")

	default:
		return docstream.Document{}, c.corrupt(nil, "unrecognized code 0x%02x", code)
	}
}

type arrayReader struct {
	c         *core
	remaining int
	done      bool
	last      docstream.Document
	haveLast  bool
}

func (a *arrayReader) Read() (docstream.Document, bool, error) {
	if a.c.err != nil {
		return docstream.Document{}, false, a.c.err
	}
	if a.done {
		return docstream.Document{}, false, nil
	}
	if a.haveLast {
		a.haveLast = false
		if err := docstream.Skip(a.last); err != nil {
			return docstream.Document{}, false, err
		}
	}
	if a.remaining == 0 {
		a.done = true
		return docstream.Document{}, false, nil
	}
	a.remaining--
	doc, err := a.c.parseNext()
	if err != nil {
		return docstream.Document{}, false, err
	}
	a.last = doc
	a.haveLast = true
	return doc, true, nil
}

type mapReader struct {
	c            *core
	remaining    int // pairs
	done         bool
	valuePending bool
	last         docstream.Document
	haveLast     bool
}

func (m *mapReader) ReadKey() (docstream.Document, bool, error) {
	if m.c.err != nil {
		return docstream.Document{}, false, m.c.err
	}
	if m.done {
		return docstream.Document{}, false, nil
	}
	if m.valuePending {
		v, err := m.ReadValue()
		if err != nil {
			return docstream.Document{}, false, err
		}
		if err := docstream.Skip(v); err != nil {
			return docstream.Document{}, false, err
		}
	}
	if m.haveLast {
		m.haveLast = false
		if err := docstream.Skip(m.last); err != nil {
			return docstream.Document{}, false, err
		}
	}
	if m.remaining == 0 {
		m.done = true
		return docstream.Document{}, false, nil
	}
	m.remaining--
	key, err := m.c.parseNext()
	if err != nil {
		return docstream.Document{}, false, err
	}
	m.last = key
	m.haveLast = true
	m.valuePending = true
	return key, true, nil
}

func (m *mapReader) ReadValue() (docstream.Document, error) {
	if m.c.err != nil {
		return docstream.Document{}, m.c.err
	}
	if !m.valuePending {
		panic("msgpack: ReadValue without a preceding ReadKey")
	}
	m.valuePending = false
	if m.haveLast {
		m.haveLast = false
		if err := docstream.Skip(m.last); err != nil {
			return docstream.Document{}, err
		}
	}
	value, err := m.c.parseNext()
	if err != nil {
		return docstream.Document{}, err
	}
	m.last = value
	m.haveLast = true
	return value, nil
}

// Writer is a root MessagePack writer bound to a byte sink. Exactly one
// top-level document may be emitted; Close flushes the sink if it supports
// flushing.
type Writer struct {
	valueWriter
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{valueWriter{&wcore{enc: msgpack.NewEncoder(w)}}, w}
}

func (w *Writer) Close() error {
	if w.c.err != nil {
		return w.c.err
	}
	return docstream.Flush(w.w)
}

type wcore struct {
	enc *msgpack.Encoder
	err error // sticky
}

func (c *wcore) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

func (c *wcore) do(err error) error {
	if c.err != nil {
		return c.err
	}
	if err != nil {
		return c.fail(err)
	}
	return nil
}

type valueWriter struct {
	c *wcore
}

var _ docstream.ValueWriter = valueWriter{}

func (v valueWriter) WriteUint(x uint64) error { return v.c.do(v.c.enc.EncodeUint64(x)) }

func (v valueWriter) WriteInt(x int64) error { return v.c.do(v.c.enc.EncodeInt64(x)) }

func (v valueWriter) WriteFloat(x float64) error { return v.c.do(v.c.enc.EncodeFloat64(x)) }

func (v valueWriter) WriteBool(x bool) error { return v.c.do(v.c.enc.EncodeBool(x)) }

func (v valueWriter) WriteNull() error { return v.c.do(v.c.enc.EncodeNil()) }

// WriteUndefined encodes as nil; MessagePack has no undefined.
func (v valueWriter) WriteUndefined() error { return v.c.do(v.c.enc.EncodeNil()) }

func (v valueWriter) WriteByteString() (docstream.StreamWriter, error) {
	return v.openString(false, false, 0)
}

func (v valueWriter) WriteByteStringLen(n uint64) (docstream.StreamWriter, error) {
	return v.openString(false, true, n)
}

func (v valueWriter) WriteTextString() (docstream.StreamWriter, error) {
	return v.openString(true, false, 0)
}

func (v valueWriter) WriteTextStringLen(n uint64) (docstream.StreamWriter, error) {
	return v.openString(true, true, n)
}

func (v valueWriter) openString(text, declared bool, n uint64) (docstream.StreamWriter, error) {
	if v.c.err != nil {
		return nil, v.c.err
	}
	return &stringWriter{c: v.c, text: text, declared: declared, remaining: n}, nil
}

func (v valueWriter) WriteArray() (docstream.ArrayWriter, error) {
	return nil, v.c.corruptWrite("MessagePack cannot encode an array of undeclared length")
}

func (v valueWriter) WriteArrayLen(n uint64) (docstream.ArrayWriter, error) {
	if v.c.err != nil {
		return nil, v.c.err
	}
	if err := v.c.do(v.c.enc.EncodeArrayLen(int(n))); err != nil {
		return nil, err
	}
	return containerWriter{v.c}, nil
}

func (v valueWriter) WriteMap() (docstream.MapWriter, error) {
	return nil, v.c.corruptWrite("MessagePack cannot encode a map of undeclared length")
}

func (v valueWriter) WriteMapLen(n uint64) (docstream.MapWriter, error) {
	if v.c.err != nil {
		return nil, v.c.err
	}
	if err := v.c.do(v.c.enc.EncodeMapLen(int(n))); err != nil {
		return nil, err
	}
	return containerWriter{v.c}, nil
}

func (c *wcore) corruptWrite(msg string) error {
	return c.fail(docstream.CodecErrf(formatName, 0, nil, "%s", msg))
}

// stringWriter buffers payload bytes until Close; the underlying library
// encodes strings whole.
type stringWriter struct {
	c         *wcore
	text      bool
	declared  bool
	remaining uint64
	closed    bool
	buf       bytes.Buffer
}

func (s *stringWriter) Write(p []byte) (int, error) {
	if s.c.err != nil {
		return 0, s.c.err
	}
	if s.closed {
		return 0, &docstream.MisuseError{Op: "Write", Msg: "string stream already closed"}
	}
	if s.declared {
		if uint64(len(p)) > s.remaining {
			return 0, &docstream.MisuseError{Op: "Write", Msg: "more bytes than the declared string length"}
		}
		s.remaining -= uint64(len(p))
	}
	return s.buf.Write(p)
}

func (s *stringWriter) Close() error {
	if s.c.err != nil {
		return s.c.err
	}
	if s.closed {
		return &docstream.MisuseError{Op: "Close", Msg: "string stream already closed"}
	}
	if s.declared && s.remaining > 0 {
		return &docstream.MisuseError{Op: "Close", Msg: "fewer bytes than the declared string length"}
	}
	s.closed = true
	if s.text {
		return s.c.do(s.c.enc.EncodeString(s.buf.String()))
	}
	return s.c.do(s.c.enc.EncodeBytes(s.buf.Bytes()))
}

// containerWriter serves both arrays and maps: with declared lengths on the
// wire there is nothing to emit per element or at the end.
type containerWriter struct {
	c *wcore
}

func (w containerWriter) Append() (docstream.ValueWriter, error) {
	if w.c.err != nil {
		return nil, w.c.err
	}
	return valueWriter{w.c}, nil
}

func (w containerWriter) AppendKey() (docstream.ValueWriter, error) { return w.Append() }

func (w containerWriter) AppendValue() (docstream.ValueWriter, error) { return w.Append() }

func (w containerWriter) Close() error {
	return w.c.err
}
