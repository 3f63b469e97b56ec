package json

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"

	"github.com/andreyvit/docstream"
)

// Writer is a root JSON writer bound to a byte sink. Exactly one top-level
// document may be emitted; Close must be called after the document is
// complete (it flushes the sink if the sink supports flushing).
//
// Map keys must be representable as JSON object keys: scalar keys are
// rendered as their text form inside quotes, byte-string keys as base64
// text; array and map keys are rejected. Size-declared strings, arrays and
// maps encode exactly like undeclared ones (JSON has no length headers); the
// base writer enforces declared string sizes and leaves the rest to
// docstream.CheckedWriter.
type Writer struct {
	valueWriter
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{valueWriter{e: &encoder{w: w}}, w}
}

func (w *Writer) Close() error {
	if w.e.err != nil {
		return w.e.err
	}
	return docstream.Flush(w.w)
}

type encoder struct {
	w       io.Writer
	err     error // sticky
	scratch [40]byte
}

func (e *encoder) fail(err error) error {
	if e.err == nil {
		e.err = err
	}
	return e.err
}

func (e *encoder) write(p []byte) error {
	if e.err != nil {
		return e.err
	}
	if _, err := e.w.Write(p); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *encoder) writeByte(b byte) error {
	e.scratch[0] = b
	return e.write(e.scratch[:1])
}

func (e *encoder) writeString(s string) error {
	if e.err != nil {
		return e.err
	}
	if _, err := io.WriteString(e.w, s); err != nil {
		return e.fail(err)
	}
	return nil
}

// valueWriter is one write position. pre is the separator owed before the
// value (',' between container children, ':' before an object value); key
// marks an object key position, whose value must render inside quotes.
type valueWriter struct {
	e   *encoder
	pre byte
	key bool
}

var _ docstream.ValueWriter = valueWriter{}

func (v valueWriter) begin() error {
	if v.pre != 0 {
		return v.e.writeByte(v.pre)
	}
	if v.e.err != nil {
		return v.e.err
	}
	return nil
}

// literal writes a scalar rendering, quoting it in key position.
func (v valueWriter) literal(b []byte) error {
	if err := v.begin(); err != nil {
		return err
	}
	if v.key {
		if err := v.e.writeByte('"'); err != nil {
			return err
		}
		if err := v.e.write(b); err != nil {
			return err
		}
		return v.e.writeByte('"')
	}
	return v.e.write(b)
}

func (v valueWriter) WriteUint(x uint64) error {
	return v.literal(strconv.AppendUint(v.e.scratch[1:1], x, 10))
}

func (v valueWriter) WriteInt(x int64) error {
	return v.literal(strconv.AppendInt(v.e.scratch[1:1], x, 10))
}

func (v valueWriter) WriteFloat(x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return v.e.fail(docstream.CodecErrf(formatName, 0, nil, "JSON cannot represent %v", x))
	}
	return v.literal(strconv.AppendFloat(v.e.scratch[1:1], x, 'g', -1, 64))
}

func (v valueWriter) WriteBool(x bool) error {
	if x {
		return v.literal([]byte("true"))
	}
	return v.literal([]byte("false"))
}

func (v valueWriter) WriteNull() error {
	return v.literal([]byte("null"))
}

// WriteUndefined encodes as null; JSON has no undefined.
func (v valueWriter) WriteUndefined() error {
	return v.literal([]byte("null"))
}

func (v valueWriter) WriteTextString() (docstream.StreamWriter, error) {
	return v.openText(false, 0)
}

func (v valueWriter) WriteTextStringLen(n uint64) (docstream.StreamWriter, error) {
	return v.openText(true, n)
}

func (v valueWriter) openText(declared bool, n uint64) (docstream.StreamWriter, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	if err := v.e.writeByte('"'); err != nil {
		return nil, err
	}
	return &stringWriter{e: v.e, declared: declared, remaining: n}, nil
}

func (v valueWriter) WriteByteString() (docstream.StreamWriter, error) {
	return v.openBytes(false, 0)
}

func (v valueWriter) WriteByteStringLen(n uint64) (docstream.StreamWriter, error) {
	return v.openBytes(true, n)
}

func (v valueWriter) openBytes(declared bool, n uint64) (docstream.StreamWriter, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	if err := v.e.writeByte('"'); err != nil {
		return nil, err
	}
	b64 := base64.NewEncoder(base64.StdEncoding, sinkWriter{v.e})
	return &stringWriter{e: v.e, declared: declared, remaining: n, b64: b64}, nil
}

func (v valueWriter) WriteArray() (docstream.ArrayWriter, error) {
	if v.key {
		return nil, v.e.fail(docstream.CodecErrf(formatName, 0, nil, "array cannot be an object key"))
	}
	if err := v.begin(); err != nil {
		return nil, err
	}
	if err := v.e.writeByte('['); err != nil {
		return nil, err
	}
	return &arrayWriter{e: v.e, first: true}, nil
}

func (v valueWriter) WriteArrayLen(n uint64) (docstream.ArrayWriter, error) {
	return v.WriteArray()
}

func (v valueWriter) WriteMap() (docstream.MapWriter, error) {
	if v.key {
		return nil, v.e.fail(docstream.CodecErrf(formatName, 0, nil, "map cannot be an object key"))
	}
	if err := v.begin(); err != nil {
		return nil, err
	}
	if err := v.e.writeByte('{'); err != nil {
		return nil, err
	}
	return &mapWriter{e: v.e, first: true}, nil
}

func (v valueWriter) WriteMapLen(n uint64) (docstream.MapWriter, error) {
	return v.WriteMap()
}

// sinkWriter adapts the encoder for io.Writer consumers (the base64
// encoder), keeping everything on the sticky-error path.
type sinkWriter struct {
	e *encoder
}

func (s sinkWriter) Write(p []byte) (int, error) {
	if err := s.e.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// stringWriter emits string payloads. Text payloads are escaped per RFC
// 8259; byte payloads flow through base64. remaining counts payload bytes
// before escaping or encoding.
type stringWriter struct {
	e         *encoder
	declared  bool
	remaining uint64
	closed    bool
	b64       io.WriteCloser // nil for text strings
}

func (s *stringWriter) Write(p []byte) (int, error) {
	if s.e.err != nil {
		return 0, s.e.err
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
	if s.b64 != nil {
		if _, err := s.b64.Write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if err := s.writeEscaped(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *stringWriter) writeEscaped(p []byte) error {
	start := 0
	for i := 0; i < len(p); i++ {
		b := p[i]
		if b != '"' && b != '\\' && b >= 0x20 {
			continue
		}
		if i > start {
			if err := s.e.write(p[start:i]); err != nil {
				return err
			}
		}
		start = i + 1
		var esc string
		switch b {
		case '"':
			esc = `\"`
		case '\\':
			esc = `\\`
		case '\n':
			esc = `\n`
		case '\r':
			esc = `\r`
		case '\t':
			esc = `\t`
		case 0x08:
			esc = `\b`
		case 0x0c:
			esc = `\f`
		default:
			const hex = "0123456789abcdef"
			if err := s.e.writeString(`\u00`); err != nil {
				return err
			}
			s.e.scratch[0] = hex[b>>4]
			s.e.scratch[1] = hex[b&0xf]
			if err := s.e.write(s.e.scratch[:2]); err != nil {
				return err
			}
			continue
		}
		if err := s.e.writeString(esc); err != nil {
			return err
		}
	}
	if start < len(p) {
		return s.e.write(p[start:])
	}
	return nil
}

func (s *stringWriter) Close() error {
	if s.e.err != nil {
		return s.e.err
	}
	if s.closed {
		return &docstream.MisuseError{Op: "Close", Msg: "string stream already closed"}
	}
	if s.declared && s.remaining > 0 {
		return &docstream.MisuseError{Op: "Close", Msg: "fewer bytes than the declared string length"}
	}
	s.closed = true
	if s.b64 != nil {
		if err := s.b64.Close(); err != nil {
			return err
		}
	}
	return s.e.writeByte('"')
}

type arrayWriter struct {
	e     *encoder
	first bool
}

func (a *arrayWriter) Append() (docstream.ValueWriter, error) {
	if a.e.err != nil {
		return nil, a.e.err
	}
	var pre byte
	if !a.first {
		pre = ','
	}
	a.first = false
	return valueWriter{e: a.e, pre: pre}, nil
}

func (a *arrayWriter) Close() error {
	return a.e.writeByte(']')
}

type mapWriter struct {
	e     *encoder
	first bool
}

func (m *mapWriter) AppendKey() (docstream.ValueWriter, error) {
	if m.e.err != nil {
		return nil, m.e.err
	}
	var pre byte
	if !m.first {
		pre = ','
	}
	m.first = false
	return valueWriter{e: m.e, pre: pre, key: true}, nil
}

func (m *mapWriter) AppendValue() (docstream.ValueWriter, error) {
	if m.e.err != nil {
		return nil, m.e.err
	}
	return valueWriter{e: m.e, pre: ':'}, nil
}

func (m *mapWriter) Close() error {
	return m.e.writeByte('}')
}
