// Package json implements the docstream reader and writer trees for JSON
// (RFC 8259).
//
// Numbers become unsigned_int, signed_int or floating_point by shape: an
// unsigned integral that fits uint64, a negative integral that fits int64,
// anything else a float. JSON has no binary kind: the writer emits byte
// strings as base64 text, and the reader does not attempt to auto-decode.
// JSON also has no undefined; the writer encodes it as null.
package json

import (
	"bufio"
	"io"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/andreyvit/docstream"
)

const formatName = "json"

// Reader is a root JSON reader bound to a byte stream. It produces exactly
// one document. The scanner peeks at most one byte past a top-level number
// and nothing past any other document, but NewReader wraps the stream in a
// bufio.Reader, so the underlying stream may be read past the end of the
// document; bytes read ahead are not handed back.
type Reader struct {
	d    *decoder
	used bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{d: &decoder{br: bufio.NewReader(r)}}
}

// Read parses the document header and returns the lazily-populated document.
// A clean end of stream before any value returns io.EOF.
func (r *Reader) Read() (docstream.Document, error) {
	if r.used {
		return docstream.Document{}, &docstream.MisuseError{Op: "Read", Msg: "root reader already produced its document"}
	}
	r.used = true
	b, err := r.d.nextInitial()
	if err != nil {
		return docstream.Document{}, err
	}
	return r.d.parseValue(b)
}

// Read parses a single document from r. Shorthand for NewReader(r).Read().
func Read(r io.Reader) (docstream.Document, error) {
	return NewReader(r).Read()
}

type decoder struct {
	br  *bufio.Reader
	off int64
	err error // sticky; poisons the whole tree
}

func (d *decoder) fail(err error) error {
	if d.err == nil {
		d.err = err
	}
	return d.err
}

func (d *decoder) corrupt(cause error, msg string, args ...any) error {
	return d.fail(docstream.CodecErrf(formatName, d.off, cause, msg, args...))
}

func (d *decoder) readByte() (byte, error) {
	if d.err != nil {
		return 0, d.err
	}
	b, err := d.br.ReadByte()
	if err == io.EOF {
		return 0, d.corrupt(docstream.ErrUnexpectedEnd, "truncated document")
	}
	if err != nil {
		return 0, d.fail(err)
	}
	d.off++
	return b, nil
}

// nextInitial skips whitespace and consumes the first byte of the document.
// Unlike readByte, it distinguishes a clean end of stream (sticky io.EOF,
// also reached after trailing whitespace only) from truncation inside a
// value; any other I/O error propagates unchanged.
func (d *decoder) nextInitial() (byte, error) {
	if d.err != nil {
		return 0, d.err
	}
	for {
		b, err := d.br.ReadByte()
		if err == io.EOF {
			return 0, d.fail(io.EOF)
		}
		if err != nil {
			return 0, d.fail(err)
		}
		d.off++
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			return b, nil
		}
	}
}

// peekByte returns the next byte without consuming it; ok is false at end of
// stream.
func (d *decoder) peekByte() (b byte, ok bool, err error) {
	if d.err != nil {
		return 0, false, d.err
	}
	p, err := d.br.Peek(1)
	if err == io.EOF {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, d.fail(err)
	}
	return p[0], true, nil
}

// next skips whitespace and consumes one byte.
func (d *decoder) next() (byte, error) {
	if d.err != nil {
		return 0, d.err
	}
	for {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			return b, nil
		}
	}
}

func (d *decoder) expectLiteral(rest string) error {
	for i := 0; i < len(rest); i++ {
		b, err := d.readByte()
		if err != nil {
			return err
		}
		if b != rest[i] {
			return d.corrupt(nil, "invalid literal")
		}
	}
	return nil
}

func (d *decoder) parseValue(b byte) (docstream.Document, error) {
	switch {
	case b == '{':
		return docstream.NewMap(&mapReader{d: d, first: true}), nil
	case b == '[':
		return docstream.NewArray(&arrayReader{d: d, first: true}), nil
	case b == '"':
		return docstream.NewTextString(&textReader{d: d}), nil
	case b == 't':
		if err := d.expectLiteral("rue"); err != nil {
			return docstream.Document{}, err
		}
		return docstream.NewBool(true), nil
	case b == 'f':
		if err := d.expectLiteral("alse"); err != nil {
			return docstream.Document{}, err
		}
		return docstream.NewBool(false), nil
	case b == 'n':
		if err := d.expectLiteral("ull"); err != nil {
			return docstream.Document{}, err
		}
		return docstream.NewNull(), nil
	case b == '-' || (b >= '0' && b <= '9'):
		return d.parseNumber(b)
	default:
		return docstream.Document{}, d.corrupt(nil, "unexpected character %q", b)
	}
}

func (d *decoder) parseNumber(first byte) (docstream.Document, error) {
	var buf [32]byte
	num := append(buf[:0], first)
	integral := true
	for {
		b, ok, err := d.peekByte()
		if err != nil {
			return docstream.Document{}, err
		}
		if !ok {
			break
		}
		if b >= '0' && b <= '9' {
			// keep
		} else if b == '.' || b == 'e' || b == 'E' || b == '+' || b == '-' {
			integral = false
		} else {
			break
		}
		if _, err := d.readByte(); err != nil {
			return docstream.Document{}, err
		}
		num = append(num, b)
	}

	s := string(num)
	if integral {
		if first == '-' {
			v, err := strconv.ParseInt(s, 10, 64)
			if err == nil {
				return docstream.NewInt(v), nil
			}
			if numRangeError(err) {
				return d.parseFloat(s)
			}
			return docstream.Document{}, d.corrupt(err, "invalid number %q", s)
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err == nil {
			return docstream.NewUint(v), nil
		}
		if numRangeError(err) {
			return d.parseFloat(s)
		}
		return docstream.Document{}, d.corrupt(err, "invalid number %q", s)
	}
	return d.parseFloat(s)
}

func (d *decoder) parseFloat(s string) (docstream.Document, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return docstream.Document{}, d.corrupt(err, "invalid number %q", s)
	}
	return docstream.NewFloat(v), nil
}

func numRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// textReader streams the decoded payload of a JSON string: escapes are
// resolved, the closing quote is consumed, raw UTF-8 passes through
// unvalidated.
type textReader struct {
	d       *decoder
	done    bool
	pend    [utf8.UTFMax]byte
	pendOff int
	pendLen int
}

func (s *textReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if s.pendOff < s.pendLen {
			c := copy(p[n:], s.pend[s.pendOff:s.pendLen])
			n += c
			s.pendOff += c
			continue
		}
		if s.done {
			break
		}
		b, err := s.d.readByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		switch {
		case b == '"':
			s.done = true
		case b == '\\':
			if err := s.readEscape(); err != nil {
				if n > 0 {
					return n, nil
				}
				return 0, err
			}
		case b < 0x20:
			err := s.d.corrupt(nil, "control character 0x%02x in string", b)
			if n > 0 {
				return n, nil
			}
			return 0, err
		default:
			p[n] = b
			n++
		}
	}
	if n == 0 && len(p) > 0 && s.done {
		return 0, io.EOF
	}
	return n, nil
}

func (s *textReader) readEscape() error {
	b, err := s.d.readByte()
	if err != nil {
		return err
	}
	var c byte
	switch b {
	case '"', '\\', '/':
		c = b
	case 'b':
		c = 0x08
	case 'f':
		c = 0x0c
	case 'n':
		c = '\n'
	case 'r':
		c = '\r'
	case 't':
		c = '\t'
	case 'u':
		return s.readUnicodeEscape()
	default:
		return s.d.corrupt(nil, "invalid escape \\%c", b)
	}
	s.pend[0] = c
	s.pendOff, s.pendLen = 0, 1
	return nil
}

func (s *textReader) readUnicodeEscape() error {
	r, err := s.readHex4()
	if err != nil {
		return err
	}
	if utf16.IsSurrogate(r) {
		b1, err := s.d.readByte()
		if err != nil {
			return err
		}
		b2, err := s.d.readByte()
		if err != nil {
			return err
		}
		if b1 != '\\' || b2 != 'u' {
			return s.d.corrupt(nil, "unpaired surrogate in \\u escape")
		}
		r2, err := s.readHex4()
		if err != nil {
			return err
		}
		r = utf16.DecodeRune(r, r2)
		if r == utf8.RuneError {
			return s.d.corrupt(nil, "invalid surrogate pair in \\u escape")
		}
	}
	s.pendOff = 0
	s.pendLen = utf8.EncodeRune(s.pend[:], r)
	return nil
}

func (s *textReader) readHex4() (rune, error) {
	var r rune
	for i := 0; i < 4; i++ {
		b, err := s.d.readByte()
		if err != nil {
			return 0, err
		}
		switch {
		case b >= '0' && b <= '9':
			r = r<<4 | rune(b-'0')
		case b >= 'a' && b <= 'f':
			r = r<<4 | rune(b-'a'+10)
		case b >= 'A' && b <= 'F':
			r = r<<4 | rune(b-'A'+10)
		default:
			return 0, s.d.corrupt(nil, "invalid hex digit %q in \\u escape", b)
		}
	}
	return r, nil
}

type arrayReader struct {
	d        *decoder
	first    bool
	done     bool
	last     docstream.Document
	haveLast bool
}

func (a *arrayReader) Read() (docstream.Document, bool, error) {
	if a.d.err != nil {
		return docstream.Document{}, false, a.d.err
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
	b, err := a.d.next()
	if err != nil {
		return docstream.Document{}, false, err
	}
	if a.first {
		a.first = false
		if b == ']' {
			a.done = true
			return docstream.Document{}, false, nil
		}
	} else {
		switch b {
		case ']':
			a.done = true
			return docstream.Document{}, false, nil
		case ',':
			b, err = a.d.next()
			if err != nil {
				return docstream.Document{}, false, err
			}
		default:
			return docstream.Document{}, false, a.d.corrupt(nil, "expected ',' or ']' in array, got %q", b)
		}
	}
	doc, err := a.d.parseValue(b)
	if err != nil {
		return docstream.Document{}, false, err
	}
	a.last = doc
	a.haveLast = true
	return doc, true, nil
}

type mapReader struct {
	d            *decoder
	first        bool
	done         bool
	valuePending bool
	last         docstream.Document
	haveLast     bool
}

func (m *mapReader) ReadKey() (docstream.Document, bool, error) {
	if m.d.err != nil {
		return docstream.Document{}, false, m.d.err
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
	b, err := m.d.next()
	if err != nil {
		return docstream.Document{}, false, err
	}
	if m.first {
		m.first = false
		if b == '}' {
			m.done = true
			return docstream.Document{}, false, nil
		}
	} else {
		switch b {
		case '}':
			m.done = true
			return docstream.Document{}, false, nil
		case ',':
			b, err = m.d.next()
			if err != nil {
				return docstream.Document{}, false, err
			}
		default:
			return docstream.Document{}, false, m.d.corrupt(nil, "expected ',' or '}' in object, got %q", b)
		}
	}
	if b != '"' {
		return docstream.Document{}, false, m.d.corrupt(nil, "expected object key string, got %q", b)
	}
	key := docstream.NewTextString(&textReader{d: m.d})
	m.last = key
	m.haveLast = true
	m.valuePending = true
	return key, true, nil
}

func (m *mapReader) ReadValue() (docstream.Document, error) {
	if m.d.err != nil {
		return docstream.Document{}, m.d.err
	}
	if !m.valuePending {
		panic("json: ReadValue without a preceding ReadKey")
	}
	m.valuePending = false
	if m.haveLast {
		m.haveLast = false
		if err := docstream.Skip(m.last); err != nil {
			return docstream.Document{}, err
		}
	}
	b, err := m.d.next()
	if err != nil {
		return docstream.Document{}, err
	}
	if b != ':' {
		return docstream.Document{}, m.d.corrupt(nil, "expected ':' after object key, got %q", b)
	}
	b, err = m.d.next()
	if err != nil {
		return docstream.Document{}, err
	}
	value, err := m.d.parseValue(b)
	if err != nil {
		return docstream.Document{}, err
	}
	m.last = value
	m.haveLast = true
	return value, nil
}
