package json

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/andreyvit/docstream"
)

func TestDecodeValues(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{`null`, nil},
		{`true`, true},
		{`false`, false},
		{`0`, uint64(0)},
		{`42`, uint64(42)},
		{`18446744073709551615`, uint64(18446744073709551615)},
		{`-1`, int64(-1)},
		{`-9223372036854775808`, int64(-9223372036854775808)},
		{`3.14`, 3.14},
		{`-2.5e3`, -2500.0},
		{`1e-3`, 0.001},
		{`18446744073709551616`, 1.8446744073709552e19},
		{`-9223372036854775809`, -9.223372036854776e18},
		{`""`, ""},
		{`"abc"`, "abc"},
		{`"\"\\\/\b\f\n\r\t"`, "\"\\/\b\f\n\r\t"},
		{`"Aü水"`, "Aü水"},
		{`"𝄞"`, "\U0001d11e"},
		{`"\u0041\u00fc\u6c34"`, "Aü水"},
		{`"\ud834\udd1e"`, "𝄞"},
		{`"müsic"`, "müsic"},
		{`[]`, []any{}},
		{`[1, 2, 3]`, []any{uint64(1), uint64(2), uint64(3)}},
		{` [ 1 , [ 2 , 3 ] , "hi" ] `, []any{uint64(1), []any{uint64(2), uint64(3)}, "hi"}},
		{`{}`, map[any]any{}},
		{`{"a": 1, "b": [2, 3], "c": {"d": null}}`,
			map[any]any{"a": uint64(1), "b": []any{uint64(2), uint64(3)}, "c": map[any]any{"d": nil}}},
	}
	for _, test := range tests {
		doc, err := Read(strings.NewReader(test.input))
		if err != nil {
			t.Errorf("** Read(%s) failed: %v", test.input, err)
			continue
		}
		v, err := docstream.Materialize(doc)
		if err != nil {
			t.Errorf("** Materialize(%s) failed: %v", test.input, err)
			continue
		}
		if !reflect.DeepEqual(v, test.expected) {
			t.Errorf("** Read(%s) = %#v, wanted %#v", test.input, v, test.expected)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	inputs := []string{
		`{`,
		`[1,`,
		`[1 2]`,
		`{"a" 1}`,
		`{1: 2}`,
		`"abc`,
		`"\q"`,
		`"\u12`,
		`"\ud834x"`,
		`tru`,
		`nulL`,
		`+5`,
		`1.2.3`,
		`@`,
	}
	for _, in := range inputs {
		doc, err := Read(strings.NewReader(in))
		if err == nil {
			_, err = docstream.Materialize(doc)
		}
		var ce *docstream.CodecError
		if !errors.As(err, &ce) {
			t.Errorf("** Read(%s): expected CodecError, got %v", in, err)
		}
	}
}

func TestEncodeValues(t *testing.T) {
	tests := []struct {
		input    any
		expected string
	}{
		{nil, `null`},
		{docstream.Undefined{}, `null`},
		{true, `true`},
		{uint64(42), `42`},
		{int64(-7), `-7`},
		{2.5, `2.5`},
		{"say \"hi\"\n", `"say \"hi\"\n"`},
		{"tab\tand\x01ctl", `"tab\tand\u0001ctl"`},
		{[]byte("any carnal pleasure"), `"YW55IGNhcm5hbCBwbGVhc3VyZQ=="`},
		{[]any{uint64(1), []any{uint64(2), uint64(3)}, "hi"}, `[1,[2,3],"hi"]`},
		{map[string]any{"a": uint64(1), "b": nil}, `{"a":1,"b":null}`},
		{map[uint64]any{1: "x", 20: "y"}, `{"1":"x","20":"y"}`},
	}
	for _, test := range tests {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := docstream.WriteValue(w, test.input); err != nil {
			t.Errorf("** WriteValue(%#v) failed: %v", test.input, err)
			continue
		}
		ensure(w.Close())
		if a := buf.String(); a != test.expected {
			t.Errorf("** WriteValue(%#v) = %s, wanted %s", test.input, a, test.expected)
		}
	}
}

func TestNestedTraversal(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	aw := must(w.WriteArray())
	ensure(must(aw.Append()).WriteUint(1))
	inner := must(must(aw.Append()).WriteArray())
	ensure(must(inner.Append()).WriteUint(2))
	ensure(must(inner.Append()).WriteUint(3))
	ensure(inner.Close())
	sw := must(must(aw.Append()).WriteTextString())
	_, err := io.WriteString(sw, "hi")
	ensure(err)
	ensure(sw.Close())
	ensure(aw.Close())
	ensure(w.Close())

	if a := buf.String(); a != `[1,[2,3],"hi"]` {
		t.Fatalf("encoded %s", a)
	}

	// depth-first traversal tags
	doc, err := Read(bytes.NewReader(buf.Bytes()))
	ensure(err)
	var trace []string
	walk(t, doc, &trace)
	expected := []string{
		"array", "unsigned_int(1)", "array", "unsigned_int(2)", "unsigned_int(3)", "end",
		"text_string(hi)", "end",
	}
	if !reflect.DeepEqual(trace, expected) {
		t.Errorf("** traversal = %v", trace)
	}
}

func walk(t *testing.T, d docstream.Document, trace *[]string) {
	t.Helper()
	switch d.Tag() {
	case docstream.TagUnsignedInt:
		*trace = append(*trace, "unsigned_int("+uitoa(d.Uint())+")")
	case docstream.TagTextString:
		s, err := docstream.ReadAllString(d.TextString())
		ensure(err)
		*trace = append(*trace, "text_string("+s+")")
	case docstream.TagArray:
		*trace = append(*trace, "array")
		a := d.Array()
		for {
			elem, ok, err := a.Read()
			ensure(err)
			if !ok {
				break
			}
			walk(t, elem, trace)
		}
		*trace = append(*trace, "end")
	default:
		*trace = append(*trace, d.Tag().String())
	}
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}

func TestStreamingStringReader(t *testing.T) {
	doc, err := Read(strings.NewReader(`"hello escaped ü world"`))
	ensure(err)
	r := doc.TextString()
	var got []byte
	var buf [3]byte
	for {
		n, err := r.Read(buf[:])
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		ensure(err)
	}
	if string(got) != "hello escaped ü world" {
		t.Errorf("** read %q", got)
	}
}

func TestAbandonedChildIsSkipped(t *testing.T) {
	doc, err := Read(strings.NewReader(`[[1,2,3],{"a":[4]},"tail"]`))
	ensure(err)
	arr := doc.Array()

	inner, ok, err := arr.Read()
	ensure(err)
	if !ok {
		t.Fatalf("missing first element")
	}
	if _, ok, err := inner.Array().Read(); !ok || err != nil {
		t.Fatalf("inner read: %v %v", ok, err)
	}

	if _, ok, err := arr.Read(); !ok || err != nil { // the object, abandoned untouched
		t.Fatalf("second read: %v %v", ok, err)
	}

	next, ok, err := arr.Read()
	ensure(err)
	if !ok {
		t.Fatalf("array ended early")
	}
	s, err := docstream.ReadAllString(next.TextString())
	ensure(err)
	if s != "tail" {
		t.Errorf("** tail = %q", s)
	}
}

func TestMapAutoSkipsPendingValue(t *testing.T) {
	doc, err := Read(strings.NewReader(`{"a":[1,2],"b":"x"}`))
	ensure(err)
	m := doc.Map()

	k1, ok, err := m.ReadKey()
	ensure(err)
	s1 := must(docstream.ReadAllString(k1.TextString()))
	if !ok || s1 != "a" {
		t.Fatalf("first key = %q, %v", s1, ok)
	}
	k2, ok, err := m.ReadKey()
	ensure(err)
	s2 := must(docstream.ReadAllString(k2.TextString()))
	if !ok || s2 != "b" {
		t.Fatalf("second key = %q, %v", s2, ok)
	}
	v, err := m.ReadValue()
	ensure(err)
	if s := must(docstream.ReadAllString(v.TextString())); s != "x" {
		t.Errorf("** second value = %q", s)
	}
}

func TestSkipEquivalence(t *testing.T) {
	inputs := []string{
		`[1,[2,3],"hi"]`,
		`{"a":{"b":[null,true,1.5]},"c":"d"}`,
		`"escaped ü"`,
		`12345`,
	}
	for _, in := range inputs {
		skipN := countConsumed(t, in, func(d docstream.Document) error {
			return docstream.Skip(d)
		})
		walkN := countConsumed(t, in, func(d docstream.Document) error {
			_, err := docstream.Materialize(d)
			return err
		})
		if skipN != walkN {
			t.Errorf("** %s: skip consumed %d, traverse consumed %d", in, skipN, walkN)
		}
	}
}

func countConsumed(t *testing.T, input string, drive func(docstream.Document) error) int {
	t.Helper()
	cr := &countingReader{r: iotest.OneByteReader(strings.NewReader(input))}
	doc, err := Read(cr)
	ensure(err)
	ensure(drive(doc))
	return cr.n
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestRoundTrip(t *testing.T) {
	values := []any{
		nil,
		true,
		uint64(12345),
		int64(-12345),
		0.25,
		"text with \"quotes\" and ",
		[]any{uint64(1), nil, []any{}, "x"},
		map[string]any{"k": map[string]any{"n": int64(-5)}, "l": []any{true}},
	}
	for _, v := range values {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		ensure(docstream.WriteValue(w, v))
		ensure(w.Close())
		doc, err := Read(bytes.NewReader(buf.Bytes()))
		ensure(err)
		got, err := docstream.Materialize(doc)
		ensure(err)
		if !reflect.DeepEqual(got, normalize(v)) {
			t.Errorf("** round trip of %#v = %#v (encoded %s)", v, got, buf.String())
		}
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := map[any]any{}
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case int64:
		if x >= 0 {
			return uint64(x)
		}
		return x
	default:
		return v
	}
}

func TestFloatErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var ce *docstream.CodecError
	if err := w.WriteFloat(float64NaN()); !errors.As(err, &ce) {
		t.Errorf("** NaN: %v", err)
	}
}

func float64NaN() float64 {
	f := 0.0
	return f / f
}

func TestContainerKeyRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	mw := must(w.WriteMap())
	kw := must(mw.AppendKey())
	var ce *docstream.CodecError
	if _, err := kw.WriteArray(); !errors.As(err, &ce) {
		t.Errorf("** array key: %v", err)
	}
}

func TestCleanEOF(t *testing.T) {
	if _, err := Read(strings.NewReader("")); err != io.EOF {
		t.Errorf("** empty stream: %v", err)
	}
	if _, err := Read(strings.NewReader("  \t\n")); err != io.EOF {
		t.Errorf("** whitespace-only stream: %v", err)
	}
}

func TestFirstByteIOError(t *testing.T) {
	broken := errors.New("transport failed")
	r := NewReader(iotest.ErrReader(broken))
	_, err := r.Read()
	if err != broken {
		t.Errorf("** first-byte failure: %v, wanted %v", err, broken)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
