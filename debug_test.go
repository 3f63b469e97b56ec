package docstream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/andreyvit/docstream"
	"github.com/andreyvit/docstream/json"
)

func checked() (*docstream.CheckedRootWriter, *bytes.Buffer) {
	var buf bytes.Buffer
	return docstream.CheckedWriter(json.NewWriter(&buf)), &buf
}

func expectMisuse(t *testing.T, what string, err error) {
	t.Helper()
	if !docstream.IsMisuse(err) {
		t.Errorf("** %s: expected misuse, got %v", what, err)
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

func TestWriteMultipleDocumentsOnSameWriter(t *testing.T) {
	w, _ := checked()
	ensure(w.WriteUint(1))
	expectMisuse(t, "second document", w.WriteUint(1))
}

func TestWriteOnParentBeforeStreamClosed(t *testing.T) {
	w, _ := checked()
	array := must(w.WriteArray())
	_ = must(must(array.Append()).WriteTextString())
	_, err := array.Append()
	expectMisuse(t, "append with string open", err)
}

func TestWriteToStreamAfterClose(t *testing.T) {
	w, _ := checked()
	array := must(w.WriteArray())
	stream := must(must(array.Append()).WriteTextString())
	ensure(stream.Close())
	_, err := stream.Write([]byte("a"))
	expectMisuse(t, "write after close", err)
}

func TestCloseStreamTwice(t *testing.T) {
	w, _ := checked()
	array := must(w.WriteArray())
	stream := must(must(array.Append()).WriteTextString())
	ensure(stream.Close())
	expectMisuse(t, "double close", stream.Close())
}

func TestCloseStreamWithoutWritingAll(t *testing.T) {
	w, _ := checked()
	array := must(w.WriteArray())
	stream := must(must(array.Append()).WriteTextStringLen(2))
	_, err := io.WriteString(stream, "a")
	ensure(err)
	expectMisuse(t, "underfull close", stream.Close())
}

func TestWriteTooMuchToStream(t *testing.T) {
	w, _ := checked()
	array := must(w.WriteArray())
	stream := must(must(array.Append()).WriteTextStringLen(1))
	_, err := io.WriteString(stream, "a")
	ensure(err)
	_, err = io.WriteString(stream, "b")
	expectMisuse(t, "overfull write", err)
}

func TestWriteOnParentBeforeArrayClosed(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	_ = must(must(outer.Append()).WriteArray())
	_, err := outer.Append()
	expectMisuse(t, "append with array open", err)
}

func TestWriteToArrayAfterClose(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	array := must(must(outer.Append()).WriteArray())
	ensure(array.Close())
	_, err := array.Append()
	expectMisuse(t, "append after close", err)
}

func TestAppendToArrayWithoutWriting(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	array := must(must(outer.Append()).WriteArray())
	_, err := array.Append()
	ensure(err)
	expectMisuse(t, "close with unwritten element", array.Close())
}

func TestCloseArrayTwice(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	array := must(must(outer.Append()).WriteArray())
	ensure(array.Close())
	expectMisuse(t, "double close", array.Close())
}

func TestCloseArrayWithoutWritingAll(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	array := must(must(outer.Append()).WriteArrayLen(2))
	ensure(must(array.Append()).WriteUint(1))
	expectMisuse(t, "underfull close", array.Close())
}

func TestWriteTooMuchToArray(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	array := must(must(outer.Append()).WriteArrayLen(1))
	ensure(must(array.Append()).WriteUint(1))
	_, err := array.Append()
	expectMisuse(t, "overfull append", err)
}

func TestWriteOnParentBeforeMapClosed(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	_ = must(must(outer.Append()).WriteMap())
	_, err := outer.Append()
	expectMisuse(t, "append with map open", err)
}

func TestWriteToMapAfterClose(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMap())
	ensure(m.Close())
	_, err := m.AppendKey()
	expectMisuse(t, "append after close", err)
}

func TestAppendToMapWithoutWriting(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMap())
	_, err := m.AppendKey()
	ensure(err)
	_, err = m.AppendValue()
	expectMisuse(t, "value with key unwritten", err)
}

func TestCloseMapTwice(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMap())
	ensure(m.Close())
	expectMisuse(t, "double close", m.Close())
}

func TestCloseMapWithoutWritingAll(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMapLen(2))
	ensure(must(m.AppendKey()).WriteUint(1))
	ensure(must(m.AppendValue()).WriteUint(1))
	expectMisuse(t, "underfull close", m.Close())
}

func TestWriteTooMuchToMap(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMapLen(1))
	ensure(must(m.AppendKey()).WriteUint(1))
	ensure(must(m.AppendValue()).WriteUint(1))
	_, err := m.AppendKey()
	expectMisuse(t, "overfull append", err)
}

func TestWriteValueToMapWhenKeyExpected(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMap())
	_, err := m.AppendValue()
	expectMisuse(t, "value first", err)
}

func TestWriteKeyToMapWhenValueExpected(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMap())
	ensure(must(m.AppendKey()).WriteUint(1))
	_, err := m.AppendKey()
	expectMisuse(t, "key twice", err)
}

func TestCloseMapWhenValueExpected(t *testing.T) {
	w, _ := checked()
	outer := must(w.WriteArray())
	m := must(must(outer.Append()).WriteMap())
	ensure(must(m.AppendKey()).WriteUint(1))
	expectMisuse(t, "close mid-pair", m.Close())
}

func TestRootCloseRules(t *testing.T) {
	w, _ := checked()
	expectMisuse(t, "close with no document", w.Close())
	ensure(w.WriteUint(1))
	ensure(w.Close())
	expectMisuse(t, "double close", w.Close())
}

func TestRootCloseWithChildOpen(t *testing.T) {
	w, _ := checked()
	_ = must(w.WriteArray())
	expectMisuse(t, "close with array open", w.Close())
}

func TestCheckedWriterHappyPath(t *testing.T) {
	w, buf := checked()
	m := must(w.WriteMapLen(1))
	kw := must(m.AppendKey())
	sw := must(kw.WriteTextStringLen(1))
	_, err := io.WriteString(sw, "k")
	ensure(err)
	ensure(sw.Close())
	ensure(must(m.AppendValue()).WriteBool(true))
	ensure(m.Close())
	ensure(w.Close())
	if buf.String() != `{"k":true}` {
		t.Errorf("** encoded %s", buf.String())
	}
}

func TestCheckedDocument(t *testing.T) {
	doc, err := json.Read(bytes.NewReader([]byte(`{"a":[1]}`)))
	ensure(err)
	cd := docstream.CheckedDocument(doc)
	m := cd.Map()

	if _, err := m.ReadValue(); !docstream.IsMisuse(err) {
		t.Errorf("** value before key: %v", err)
	}

	_, ok1, err := m.ReadKey()
	ensure(err)
	if !ok1 {
		t.Fatalf("missing key")
	}
	v, err := m.ReadValue()
	ensure(err)
	arr := v.Array()
	_, _, err = arr.Read()
	ensure(err)
	_, ok2, err := arr.Read()
	ensure(err)
	if ok2 {
		t.Fatalf("array should be exhausted")
	}
	if _, _, err := arr.Read(); !docstream.IsMisuse(err) {
		t.Errorf("** read past exhaustion: %v", err)
	}
}
