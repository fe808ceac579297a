package marc

import (
	"bytes"
	"testing"
)

// TestBinaryRoundTripMatchesKnownEncoding reproduces a known example:
// a record with leader "00059       00037       " and a single
// 245$a="My favorite book" encodes to an exact known byte sequence.
func TestBinaryRoundTripMatchesKnownEncoding(t *testing.T) {
	r := New()
	f, err := r.AddDataField("245")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.AddSubfield("a", "My favorite book"); err != nil {
		t.Fatal(err)
	}

	out, err := r.ToBinary()
	if err != nil {
		t.Fatalf("ToBinary: %v", err)
	}

	want := "00059       00037       245002100000\x1E  \x1FaMy favorite book\x1E\x1D"
	if string(out) != want {
		t.Fatalf("ToBinary =\n%q\nwant\n%q", out, want)
	}

	decoded, err := FromBinary(out)
	if err != nil {
		t.Fatalf("FromBinary: %v", err)
	}
	if len(decoded.Fields()) != 1 || decoded.Fields()[0].Tag != "245" {
		t.Fatalf("decoded fields = %+v", decoded.Fields())
	}
	if sf := decoded.Fields()[0].FirstSubfield("a"); sf == nil || sf.Content != "My favorite book" {
		t.Fatalf("decoded subfield = %+v", sf)
	}
}

func TestBinaryReaderIteratesMultipleRecords(t *testing.T) {
	r1 := New()
	r1.AddDataField("245")
	b1, _ := r1.ToBinary()

	r2 := New()
	f2, _ := r2.AddDataField("100")
	f2.AddSubfield("a", "Author Name")
	b2, _ := r2.ToBinary()

	var buf bytes.Buffer
	buf.Write(b1)
	buf.Write(b2)

	br := NewBinaryReader(&buf)

	first, err := br.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if len(first.Fields()) != 1 || first.Fields()[0].Tag != "245" {
		t.Fatalf("first record fields = %+v", first.Fields())
	}

	second, err := br.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if len(second.Fields()) != 1 || second.Fields()[0].Tag != "100" {
		t.Fatalf("second record fields = %+v", second.Fields())
	}

	if _, err := br.Next(); err == nil {
		t.Fatal("expected io.EOF after last record")
	}
}

func TestToBinaryRejectsOversizedRecord(t *testing.T) {
	r := New()
	f, _ := r.AddDataField("500")
	big := make([]byte, maxRecordBytes)
	for i := range big {
		big[i] = 'x'
	}
	f.AddSubfield("a", string(big))

	if _, err := r.ToBinary(); err == nil {
		t.Fatal("expected error for oversized record")
	}
}

func TestFromBinaryRejectsShortInput(t *testing.T) {
	if _, err := FromBinary([]byte("short")); err == nil {
		t.Fatal("expected error for undersized binary record")
	}
}
