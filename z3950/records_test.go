package z3950

import (
	"strings"
	"testing"

	"github.com/kcls/opensrf-go/codec"
	"github.com/kcls/opensrf-go/marc"
)

func sampleMARCBinary(t *testing.T) []byte {
	t.Helper()
	rec := marc.New()
	if _, err := rec.AddControlfield("001", "12345"); err != nil {
		t.Fatalf("AddControlfield: %v", err)
	}
	f, err := rec.AddDataField("245")
	if err != nil {
		t.Fatalf("AddDataField: %v", err)
	}
	if err := f.AddSubfield("a", "Go in practice"); err != nil {
		t.Fatalf("AddSubfield: %v", err)
	}
	data, err := rec.ToBinary()
	if err != nil {
		t.Fatalf("ToBinary: %v", err)
	}
	return data
}

func TestPresentResponseDecodeRecordsBinary(t *testing.T) {
	resp := PresentResponse{Records: [][]byte{sampleMARCBinary(t)}}

	out, err := resp.DecodeRecords(codec.CodecTypeMARCBinary)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}

	rec, err := marc.FromBinary(out[0])
	if err != nil {
		t.Fatalf("FromBinary on re-encoded record: %v", err)
	}
	if len(rec.GetFields("245")) != 1 {
		t.Fatalf("expected a 245 field to survive the round trip")
	}
}

func TestPresentResponseDecodeRecordsXML(t *testing.T) {
	resp := PresentResponse{Records: [][]byte{sampleMARCBinary(t)}}

	out, err := resp.DecodeRecords(codec.CodecTypeMARCXML)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if !strings.Contains(string(out[0]), "<record") {
		t.Fatalf("expected a MARCXML <record> document, got %q", out[0])
	}
}

func TestPresentResponseDecodeRecordsEmpty(t *testing.T) {
	resp := PresentResponse{}
	out, err := resp.DecodeRecords(codec.CodecTypeMARCBinary)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("len(out) = %d, want 0", len(out))
	}
}
