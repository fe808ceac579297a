package marc

import (
	"strings"
	"testing"
)

func TestEscapeXML(t *testing.T) {
	if got := EscapeXML("<'É'>", false); got != "&lt;'&#xC9;'&gt;" {
		t.Fatalf("EscapeXML(false) = %q", got)
	}
	if got := EscapeXML("<'É'>", true); got != "&lt;&apos;&#xC9;&apos;&gt;" {
		t.Fatalf("EscapeXML(true) = %q", got)
	}
}

func TestXMLRoundTrip(t *testing.T) {
	r := New()
	f, err := r.AddDataField("245")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetInd1("1"); err != nil {
		t.Fatal(err)
	}
	if err := f.AddSubfield("a", "My favorite book"); err != nil {
		t.Fatal(err)
	}

	xmlStr := r.ToXMLString()
	if !strings.Contains(xmlStr, `tag="245"`) {
		t.Fatalf("missing tag attribute: %s", xmlStr)
	}

	reader := NewXMLReader(strings.NewReader(xmlStr))
	decoded, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if len(decoded.Fields()) != 1 || decoded.Fields()[0].Tag != "245" {
		t.Fatalf("decoded fields = %+v", decoded.Fields())
	}
	if decoded.Fields()[0].Ind1() != "1" {
		t.Fatalf("ind1 = %q", decoded.Fields()[0].Ind1())
	}
	if sf := decoded.Fields()[0].FirstSubfield("a"); sf == nil || sf.Content != "My favorite book" {
		t.Fatalf("subfield = %+v", sf)
	}
}

func TestXMLReaderIgnoresUnknownElements(t *testing.T) {
	doc := `<collection>
<record xmlns="http://www.loc.gov/MARC21/slim">
  <leader>00059       00037       </leader>
  <unknown-element>noise</unknown-element>
  <controlfield tag="001">12345</controlfield>
  <datafield tag="245" ind1="1" ind2="0">
    <subfield code="a">First title</subfield>
  </datafield>
</record>
</collection>`

	reader := NewXMLReader(strings.NewReader(doc))
	rec, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if len(rec.ControlFields()) != 1 || rec.ControlFields()[0].Content != "12345" {
		t.Fatalf("control fields = %+v", rec.ControlFields())
	}
	if len(rec.Fields()) != 1 {
		t.Fatalf("fields = %+v", rec.Fields())
	}
}

func TestXMLReaderEOFOnEmptyInput(t *testing.T) {
	reader := NewXMLReader(strings.NewReader(""))
	if _, err := reader.Next(); err == nil {
		t.Fatal("expected io.EOF on empty document")
	}
}
