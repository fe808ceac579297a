package marc

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	marcxmlNamespace    = "http://www.loc.gov/MARC21/slim"
	marcxmlXSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
	marcxmlSchemaLoc    = marcxmlNamespace + " http://www.loc.gov/standards/marcxml/schema/MARC21slim.xsd"
)

// EscapeXML mirrors marctk's escape_xml: ASCII '&', '<', '>' always
// escaped; quote and apostrophe only escaped when isAttr; any
// codepoint above ASCII 126 becomes a numeric entity.
func EscapeXML(value string, isAttr bool) string {
	var b strings.Builder
	for _, c := range value {
		switch {
		case c == '&':
			b.WriteString("&amp;")
		case c == '\'' && isAttr:
			b.WriteString("&apos;")
		case c == '"' && isAttr:
			b.WriteString("&quot;")
		case c == '>':
			b.WriteString("&gt;")
		case c == '<':
			b.WriteString("&lt;")
		case c > '~':
			fmt.Fprintf(&b, "&#x%X;", c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// XMLOptions controls ToXML's output shape.
type XMLOptions struct {
	Formatted         bool // 2-space indent, newline-separated elements
	WithXMLDeclaration bool
}

func indent(formatted bool, b *strings.Builder, depth int) {
	if !formatted {
		return
	}
	b.WriteByte('\n')
	for i := 0; i < depth; i++ {
		b.WriteByte(' ')
	}
}

// ToXML renders the record as a single MARCXML <record> document,
// matching marctk's manual (non-encoder/xml) construction byte for
// byte in the unformatted case.
func (r *Record) ToXML(opts XMLOptions) string {
	var b strings.Builder

	if opts.WithXMLDeclaration {
		b.WriteString(`<?xml version="1.0"?>`)
	}

	if opts.Formatted {
		fmt.Fprintf(&b, "\n<record\n  xmlns=\"%s\"\n  xmlns:xsi=\"%s\"\n  xsi:schemaLocation=\"%s\">",
			marcxmlNamespace, marcxmlXSINamespace, marcxmlSchemaLoc)
	} else {
		fmt.Fprintf(&b, `<record xmlns="%s" xmlns:xsi="%s" xsi:schemaLocation="%s">`,
			marcxmlNamespace, marcxmlXSINamespace, marcxmlSchemaLoc)
	}

	indent(opts.Formatted, &b, 2)
	fmt.Fprintf(&b, "<leader>%s</leader>", EscapeXML(r.leader, false))

	for _, cf := range r.controlFields {
		indent(opts.Formatted, &b, 2)
		fmt.Fprintf(&b, `<controlfield tag="%s">%s</controlfield>`, EscapeXML(cf.Tag, true), EscapeXML(cf.Content, false))
	}

	for _, f := range r.fields {
		indent(opts.Formatted, &b, 2)
		fmt.Fprintf(&b, `<datafield tag="%s" ind1="%s" ind2="%s">`, EscapeXML(f.Tag, true), EscapeXML(f.Ind1(), true), EscapeXML(f.Ind2(), true))

		for _, sf := range f.Subfields {
			indent(opts.Formatted, &b, 4)
			fmt.Fprintf(&b, `<subfield code="%s">%s</subfield>`, EscapeXML(sf.Code, true), EscapeXML(sf.Content, false))
		}

		indent(opts.Formatted, &b, 2)
		b.WriteString("</datafield>")
	}

	indent(opts.Formatted, &b, 0)
	b.WriteString("</record>")

	return b.String()
}

// ToXMLString is the common unformatted, declaration-free case.
func (r *Record) ToXMLString() string {
	return r.ToXML(XMLOptions{})
}

// XMLReader streams Record values from a MARCXML document (or a
// <collection> of several), ignoring any elements that are not one of
// leader/controlfield/datafield/subfield: unknown elements are simply
// skipped. Built on stdlib encoding/xml's token
// decoder, since no XML parsing library appears anywhere in the
// example corpus (see DESIGN.md).
type XMLReader struct {
	dec *xml.Decoder
}

// NewXMLReader wraps r for record-at-a-time reading.
func NewXMLReader(r io.Reader) *XMLReader {
	return &XMLReader{dec: xml.NewDecoder(r)}
}

type xmlParseState struct {
	record     *Record
	inLeader   bool
	inCfield   bool
	inSubfield bool
}

// Next returns the next Record, or io.EOF once the document ends.
func (xr *XMLReader) Next() (*Record, error) {
	st := &xmlParseState{record: New()}
	sawAnyElement := false

	for {
		tok, err := xr.dec.Token()
		if err == io.EOF {
			if sawAnyElement {
				return nil, fmt.Errorf("marc: unexpected end of XML mid-record")
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("marc: xml error: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawAnyElement = true
			if err := handleStartElement(st, t); err != nil {
				return nil, err
			}
		case xml.CharData:
			handleCharData(st, string(t))
		case xml.EndElement:
			if t.Name.Local == "record" {
				return st.record, nil
			}
		}
	}
}

func handleStartElement(st *xmlParseState, t xml.StartElement) error {
	switch t.Name.Local {
	case "leader":
		st.inLeader = true

	case "controlfield":
		tag, ok := attr(t, "tag")
		if !ok {
			return fmt.Errorf("marc: controlfield has no tag attribute")
		}
		if _, err := st.record.AddControlfield(tag, ""); err != nil {
			return err
		}
		st.inCfield = true

	case "datafield":
		tag, ok := attr(t, "tag")
		if !ok {
			return fmt.Errorf("marc: datafield has no tag attribute")
		}
		f, err := st.record.AddDataField(tag)
		if err != nil {
			return err
		}
		if ind1, ok := attr(t, "ind1"); ok {
			if err := f.SetInd1(ind1); err != nil {
				return err
			}
		}
		if ind2, ok := attr(t, "ind2"); ok {
			if err := f.SetInd2(ind2); err != nil {
				return err
			}
		}

	case "subfield":
		if len(st.record.fields) == 0 {
			return fmt.Errorf("marc: subfield encountered without a field")
		}
		code, ok := attr(t, "code")
		if !ok {
			return nil
		}
		f := st.record.fields[len(st.record.fields)-1]
		if err := f.AddSubfield(code, ""); err != nil {
			return err
		}
		st.inSubfield = true
	}

	return nil
}

func handleCharData(st *xmlParseState, text string) {
	switch {
	case st.inLeader:
		pad := text
		if len(pad) < leaderSize {
			pad += strings.Repeat(" ", leaderSize-len(pad))
		}
		st.record.leader = pad[:leaderSize]
		st.inLeader = false
	case st.inCfield:
		if n := len(st.record.controlFields); n > 0 {
			st.record.controlFields[n-1].Content = text
		}
		st.inCfield = false
	case st.inSubfield:
		if n := len(st.record.fields); n > 0 {
			f := st.record.fields[n-1]
			if m := len(f.Subfields); m > 0 {
				f.Subfields[m-1].Content = text
			}
		}
		st.inSubfield = false
	}
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
