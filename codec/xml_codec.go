package codec

import (
	"bytes"

	"github.com/kcls/opensrf-go/marc"
)

// MARCXMLCodec renders/parses a single MARCXML <record> document.
type MARCXMLCodec struct{}

func (c *MARCXMLCodec) Encode(rec *marc.Record) ([]byte, error) {
	return []byte(rec.ToXML(marc.XMLOptions{WithXMLDeclaration: true})), nil
}

func (c *MARCXMLCodec) Decode(data []byte) (*marc.Record, error) {
	return marc.NewXMLReader(bytes.NewReader(data)).Next()
}

func (c *MARCXMLCodec) Type() CodecType {
	return CodecTypeMARCXML
}
