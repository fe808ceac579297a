// Package codec provides the serialization layer for bibliographic
// records that cross the wire in more than one format. Z39.50 always
// delivers Present results as raw ISO 2709 binary; z3950.PresentResponse.
// DecodeRecords uses this package to hand those records back re-encoded
// in whichever format the caller actually wants.
//
// It defines a pluggable Codec interface with two implementations:
//   - MARCBinaryCodec: ISO 2709, the format Z39.50 emits on the wire
//   - MARCXMLCodec:    MARCXML, human-readable, easier to debug
//
// The caller names the wanted format with a CodecType (DecodeRecords
// takes one as its argument) and GetCodec picks the matching codec.
package codec

import "github.com/kcls/opensrf-go/marc"

// CodecType identifies the serialization format.
type CodecType byte

const (
	CodecTypeMARCBinary CodecType = 0 // ISO 2709
	CodecTypeMARCXML    CodecType = 1 // MARCXML
)

// Codec is the interface for serializing/deserializing a marc.Record.
// Implementing this interface allows adding new formats (e.g. MARC-in-JSON)
// without changing any other layer.
type Codec interface {
	Encode(rec *marc.Record) ([]byte, error)
	Decode(data []byte) (*marc.Record, error)
	Type() CodecType
}

// GetCodec is a factory function that returns the appropriate codec by type.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeMARCXML {
		return &MARCXMLCodec{}
	}
	return &MARCBinaryCodec{}
}
