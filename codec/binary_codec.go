package codec

import "github.com/kcls/opensrf-go/marc"

// MARCBinaryCodec serializes a marc.Record as ISO 2709 — the format
// exchanged on the wire with Z39.50 and SIP2 peers.
type MARCBinaryCodec struct{}

func (c *MARCBinaryCodec) Encode(rec *marc.Record) ([]byte, error) {
	return rec.ToBinary()
}

func (c *MARCBinaryCodec) Decode(data []byte) (*marc.Record, error) {
	return marc.FromBinary(data)
}

func (c *MARCBinaryCodec) Type() CodecType {
	return CodecTypeMARCBinary
}
