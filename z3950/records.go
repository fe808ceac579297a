package z3950

import (
	"github.com/kcls/opensrf-go/codec"
	"github.com/kcls/opensrf-go/marc"
)

// DecodeRecords parses a PresentResponse's raw ISO 2709 MARC blobs and
// re-encodes each one in the wire format named by want, so a caller
// that asked for MARCXML (easier to inspect than binary) gets it
// without touching the Z39.50 wire format itself, which is always
// binary MARC regardless of what the client ultimately wants.
func (r PresentResponse) DecodeRecords(want codec.CodecType) ([][]byte, error) {
	c := codec.GetCodec(want)
	out := make([][]byte, 0, len(r.Records))
	for _, raw := range r.Records {
		rec, err := marc.FromBinary(raw)
		if err != nil {
			return nil, err
		}
		enc, err := c.Encode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}
