// Package marc implements the MARC codec: the bibliographic
// Record model plus binary (ISO 2709) and MARCXML reader/writers.
// The record model and the directory-building math in binary.go are
// adapted from marctk/marc's Rust Record implementation (see
// DESIGN.md); the pluggable-format split (one Record, two wire forms)
// follows the Codec/CodecType pattern in codec/codec.go.
package marc

import (
	"fmt"
	"sort"
)

const (
	tagSize        = 3
	leaderSize     = 24
	codeSize       = 1
	defaultIndChar = ' '
)

// Controlfield is a MARC control field (tag < "010"): raw content, no
// indicators or subfields.
type Controlfield struct {
	Tag     string
	Content string
}

// NewControlfield validates tag's length and range before constructing.
func NewControlfield(tag, content string) (Controlfield, error) {
	if err := checkByteCount(tag, tagSize); err != nil {
		return Controlfield{}, err
	}
	if tag < "000" || tag > "009" {
		return Controlfield{}, fmt.Errorf("marc: invalid control field tag %q", tag)
	}
	return Controlfield{Tag: tag, Content: content}, nil
}

// Subfield is a single code+value pair within a data Field.
type Subfield struct {
	Code    string
	Content string
}

// NewSubfield validates code's length before constructing.
func NewSubfield(code, content string) (Subfield, error) {
	if err := checkByteCount(code, codeSize); err != nil {
		return Subfield{}, err
	}
	return Subfield{Code: code, Content: content}, nil
}

// Field is a MARC data field (tag >= "010"): two indicators plus an
// ordered list of subfields.
type Field struct {
	Tag       string
	ind1      string
	ind2      string
	Subfields []Subfield
}

// NewField validates tag's length before constructing; tags outside
// 010-999 are accepted with a caller-visible warning left to the
// caller, matching the original's tolerance for non-standard tags
// (e.g. OCLC's "DAT").
func NewField(tag string) (*Field, error) {
	if err := checkByteCount(tag, tagSize); err != nil {
		return nil, err
	}
	return &Field{Tag: tag}, nil
}

// Ind1 returns indicator 1, defaulting to a space when unset.
func (f *Field) Ind1() string {
	if f.ind1 == "" {
		return string(defaultIndChar)
	}
	return f.ind1
}

// Ind2 returns indicator 2, defaulting to a space when unset.
func (f *Field) Ind2() string {
	if f.ind2 == "" {
		return string(defaultIndChar)
	}
	return f.ind2
}

// SetInd1 sets indicator 1, validating its byte length.
func (f *Field) SetInd1(ind string) error {
	if err := checkByteCount(ind, codeSize); err != nil {
		return err
	}
	f.ind1 = ind
	return nil
}

// SetInd2 sets indicator 2, validating its byte length.
func (f *Field) SetInd2(ind string) error {
	if err := checkByteCount(ind, codeSize); err != nil {
		return err
	}
	f.ind2 = ind
	return nil
}

// AddSubfield appends a new Subfield with the given code/content.
func (f *Field) AddSubfield(code, content string) error {
	sf, err := NewSubfield(code, content)
	if err != nil {
		return err
	}
	f.Subfields = append(f.Subfields, sf)
	return nil
}

// GetSubfields returns every subfield with the given code.
func (f *Field) GetSubfields(code string) []*Subfield {
	var out []*Subfield
	for i := range f.Subfields {
		if f.Subfields[i].Code == code {
			out = append(out, &f.Subfields[i])
		}
	}
	return out
}

// FirstSubfield returns the first subfield with the given code, or nil.
func (f *Field) FirstSubfield(code string) *Subfield {
	for i := range f.Subfields {
		if f.Subfields[i].Code == code {
			return &f.Subfields[i]
		}
	}
	return nil
}

// HasSubfield reports whether any subfield has the given code.
func (f *Field) HasSubfield(code string) bool {
	return f.FirstSubfield(code) != nil
}

// RemoveFirstSubfield removes and returns the first subfield with the
// given code, or nil if none matched.
func (f *Field) RemoveFirstSubfield(code string) *Subfield {
	for i := range f.Subfields {
		if f.Subfields[i].Code == code {
			sf := f.Subfields[i]
			f.Subfields = append(f.Subfields[:i], f.Subfields[i+1:]...)
			return &sf
		}
	}
	return nil
}

// RemoveSubfields removes every subfield with the given code and
// returns how many were removed.
func (f *Field) RemoveSubfields(code string) int {
	kept := f.Subfields[:0]
	removed := 0
	for _, sf := range f.Subfields {
		if sf.Code == code {
			removed++
			continue
		}
		kept = append(kept, sf)
	}
	f.Subfields = kept
	return removed
}

// Record is a MARC bibliographic, authority, or holdings record:
// 24-byte leader, ordered control fields (tag < "010"), and ordered
// data fields (tag >= "010"). Fields are kept sorted on tag as they
// are inserted.
type Record struct {
	leader         string
	controlFields  []Controlfield
	fields         []*Field
}

// New returns an empty Record with a blank, spec-length leader.
func New() *Record {
	return &Record{leader: blankLeader()}
}

func blankLeader() string {
	b := make([]byte, leaderSize)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

// Leader returns the 24-byte leader string.
func (r *Record) Leader() string { return r.leader }

// SetLeader validates and stores a new leader.
func (r *Record) SetLeader(leader string) error {
	if err := checkByteCount(leader, leaderSize); err != nil {
		return err
	}
	r.leader = leader
	return nil
}

// ControlFields returns the ordered control fields.
func (r *Record) ControlFields() []Controlfield { return r.controlFields }

// Fields returns the ordered data fields.
func (r *Record) Fields() []*Field { return r.fields }

// AddControlfield inserts a control field, keeping tag order.
func (r *Record) AddControlfield(tag, content string) (*Controlfield, error) {
	cf, err := NewControlfield(tag, content)
	if err != nil {
		return nil, err
	}
	r.controlFields = append(r.controlFields, cf)
	sort.SliceStable(r.controlFields, func(i, j int) bool {
		return r.controlFields[i].Tag < r.controlFields[j].Tag
	})
	return &cf, nil
}

// AddDataField inserts a new, empty data field, keeping tag order, and
// returns it for the caller to populate with indicators/subfields.
func (r *Record) AddDataField(tag string) (*Field, error) {
	f, err := NewField(tag)
	if err != nil {
		return nil, err
	}
	r.fields = append(r.fields, f)
	sort.SliceStable(r.fields, func(i, j int) bool {
		return r.fields[i].Tag < r.fields[j].Tag
	})
	return f, nil
}

// GetFields returns every data field with the given tag.
func (r *Record) GetFields(tag string) []*Field {
	var out []*Field
	for _, f := range r.fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

func checkByteCount(s string, want int) error {
	if len(s) != want {
		return fmt.Errorf("marc: invalid byte count for %q: wanted=%d found=%d", s, want, len(s))
	}
	return nil
}
