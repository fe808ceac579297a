package sip2

import (
	"fmt"
	"sort"
	"strings"
)

// ErrFixedFieldLength is returned when a fixed field's value does not
// match its declared spec length.
type ErrFixedFieldLength struct {
	Label    string
	Expected int
	Got      int
}

func (e *ErrFixedFieldLength) Error() string {
	return fmt.Sprintf("sip2: fixed field %q wants length %d, got %d", e.Label, e.Expected, e.Got)
}

// ErrUnknownMessage is returned by FromCode/FromFixedValues/FromValues
// for a code not present in the message table.
type ErrUnknownMessage struct{ Code string }

func (e *ErrUnknownMessage) Error() string { return fmt.Sprintf("sip2: unknown message code %q", e.Code) }

// ErrMessageFormat is returned when the raw SIP text can't be parsed
// against its message's fixed-field layout.
type ErrMessageFormat struct{ Detail string }

func (e *ErrMessageFormat) Error() string { return "sip2: " + e.Detail }

// FixedField is one fixed-length value bound to its spec.
type FixedField struct {
	Spec  *FixedFieldSpec
	Value string
}

// NewFixedField validates value's length against spec before
// constructing the field: it errors on wrong length at construction
// time rather than deferring to a later parse failure.
func NewFixedField(spec *FixedFieldSpec, value string) (FixedField, error) {
	if len(value) != spec.Length {
		return FixedField{}, &ErrFixedFieldLength{spec.Label, spec.Length, len(value)}
	}
	return FixedField{Spec: spec, Value: value}, nil
}

func (f FixedField) toSIP() string { return sipString(f.Value) }

// Field is a variable-length, code-prefixed value terminated by "|".
type Field struct {
	Code  string
	Value string
}

// NewField builds a variable field; unlike fixed fields, the code
// need not be in the well-known table.
func NewField(code, value string) Field { return Field{Code: code, Value: value} }

func (f Field) toSIP() string { return f.Code + sipString(f.Value) + "|" }

// Message is a complete SIP2 message: a spec, its fixed fields in
// declaration order, and its variable fields sorted by code.
type Message struct {
	Spec        *MessageSpec
	FixedFields []FixedField
	Fields      []Field
}

// NewMessage builds a Message from already-validated parts, sorting
// fields for deterministic ToSIP output.
func NewMessage(spec *MessageSpec, fixedFields []FixedField, fields []Field) Message {
	m := Message{Spec: spec, FixedFields: fixedFields, Fields: fields}
	m.sortFields()
	return m
}

// FromCode builds a zero-fixed-field message for codes whose spec
// declares none (e.g. status-only requests).
func FromCode(code string) (Message, error) {
	return FromFixedValues(code, nil)
}

// FromFixedValues builds a Message by pairing fixedValues positionally
// against the message code's declared fixed fields. Fails if the count or any
// individual value's length doesn't match.
func FromFixedValues(code string, fixedValues []string) (Message, error) {
	spec, ok := MessageSpecFromCode(code)
	if !ok {
		return Message{}, &ErrUnknownMessage{code}
	}

	if len(fixedValues) != len(spec.FixedFields) {
		return Message{}, &ErrMessageFormat{fmt.Sprintf(
			"message %s wants %d fixed fields, got %d", spec.Code, len(spec.FixedFields), len(fixedValues))}
	}

	ff := make([]FixedField, 0, len(fixedValues))
	for i, v := range fixedValues {
		f, err := NewFixedField(spec.FixedFields[i], v)
		if err != nil {
			return Message{}, err
		}
		ff = append(ff, f)
	}

	return Message{Spec: spec, FixedFields: ff}, nil
}

// FromValues builds a Message from fixed-field values plus
// (code, value) variable field pairs.
func FromValues(code string, fixedValues []string, fields [][2]string) (Message, error) {
	m, err := FromFixedValues(code, fixedValues)
	if err != nil {
		return Message{}, err
	}
	for _, f := range fields {
		m.AddField(f[0], f[1])
	}
	return m, nil
}

func (m *Message) sortFields() {
	sort.Slice(m.Fields, func(i, j int) bool { return m.Fields[i].Code < m.Fields[j].Code })
}

// AddField appends a variable field and re-sorts.
func (m *Message) AddField(code, value string) {
	m.Fields = append(m.Fields, NewField(code, value))
	m.sortFields()
}

// MaybeAddField adds a field only when present is true; an empty value
// is still added when present.
func (m *Message) MaybeAddField(code string, value string, present bool) {
	if present {
		m.AddField(code, value)
	}
}

// RemoveField deletes field(s) matching code; all=false removes only
// the first match. Returns the count removed.
func (m *Message) RemoveField(code string, all bool) int {
	count := 0
	out := m.Fields[:0]
	for _, f := range m.Fields {
		if f.Code == code && (all || count == 0) {
			count++
			continue
		}
		out = append(out, f)
	}
	m.Fields = out
	return count
}

// FieldValue returns the first field's value matching code.
func (m Message) FieldValue(code string) (string, bool) {
	for _, f := range m.Fields {
		if f.Code == code {
			return f.Value, true
		}
	}
	return "", false
}

// ToSIP renders the message to its wire form (no trailing \r;
// callers append the terminator when writing to a connection).
func (m Message) ToSIP() string {
	var b strings.Builder
	b.WriteString(m.Spec.Code)
	for _, ff := range m.FixedFields {
		b.WriteString(ff.toSIP())
	}
	for _, f := range m.Fields {
		b.WriteString(f.toSIP())
	}
	return b.String()
}

// ToSIPRedacted is ToSIP with the AD (patron password) field's value
// replaced, safe for logging.
func (m Message) ToSIPRedacted() string {
	var b strings.Builder
	b.WriteString(m.Spec.Code)
	for _, ff := range m.FixedFields {
		b.WriteString(ff.toSIP())
	}
	for _, f := range m.Fields {
		if f.Code == FPatronPwd.Code {
			b.WriteString(f.Code)
			b.WriteString(passwordRedacted)
			b.WriteString("|")
			continue
		}
		b.WriteString(f.toSIP())
	}
	return b.String()
}

// FromSIP parses a raw SIP2 message, assuming the trailing \r
// terminator has already been stripped.
func FromSIP(text string) (Message, error) {
	if len(text) < 2 {
		return Message{}, &ErrMessageFormat{"message is incomplete: " + text}
	}

	spec, ok := MessageSpecFromCode(text[0:2])
	if !ok {
		// Unknown codes still parse: "unknown codes
		// parse as messages with only fixed fields parsed" - with
		// zero known fixed fields, everything after the code becomes
		// variable fields.
		spec = &MessageSpec{Code: text[0:2], Label: "unknown"}
	}

	rest := text[2:]
	ff := make([]FixedField, 0, len(spec.FixedFields))
	for _, fspec := range spec.FixedFields {
		if len(rest) < fspec.Length {
			return Message{}, &ErrMessageFormat{fmt.Sprintf("fixed field %s truncated in %q", fspec.Label, text)}
		}
		value := rest[:fspec.Length]
		rest = rest[fspec.Length:]
		f, err := NewFixedField(fspec, value)
		if err != nil {
			return Message{}, err
		}
		ff = append(ff, f)
	}

	m := Message{Spec: spec, FixedFields: ff}

	if rest == "" {
		return m, nil
	}

	for _, part := range strings.Split(rest, "|") {
		if len(part) <= 1 {
			continue
		}
		code := part[0:2]
		value := ""
		if len(part) > 2 {
			value = part[2:]
		}
		m.Fields = append(m.Fields, NewField(code, value))
	}

	return m, nil
}

// String renders the message for logging/debugging as human-readable
// text rather than a raw struct dump.
func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.Spec.Code, m.Spec.Label)
	for _, ff := range m.FixedFields {
		fmt.Fprintf(&b, "   %-35s %s\n", ff.Spec.Label, ff.Value)
	}
	for _, f := range m.Fields {
		if spec, ok := FieldSpecFromCode(f.Code); ok {
			fmt.Fprintf(&b, "%s %-35s %s\n", spec.Code, spec.Label, f.Value)
		} else {
			fmt.Fprintf(&b, "%s %-35s %s\n", f.Code, "custom", f.Value)
		}
	}
	return b.String()
}

// sipString strips the "|" delimiter from a value bound for the wire.
func sipString(text string) string {
	return strings.ReplaceAll(text, "|", "")
}
