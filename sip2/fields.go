package sip2

// FieldSpec names a well-known variable-field code for display
// purposes only; unrecognized codes still parse,
// they just render as "custom" in Message.String.
type FieldSpec struct {
	Code  string
	Label string
}

// Well-known variable field codes, a subset of the SIP2 standard
// sufficient for login, circulation, and patron-status traffic.
var (
	FLoginUID    = FieldSpec{"CN", "login username"}
	FLoginPwd    = FieldSpec{"CO", "login password"}
	FPatronID    = FieldSpec{"AA", "patron identifier"}
	FPatronPwd   = FieldSpec{"AD", "patron password"}
	FItemID      = FieldSpec{"AB", "item identifier"}
	FTitle       = FieldSpec{"AJ", "title identifier"}
	FInstitution = FieldSpec{"AO", "institution id"}
	FTerminalPwd = FieldSpec{"AC", "terminal password"}
	FScreenMsg   = FieldSpec{"AF", "screen message"}
	FPrintLine   = FieldSpec{"AG", "print line"}
	FDueDate     = FieldSpec{"AH", "due date"}
)

var fieldsByCode = map[string]FieldSpec{
	FLoginUID.Code: FLoginUID, FLoginPwd.Code: FLoginPwd,
	FPatronID.Code: FPatronID, FPatronPwd.Code: FPatronPwd,
	FItemID.Code: FItemID, FTitle.Code: FTitle,
	FInstitution.Code: FInstitution, FTerminalPwd.Code: FTerminalPwd,
	FScreenMsg.Code: FScreenMsg, FPrintLine.Code: FPrintLine,
	FDueDate.Code: FDueDate,
}

// FieldSpecFromCode looks up a well-known field's label by code.
func FieldSpecFromCode(code string) (FieldSpec, bool) {
	f, ok := fieldsByCode[code]
	return f, ok
}

// passwordRedacted replaces a patron password value in logged output.
const passwordRedacted = "REDACTED"
