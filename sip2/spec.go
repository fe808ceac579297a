// Package sip2 implements the SIP2 codec: the ASCII
// field/fixed-field protocol used by self-service library hardware
// (checkout kiosks, returns sorters) to talk to the circulation
// backend hosted behind the bus. The Message/FixedField/Field model
// and its from_sip/to_sip round-trip are adapted from
// original_source/sip2/src/message.rs; the message and fixed-field
// tables below are the Go equivalent of that crate's spec module.
package sip2

// FixedFieldSpec describes one fixed-length field within a message,
// in declaration order.
type FixedFieldSpec struct {
	Label  string
	Length int
}

// MessageSpec names a known SIP2 message code and the fixed fields
// that must appear, in order, right after the 2-character code.
type MessageSpec struct {
	Code        string
	Label       string
	FixedFields []*FixedFieldSpec
}

// SIPDateFormat is the Go time layout for SIP2's 18-character date:
// 8-digit date, 4 spaces (or zone code) used for local time, 6-digit
// time of day.
const SIPDateFormat = "20060102    150405"

var (
	ffOkFlag             = &FixedFieldSpec{"ok", 1}
	ffUIDAlgo            = &FixedFieldSpec{"uid algorithm", 1}
	ffPWDAlgo            = &FixedFieldSpec{"pwd algorithm", 1}
	ffTransactionDate    = &FixedFieldSpec{"transaction date", 18}
	ffReturnDate         = &FixedFieldSpec{"return date", 18}
	ffNoBlock            = &FixedFieldSpec{"no block", 1}
	ffNbDueDate          = &FixedFieldSpec{"nb due date", 18}
	ffSCRenewalPolicy    = &FixedFieldSpec{"sc renewal policy", 1}
	ffResensitize        = &FixedFieldSpec{"resensitize", 1}
	ffMagneticMedia      = &FixedFieldSpec{"magnetic media", 1}
	ffAlertType          = &FixedFieldSpec{"alert type", 1}
	ffRenewalOk          = &FixedFieldSpec{"renewal ok", 1}
	ffDesensitize        = &FixedFieldSpec{"desensitize", 1}
	ffLanguage           = &FixedFieldSpec{"language", 3}
	ffSummary            = &FixedFieldSpec{"summary", 10}
	ffPatronStatus       = &FixedFieldSpec{"patron status", 14}
	ffHoldMode           = &FixedFieldSpec{"hold mode", 1}
	ffHoldAvailable      = &FixedFieldSpec{"available", 1}
	ffCircStatus         = &FixedFieldSpec{"circulation status", 2}
	ffSecurityMarker     = &FixedFieldSpec{"security marker", 2}
	ffFeeType            = &FixedFieldSpec{"fee type", 2}
	ffThirdParty         = &FixedFieldSpec{"third party allowed", 1}
	ffPaymentType        = &FixedFieldSpec{"payment type", 2}
	ffCurrencyType       = &FixedFieldSpec{"currency type", 3}
	ffPaymentAccepted    = &FixedFieldSpec{"payment accepted", 1}
	ffEndSession         = &FixedFieldSpec{"end session", 1}
	ffRenewedCount       = &FixedFieldSpec{"renewed count", 4}
	ffUnrenewedCount     = &FixedFieldSpec{"unrenewed count", 4}
	ffHoldCount          = &FixedFieldSpec{"hold count", 4}
	ffOverdueCount       = &FixedFieldSpec{"overdue count", 4}
	ffChargedCount       = &FixedFieldSpec{"charged count", 4}
	ffFineCount          = &FixedFieldSpec{"fine count", 4}
	ffRecallCount        = &FixedFieldSpec{"recall count", 4}
	ffUnavailHoldCount   = &FixedFieldSpec{"unavailable hold count", 4}
	ffOnlineStatus       = &FixedFieldSpec{"online status", 1}
	ffCheckinOk          = &FixedFieldSpec{"checkin ok", 1}
	ffCheckoutOk         = &FixedFieldSpec{"checkout ok", 1}
	ffACSRenewalPolicy   = &FixedFieldSpec{"acs renewal policy", 1}
	ffStatusUpdateOk     = &FixedFieldSpec{"status update ok", 1}
	ffOfflineOk          = &FixedFieldSpec{"offline ok", 1}
	ffTimeoutPeriod      = &FixedFieldSpec{"timeout period", 3}
	ffRetriesAllowed     = &FixedFieldSpec{"retries allowed", 3}
	ffProtocolVersion    = &FixedFieldSpec{"protocol version", 4}
	ffMaxPrintWidth      = &FixedFieldSpec{"max print width", 3}
	ffSCStatusCode       = &FixedFieldSpec{"status code", 1}
)

// Known message specs, keyed by their 2-character wire code. Messages
// not listed here still parse : they carry no fixed
// fields and every "|"-delimited chunk becomes a variable Field.
var messagesByCode = map[string]*MessageSpec{
	"93": {"93", "Login Request", []*FixedFieldSpec{ffUIDAlgo, ffPWDAlgo}},
	"94": {"94", "Login Response", []*FixedFieldSpec{ffOkFlag}},

	"99": {"99", "SC Status", []*FixedFieldSpec{ffSCStatusCode, ffMaxPrintWidth, ffProtocolVersion}},
	"98": {"98", "ACS Status", []*FixedFieldSpec{
		ffOnlineStatus, ffCheckinOk, ffCheckoutOk, ffACSRenewalPolicy,
		ffStatusUpdateOk, ffOfflineOk, ffTimeoutPeriod, ffRetriesAllowed,
		ffTransactionDate, ffProtocolVersion,
	}},

	"09": {"09", "Checkin Request", []*FixedFieldSpec{ffNoBlock, ffTransactionDate, ffReturnDate}},
	"10": {"10", "Checkin Response", []*FixedFieldSpec{ffOkFlag, ffResensitize, ffMagneticMedia, ffAlertType, ffTransactionDate}},

	"11": {"11", "Checkout Request", []*FixedFieldSpec{ffSCRenewalPolicy, ffNoBlock, ffTransactionDate, ffNbDueDate}},
	"12": {"12", "Checkout Response", []*FixedFieldSpec{ffOkFlag, ffRenewalOk, ffMagneticMedia, ffDesensitize, ffTransactionDate}},

	"15": {"15", "Hold Request", []*FixedFieldSpec{ffHoldMode, ffTransactionDate}},
	"16": {"16", "Hold Response", []*FixedFieldSpec{ffOkFlag, ffHoldAvailable, ffTransactionDate}},

	"17": {"17", "Item Information Request", []*FixedFieldSpec{ffTransactionDate}},
	"18": {"18", "Item Information Response", []*FixedFieldSpec{ffCircStatus, ffSecurityMarker, ffFeeType, ffTransactionDate}},

	"19": {"19", "Item Status Update Request", []*FixedFieldSpec{ffTransactionDate}},
	"20": {"20", "Item Status Update Response", []*FixedFieldSpec{ffOkFlag, ffTransactionDate}},

	"23": {"23", "Patron Status Request", []*FixedFieldSpec{ffLanguage, ffTransactionDate}},
	"24": {"24", "Patron Status Response", []*FixedFieldSpec{ffPatronStatus, ffLanguage, ffTransactionDate}},

	"25": {"25", "Patron Enable Request", []*FixedFieldSpec{ffTransactionDate}},
	"26": {"26", "Patron Enable Response", []*FixedFieldSpec{ffPatronStatus, ffLanguage, ffTransactionDate}},

	"29": {"29", "Renew Request", []*FixedFieldSpec{ffThirdParty, ffNoBlock, ffTransactionDate, ffNbDueDate}},
	"30": {"30", "Renew Response", []*FixedFieldSpec{ffOkFlag, ffRenewalOk, ffMagneticMedia, ffDesensitize, ffTransactionDate}},

	"35": {"35", "End Patron Session Request", []*FixedFieldSpec{ffTransactionDate}},
	"36": {"36", "End Session Response", []*FixedFieldSpec{ffEndSession, ffTransactionDate}},

	"37": {"37", "Fee Paid Request", []*FixedFieldSpec{ffTransactionDate, ffFeeType, ffPaymentType, ffCurrencyType}},
	"38": {"38", "Fee Paid Response", []*FixedFieldSpec{ffPaymentAccepted, ffTransactionDate}},

	"63": {"63", "Patron Information Request", []*FixedFieldSpec{ffLanguage, ffTransactionDate, ffSummary}},
	"64": {"64", "Patron Information Response", []*FixedFieldSpec{
		ffPatronStatus, ffLanguage, ffTransactionDate, ffHoldCount,
		ffOverdueCount, ffChargedCount, ffFineCount, ffRecallCount, ffUnavailHoldCount,
	}},

	"65": {"65", "Renew All Request", []*FixedFieldSpec{ffTransactionDate}},
	"66": {"66", "Renew All Response", []*FixedFieldSpec{ffOkFlag, ffRenewedCount, ffUnrenewedCount, ffTransactionDate}},
}

// MessageSpecFromCode looks up a known message spec by its 2-character
// wire code. The second return is false for unrecognized codes.
func MessageSpecFromCode(code string) (*MessageSpec, bool) {
	m, ok := messagesByCode[code]
	return m, ok
}
