package sip2

import (
	"fmt"
	"time"
)

// Now formats the current local time in SIP2's 18-character date
// format.
func Now() string {
	return time.Now().Format(SIPDateFormat)
}

// FromISO translates an RFC3339 timestamp into SIP2's date format.
func FromISO(iso string) (string, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "", fmt.Errorf("sip2: parsing date %q: %w", iso, err)
	}
	return t.Format(SIPDateFormat), nil
}

// ToISO translates a SIP2-formatted date back to RFC3339.
func ToISO(sip string) (string, error) {
	t, err := time.Parse(SIPDateFormat, sip)
	if err != nil {
		return "", fmt.Errorf("sip2: parsing SIP date %q: %w", sip, err)
	}
	return t.Format(time.RFC3339), nil
}
