package osrfmsg

import "encoding/json"

// classified is OpenSRF's wire convention for tagging a JSON object
// with its application-level class: {"__c": "<class>", "__p": <payload>}.
// Every inner Message and its payload round-trip through it; the outer
// Envelope is a plain JSON object.
type classified struct {
	Class   string          `json:"__c"`
	Payload json.RawMessage `json:"__p"`
}

func classify(class string, payload any) (json.RawMessage, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(classified{Class: class, Payload: p})
}

func declassify(raw json.RawMessage) (class string, payload json.RawMessage, err error) {
	var c classified
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", nil, err
	}
	return c.Class, c.Payload, nil
}
