package osrfmsg

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrferr"
)

// Envelope is the outer wire structure (TransportMessage in the
// original) carrying one or more Messages between two Addresses.
type Envelope struct {
	To            string
	From          string
	Thread        string
	TraceID       string
	RouterCommand string
	RouterClass   string
	RouterReply   string
	Body          []Message
}

type wireEnvelope struct {
	To            string            `json:"to"`
	From          string            `json:"from"`
	Thread        string            `json:"thread"`
	OsrfXid       string            `json:"osrf_xid,omitempty"`
	RouterCommand string            `json:"router_command,omitempty"`
	RouterClass   string            `json:"router_class,omitempty"`
	RouterReply   string            `json:"router_reply,omitempty"`
	Body          []json.RawMessage `json:"body,omitempty"`
}

// NewEnvelope builds an envelope with a freshly generated trace id,
// propagated as osrf_xid on send so replies can be correlated in logs.
func NewEnvelope(to, from, thread string) Envelope {
	return Envelope{To: to, From: from, Thread: thread, TraceID: uuid.NewString()}
}

// Encode serializes the envelope to its wire JSON form. Each body
// message is independently marshaled through its classified-JSON
// encoding before being embedded in the body array.
func (e Envelope) Encode() ([]byte, error) {
	w := wireEnvelope{
		To:            e.To,
		From:          e.From,
		Thread:        e.Thread,
		OsrfXid:       e.TraceID,
		RouterCommand: e.RouterCommand,
		RouterClass:   e.RouterClass,
		RouterReply:   e.RouterReply,
	}

	for _, m := range e.Body {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, &osrferr.MessageFormatError{Msg: err.Error()}
		}
		w.Body = append(w.Body, raw)
	}

	out, err := json.Marshal(w)
	if err != nil {
		return nil, &osrferr.MessageFormatError{Msg: err.Error()}
	}
	return out, nil
}

// Decode parses one envelope from its wire JSON form.
//
// Mirroring the original implementation's recv(), an individual body
// message that fails to decode (e.g. an unrecognized message class
// from a foreign client) is discarded rather than failing the whole
// envelope: a service may still process the messages it does
// understand. A malformed outer envelope is a hard MessageFormatError.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, &osrferr.MessageFormatError{Msg: fmt.Sprintf("decoding envelope: %v", err)}
	}

	e := Envelope{
		To:            w.To,
		From:          w.From,
		Thread:        w.Thread,
		TraceID:       w.OsrfXid,
		RouterCommand: w.RouterCommand,
		RouterClass:   w.RouterClass,
		RouterReply:   w.RouterReply,
	}

	for _, raw := range w.Body {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			logging.Logger().Warnw("discarding unparseable body message", "err", err)
			continue
		}
		e.Body = append(e.Body, m)
	}

	return e, nil
}
