package osrfmsg

import (
	"encoding/json"
	"fmt"

	"github.com/kcls/opensrf-go/internal/osrferr"
)

// MessageType names the variant carried by a Message's Payload.
type MessageType string

const (
	TypeConnect    MessageType = "CONNECT"
	TypeDisconnect MessageType = "DISCONNECT"
	TypeRequest    MessageType = "REQUEST"
	TypeResult     MessageType = "RESULT"
	TypeStatus     MessageType = "STATUS"
)

// Class tags used for the classified-JSON wire convention.
const (
	classMessage = "osrfMessage"
	classMethod  = "osrfMethod"
	classResult  = "osrfResult"
	classStatus  = "osrfConnectStatus"
)

// Connect requests entry into stateful mode for a thread.
type Connect struct{}

// Disconnect leaves stateful mode; terminal for its thread.
type Disconnect struct{}

// Request is one RPC call.
type Request struct {
	Method   string `json:"method"`
	Params   []any  `json:"params"`
	APILevel int    `json:"api_level"`
	Locale   string `json:"locale,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Ingress  string `json:"ingress,omitempty"`
}

// Result carries one value produced by a Request.
type Result struct {
	Content any `json:"content"`
}

// Status carries a MessageStatus code plus optional explicit label/class.
type Status struct {
	Code  StatusCode `json:"statusCode"`
	Label string     `json:"status,omitempty"`
	Class string     `json:"class,omitempty"`
}

// Message is the tagged union transmitted inside an Envelope's body.
// Exactly one of Connect/Disconnect/Request/Result/Status is set,
// selected by Type.
type Message struct {
	Type        MessageType
	ThreadTrace int

	Connect    *Connect
	Disconnect *Disconnect
	Request    *Request
	Result     *Result
	Status     *Status
}

// wireMessage is the on-the-wire shape of a Message before the
// payload is classified into its own object.
type wireMessage struct {
	ThreadTrace int             `json:"threadTrace"`
	Type        MessageType     `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{ThreadTrace: m.ThreadTrace, Type: m.Type}

	var (
		payload json.RawMessage
		err     error
	)

	switch m.Type {
	case TypeConnect:
		// no payload
	case TypeDisconnect:
		// no payload
	case TypeRequest:
		if m.Request == nil {
			return nil, fmt.Errorf("osrfmsg: REQUEST message missing Request payload")
		}
		payload, err = classify(classMethod, m.Request)
	case TypeResult:
		if m.Result == nil {
			return nil, fmt.Errorf("osrfmsg: RESULT message missing Result payload")
		}
		payload, err = classify(classResult, m.Result)
	case TypeStatus:
		if m.Status == nil {
			return nil, fmt.Errorf("osrfmsg: STATUS message missing Status payload")
		}
		payload, err = classify(classStatus, m.Status)
	default:
		return nil, fmt.Errorf("osrfmsg: unknown message type %q", m.Type)
	}

	if err != nil {
		return nil, err
	}
	w.Payload = payload

	return classify(classMessage, w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	class, payload, err := declassify(data)
	if err != nil {
		return &osrferr.MessageFormatError{Msg: err.Error()}
	}
	if class != classMessage {
		return &osrferr.MessageFormatError{Msg: fmt.Sprintf("expected class %q, got %q", classMessage, class)}
	}

	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return &osrferr.MessageFormatError{Msg: err.Error()}
	}

	m.Type = w.Type
	m.ThreadTrace = w.ThreadTrace

	switch w.Type {
	case TypeConnect:
		m.Connect = &Connect{}
	case TypeDisconnect:
		m.Disconnect = &Disconnect{}
	case TypeRequest:
		_, inner, err := declassify(w.Payload)
		if err != nil {
			return &osrferr.MessageFormatError{Msg: err.Error()}
		}
		var req Request
		if err := json.Unmarshal(inner, &req); err != nil {
			return &osrferr.MessageFormatError{Msg: err.Error()}
		}
		m.Request = &req
	case TypeResult:
		_, inner, err := declassify(w.Payload)
		if err != nil {
			return &osrferr.MessageFormatError{Msg: err.Error()}
		}
		var res Result
		if err := json.Unmarshal(inner, &res); err != nil {
			return &osrferr.MessageFormatError{Msg: err.Error()}
		}
		m.Result = &res
	case TypeStatus:
		_, inner, err := declassify(w.Payload)
		if err != nil {
			return &osrferr.MessageFormatError{Msg: err.Error()}
		}
		var st Status
		if err := json.Unmarshal(inner, &st); err != nil {
			return &osrferr.MessageFormatError{Msg: err.Error()}
		}
		m.Status = &st
	default:
		return &osrferr.MessageFormatError{Msg: fmt.Sprintf("unknown message type %q", w.Type)}
	}

	return nil
}

// NewStatus builds a Status message, falling back to the code's
// default label when label is empty.
func NewStatus(threadTrace int, code StatusCode, label, class string) Message {
	return Message{
		Type:        TypeStatus,
		ThreadTrace: threadTrace,
		Status:      &Status{Code: code, Label: LabelOr(code, label), Class: class},
	}
}

// NewResult builds a Result message carrying content.
func NewResult(threadTrace int, content any) Message {
	return Message{
		Type:        TypeResult,
		ThreadTrace: threadTrace,
		Result:      &Result{Content: content},
	}
}

// NewRequest builds a Request message.
func NewRequest(threadTrace int, method string, params []any, apiLevel int, locale, timezone, ingress string) Message {
	return Message{
		Type:        TypeRequest,
		ThreadTrace: threadTrace,
		Request: &Request{
			Method:   method,
			Params:   params,
			APILevel: apiLevel,
			Locale:   locale,
			Timezone: timezone,
			Ingress:  ingress,
		},
	}
}

// NewConnect builds a Connect message.
func NewConnect(threadTrace int) Message {
	return Message{Type: TypeConnect, ThreadTrace: threadTrace, Connect: &Connect{}}
}

// NewDisconnect builds a Disconnect message.
func NewDisconnect(threadTrace int) Message {
	return Message{Type: TypeDisconnect, ThreadTrace: threadTrace, Disconnect: &Disconnect{}}
}

// IsComplete reports whether this is a terminal Status{Complete} message.
func (m Message) IsComplete() bool {
	return m.Type == TypeStatus && m.Status != nil && m.Status.Code == StatusComplete
}
