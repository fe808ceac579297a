// Package session implements the client-side session: thread
// correlation, the connect/disconnect stateful-conversation state
// machine, and a finite iterator over Result values for a Request.
package session

import (
	"context"
	"fmt"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/client"
	"github.com/kcls/opensrf-go/internal/osrferr"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
	"github.com/kcls/opensrf-go/internal/util"
)

const defaultRequestTimeout = 60 // seconds

// Session is one conversation thread with a service.
type Session struct {
	cl      *client.Client
	service string
	domain  string
	thread  string

	nextTrace int

	connected  bool
	remoteAddr string // bound worker address, set once Connect succeeds
}

// New creates a session targeting service on domain, addressed
// through the router by default until/unless Connect binds it to a
// specific worker.
func New(cl *client.Client, service, domain string) *Session {
	return &Session{
		cl:      cl,
		service: service,
		domain:  domain,
		thread:  uuidThread(),
	}
}

func uuidThread() string {
	// Session threads reuse the addr package's random 16-hex client
	// address suffix as their id.
	a := addr.ForClient("thread", "local")
	return a.Suffix
}

func (s *Session) serviceAddr() string {
	return addr.ForService(s.routerUser(), s.domain, s.service).String()
}

func (s *Session) routerUser() string { return "router" }

// destAddr returns where the next message on this thread should be sent:
// the bound worker address once connected, otherwise the service address.
func (s *Session) destAddr() string {
	if s.connected && s.remoteAddr != "" {
		return s.remoteAddr
	}
	return s.serviceAddr()
}

// Connect sends a Connect message and awaits an Ok status, entering
// stateful mode.
func (s *Session) Connect(ctx context.Context, timeoutSeconds int) error {
	if s.connected {
		return nil
	}

	s.nextTrace++
	trace := s.nextTrace

	b, err := s.cl.DomainBus(s.domain)
	if err != nil {
		return err
	}

	env := osrfmsg.NewEnvelope(s.destAddr(), b.Address().String(), s.thread)
	env.Body = []osrfmsg.Message{osrfmsg.NewConnect(trace)}
	if err := b.Send(ctx, env); err != nil {
		return err
	}

	timer := util.NewTimer(timeoutSeconds)
	reply, err := s.cl.RecvSession(ctx, timer, s.thread)
	if err != nil {
		return err
	}
	if reply == nil {
		return &osrferr.TimeoutError{Msg: "connect timed out"}
	}

	for _, m := range reply.Body {
		if m.Type == osrfmsg.TypeStatus && m.Status != nil {
			if m.Status.Code == osrfmsg.StatusOK {
				s.connected = true
				s.remoteAddr = reply.From
				return nil
			}
			return statusToError(*m.Status)
		}
	}

	return &osrferr.MessageFormatError{Msg: "connect reply had no Status message"}
}

// Disconnect sends a Disconnect message, leaving stateful mode. There
// is no reply to wait for: Disconnect never replies.
func (s *Session) Disconnect(ctx context.Context) error {
	if !s.connected {
		return nil
	}

	s.nextTrace++
	b, err := s.cl.DomainBus(s.domain)
	if err != nil {
		return err
	}

	env := osrfmsg.NewEnvelope(s.destAddr(), b.Address().String(), s.thread)
	env.Body = []osrfmsg.Message{osrfmsg.NewDisconnect(s.nextTrace)}
	err = b.Send(ctx, env)

	s.connected = false
	s.remoteAddr = ""
	return err
}

// Request sends method(params) on this session's thread and returns
// an iterator over its Result values.
func (s *Session) Request(ctx context.Context, method string, params []any) (*ResponseIterator, error) {
	s.nextTrace++
	trace := s.nextTrace

	b, err := s.cl.DomainBus(s.domain)
	if err != nil {
		return nil, err
	}

	env := osrfmsg.NewEnvelope(s.destAddr(), b.Address().String(), s.thread)
	env.Body = []osrfmsg.Message{osrfmsg.NewRequest(trace, method, params, 1, "", "", "")}
	if err := b.Send(ctx, env); err != nil {
		return nil, err
	}

	return &ResponseIterator{
		session:     s,
		threadTrace: trace,
		timeout:     defaultRequestTimeout,
	}, nil
}

func statusToError(st osrfmsg.Status) error {
	label := osrfmsg.LabelOr(st.Code, st.Label)
	switch st.Code {
	case osrfmsg.StatusBadRequest:
		return &osrferr.BadRequestError{Msg: label}
	case osrfmsg.StatusMethodNotFound:
		return &osrferr.MethodNotFoundError{Method: label}
	case osrfmsg.StatusNotAllowed:
		return &osrferr.NotAllowedError{Msg: label}
	case osrfmsg.StatusTimeout:
		return &osrferr.TimeoutError{Msg: label}
	case osrfmsg.StatusInternalServerError:
		return &osrferr.InternalServerError{Msg: label}
	default:
		return fmt.Errorf("status %d: %s", st.Code, label)
	}
}

// ResponseIterator yields the Result values produced by one Request,
// terminated by a Complete Status. Non-terminal error statuses are
// surfaced as errors from Next.
type ResponseIterator struct {
	session     *Session
	threadTrace int
	timeout     int
	done        bool
	pending     []osrfmsg.Message // unread messages from the last envelope
}

// SetTimeout overrides the per-Next recv timeout.
func (it *ResponseIterator) SetTimeout(seconds int) { it.timeout = seconds }

// Next returns the next Result content, or ok=false once the
// conversation's Complete status has been observed.
func (it *ResponseIterator) Next(ctx context.Context) (content any, ok bool, err error) {
	if it.done {
		return nil, false, nil
	}

	if len(it.pending) == 0 {
		timer := util.NewTimer(it.timeout)
		env, err := it.session.cl.RecvSession(ctx, timer, it.session.thread)
		if err != nil {
			return nil, false, err
		}
		if env == nil {
			it.done = true
			return nil, false, &osrferr.TimeoutError{Msg: "request timed out"}
		}
		it.pending = env.Body
	}

	for len(it.pending) > 0 {
		m := it.pending[0]
		it.pending = it.pending[1:]
		if m.ThreadTrace != it.threadTrace {
			continue
		}
		switch m.Type {
		case osrfmsg.TypeResult:
			return m.Result.Content, true, nil
		case osrfmsg.TypeStatus:
			if m.Status.Code == osrfmsg.StatusComplete {
				it.done = true
				return it.Next(ctx)
			}
			if m.Status.Code == osrfmsg.StatusOK || m.Status.Code == osrfmsg.StatusContinue {
				continue
			}
			it.done = true
			return nil, false, statusToError(*m.Status)
		}
	}

	return it.Next(ctx)
}

// First is a convenience for the common single-result case.
func (it *ResponseIterator) First(ctx context.Context) (any, error) {
	content, ok, err := it.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return content, nil
}

// All drains every remaining Result.
func (it *ResponseIterator) All(ctx context.Context) ([]any, error) {
	var out []any
	for {
		content, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, content)
	}
}
