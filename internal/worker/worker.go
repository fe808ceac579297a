// Package worker implements the worker runtime: the per-thread
// loop that listens on a service or client address, dispatches
// Connect/Disconnect/Request messages to registered methods, and
// enforces stateful-conversation keepalive semantics.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/method"
	"github.com/kcls/opensrf-go/internal/middleware"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
)

// State is one of the three worker lifecycle states.
type State int

const (
	Idle State = iota
	Active
	Exiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Active:
		return "Active"
	case Exiting:
		return "Exiting"
	default:
		return "Unknown"
	}
}

// StateEvent is reported by a Worker to its supervisor over a
// synchronous (capacity-0) channel, so the supervisor always has an
// exact count of workers in each state.
type StateEvent struct {
	WorkerID int
	State    State
}

// statefulSession tracks the one stateful conversation a connected
// worker is bound to.
type statefulSession struct {
	thread string
	from   string
}

// Config configures one Worker.
type Config struct {
	ID          int
	ServiceAddr addr.Address
	Bus         *bus.Bus
	Registry    *method.Registry
	Chain       *middleware.Chain
	MaxRequests int           // default 5000, per original server.rs
	Keepalive   time.Duration // default 5s, per original worker.rs
	Events      chan<- StateEvent
	Shutdown    *atomic.Bool
}

// Worker runs the per-thread request loop: wait for a Request,
// dispatch it to the method registry, reply, repeat.
type Worker struct {
	id          int
	b           *bus.Bus
	serviceAddr addr.Address
	registry    *method.Registry
	chain       *middleware.Chain
	maxRequests int
	keepalive   time.Duration
	events      chan<- StateEvent
	shutdown    *atomic.Bool

	connected       bool
	session         *statefulSession
	requestsHandled int
}

// New builds a Worker from cfg, applying the original's defaults
// where zero values are supplied.
func New(cfg Config) *Worker {
	maxReq := cfg.MaxRequests
	if maxReq == 0 {
		maxReq = 5000
	}
	keepalive := cfg.Keepalive
	if keepalive == 0 {
		keepalive = 5 * time.Second
	}
	return &Worker{
		id:          cfg.ID,
		b:           cfg.Bus,
		serviceAddr: cfg.ServiceAddr,
		registry:    cfg.Registry,
		chain:       cfg.Chain,
		maxRequests: maxReq,
		keepalive:   keepalive,
		events:      cfg.Events,
		shutdown:    cfg.Shutdown,
	}
}

const servicePollInterval = 1 // seconds; lets the worker observe shutdown between blocking recvs

// Run drives the worker's main loop until shutdown is requested or
// max_requests conversations have been handled.
func (w *Worker) Run(ctx context.Context) {
	w.report(Idle)
	defer w.report(Exiting)

	for {
		if w.shutdown.Load() {
			return
		}
		if w.requestsHandled >= w.maxRequests {
			logging.Logger().Infow("worker reached max_requests, exiting", "worker_id", w.id)
			return
		}

		var (
			env *osrfmsg.Envelope
			err error
		)

		if w.connected {
			env, err = w.b.Recv(ctx, int(w.keepalive.Seconds()))
		} else {
			env, err = w.b.RecvFrom(ctx, servicePollInterval, w.serviceAddr.String())
		}

		if err != nil {
			logging.Logger().Errorw("worker recv error", "worker_id", w.id, "err", err)
			continue
		}

		if env == nil {
			if w.connected {
				w.handleKeepaliveExpiry()
			}
			continue
		}

		w.report(Active)
		w.handleEnvelope(ctx, *env)
		if w.shutdown.Load() && !w.connected {
			return
		}
		w.report(Idle)
	}
}

func (w *Worker) report(s State) {
	if w.events == nil {
		return
	}
	w.events <- StateEvent{WorkerID: w.id, State: s}
}

// handleKeepaliveExpiry implements "Timeout while connected -> reply
// Timeout, connected=false".
func (w *Worker) handleKeepaliveExpiry() {
	if w.session == nil {
		w.connected = false
		return
	}
	env := osrfmsg.NewEnvelope(w.session.from, w.b.Address().String(), w.session.thread)
	env.Body = []osrfmsg.Message{osrfmsg.NewStatus(0, osrfmsg.StatusTimeout, "", "osrfConnectStatus")}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.b.Send(ctx, env); err != nil {
		logging.Logger().Errorw("failed sending Timeout status", "err", err)
	}
	w.resetSession()
}

func (w *Worker) resetSession() {
	w.connected = false
	w.session = nil
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.b.ClearBus(ctx)
}

func (w *Worker) handleEnvelope(ctx context.Context, env osrfmsg.Envelope) {
	for _, m := range env.Body {
		w.handleMessage(ctx, env, m)
	}
}

func (w *Worker) handleMessage(ctx context.Context, env osrfmsg.Envelope, m osrfmsg.Message) {
	switch m.Type {
	case osrfmsg.TypeConnect:
		w.handleConnect(ctx, env, m)
	case osrfmsg.TypeDisconnect:
		w.resetSession()
	case osrfmsg.TypeRequest:
		w.handleRequest(ctx, env, m)
	default:
		w.replyStatus(ctx, env, m.ThreadTrace, fmt.Sprintf("unexpected message type %q", m.Type), osrfmsg.StatusBadRequest)
	}
}

func (w *Worker) handleConnect(ctx context.Context, env osrfmsg.Envelope, m osrfmsg.Message) {
	if w.connected {
		w.replyStatus(ctx, env, m.ThreadTrace, "already connected", osrfmsg.StatusBadRequest)
		return
	}
	w.connected = true
	w.session = &statefulSession{thread: env.Thread, from: env.From}
	w.replyStatus(ctx, env, m.ThreadTrace, "", osrfmsg.StatusOK)
}

func (w *Worker) handleRequest(ctx context.Context, env osrfmsg.Envelope, m osrfmsg.Message) {
	req := m.Request
	if req == nil {
		w.replyStatus(ctx, env, m.ThreadTrace, "missing request payload", osrfmsg.StatusBadRequest)
		return
	}

	def, ok := w.registry.Lookup(req.Method)
	if !ok {
		w.replyStatus(ctx, env, m.ThreadTrace, req.Method, osrfmsg.StatusMethodNotFound)
		return
	}

	if !def.ParamCount.Matches(len(req.Params)) {
		msg := fmt.Sprintf("method %s needs %s params, sent=%d", req.Method, def.ParamCount, len(req.Params))
		w.replyStatus(ctx, env, m.ThreadTrace, msg, osrfmsg.StatusBadRequest)
		return
	}

	for i, pt := range def.ParamTypes {
		if i >= len(req.Params) {
			break
		}
		// nil is accepted only beyond the method's required minimum,
		// or where any type is declared.
		v := req.Params[i]
		if !pt.Matches(v) || (v == nil && i < def.ParamCount.Lo && pt != method.TypeAny) {
			msg := fmt.Sprintf("method %s: parameter %d has the wrong type", req.Method, i)
			w.replyStatus(ctx, env, m.ThreadTrace, msg, osrfmsg.StatusBadRequest)
			return
		}
	}

	w.requestsHandled++

	mctx := &method.Context{
		Locale:   req.Locale,
		Timezone: req.Timezone,
		TraceID:  env.TraceID,
		Ingress:  req.Ingress,
		Emit: func(content any) error {
			return w.sendResult(ctx, env, m.ThreadTrace, content)
		},
	}

	handler := def.Handler
	if w.chain != nil {
		handler = w.chain.Wrap(req.Method, handler)
	}

	if err := handler(mctx, req.Params); err != nil {
		logging.WithTrace(env.TraceID).Errorw("handler error", "method", req.Method, "err", err)
		w.replyStatus(ctx, env, m.ThreadTrace, err.Error(), osrfmsg.StatusInternalServerError)
		w.connected = false
		return
	}

	w.replyStatus(ctx, env, m.ThreadTrace, "", osrfmsg.StatusComplete)
}

func (w *Worker) sendResult(ctx context.Context, env osrfmsg.Envelope, threadTrace int, content any) error {
	reply := osrfmsg.NewEnvelope(env.From, w.replyFromAddr(), env.Thread)
	reply.Body = []osrfmsg.Message{osrfmsg.NewResult(threadTrace, content)}
	return w.b.Send(ctx, reply)
}

func (w *Worker) replyStatus(ctx context.Context, env osrfmsg.Envelope, threadTrace int, label string, code osrfmsg.StatusCode) {
	reply := osrfmsg.NewEnvelope(env.From, w.replyFromAddr(), env.Thread)
	reply.Body = []osrfmsg.Message{osrfmsg.NewStatus(threadTrace, code, label, "osrfConnectStatus")}
	if err := w.b.Send(ctx, reply); err != nil {
		logging.Logger().Errorw("failed sending status reply", "err", err)
	}
}

func (w *Worker) replyFromAddr() string {
	if w.connected {
		return w.b.Address().String()
	}
	return w.serviceAddr.String()
}
