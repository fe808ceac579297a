// Package supervisor implements the server supervisor: worker
// pool lifecycle, router (re)registration, and signal-driven graceful
// shutdown.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/internal/client"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/method"
	"github.com/kcls/opensrf-go/internal/middleware"
	"github.com/kcls/opensrf-go/internal/worker"
)

// idleWakeTime bounds how long the supervisor's maintenance tick
// blocks waiting on a worker event, so it can also notice the
// shutdown flag (poll timeout ≈ 3s).
const idleWakeTime = 3 * time.Second

// idleThreadWarnThreshold is the number of idle workers at or below
// which the supervisor logs an early warning that it may be unable to
// keep up with incoming load.
const idleThreadWarnThreshold = 1

// shutdownMaxWait bounds how long graceful shutdown waits for
// in-flight workers before the process exits regardless.
const shutdownMaxWait = 30 * time.Second

// workerHandle is the supervisor's private record of one worker.
// Only the supervisor goroutine touches this map: it owns the map of
// worker handles, and workers never touch it.
type workerHandle struct {
	state State
	done  chan struct{}
}

// State mirrors worker.State for the supervisor's own bookkeeping;
// notSeen marks a worker that has not yet reported any state.
type State = worker.State

const notSeen State = -1

// Config configures a Supervisor.
type Config struct {
	Service         string
	Username        string
	RouterDomains   []string // domains hosting a router this service registers with
	RouterClass     string   // "" registers under the "default" class
	BusConfig       func(domain string) bus.ClientConfig
	Registry        *method.Registry
	Chain           *middleware.Chain
	MinWorkers      int
	MaxWorkers      int
	WorkerMaxReqs   int
	WorkerKeepalive time.Duration
	RouterRegistrar RouterRegistrar
}

// RouterRegistrar is the narrow interface the supervisor uses to
// register/unregister with routers, letting it be backed by the etcd
// presence table (see DESIGN.md) without coupling the supervisor to
// etcd directly.
type RouterRegistrar interface {
	Register(ctx context.Context, domain, service, class string) error
	Unregister(ctx context.Context, domain, service, class string) error
}

// Supervisor owns the worker pool for one service.
type Supervisor struct {
	cfg Config

	mu       sync.Mutex
	workers  map[int]*workerHandle
	nextID   int
	idle     int
	active   int
	shutdown atomic.Bool

	events chan worker.StateEvent
	wg     sync.WaitGroup
}

// New builds a Supervisor, applying the original's min/max worker
// defaults (1/20) when unset.
func New(cfg Config) *Supervisor {
	if cfg.MinWorkers == 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 20
	}
	return &Supervisor{
		cfg:     cfg,
		workers: make(map[int]*workerHandle),
		events:  make(chan worker.StateEvent), // capacity 0: synchronous
	}
}

// Run registers with every configured router, spawns min_workers,
// then drives the supervisor's event/maintenance loop until a
// shutdown signal arrives or ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setupSignalHandlers()

	if err := s.registerRouters(ctx); err != nil {
		logging.Logger().Errorw("router registration failed, continuing", "err", err)
	}

	for i := 0; i < s.cfg.MinWorkers; i++ {
		s.spawnWorker(ctx)
	}

	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case <-time.After(idleWakeTime):
			s.maintenanceTick(ctx)
		case <-ctx.Done():
			s.beginShutdown(ctx)
			return nil
		}

		if s.shutdown.Load() {
			s.beginShutdown(ctx)
			return nil
		}
	}
}

func (s *Supervisor) setupSignalHandlers() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		for sig := range ch {
			logging.Logger().Infow("received signal", "signal", sig.String())
			s.shutdown.Store(true)
		}
	}()
}

func (s *Supervisor) handleEvent(ctx context.Context, ev worker.StateEvent) {
	s.mu.Lock()
	h, ok := s.workers[ev.WorkerID]
	if !ok {
		h = &workerHandle{state: notSeen, done: make(chan struct{})}
		s.workers[ev.WorkerID] = h
	}

	switch h.state {
	case worker.Idle:
		s.idle--
	case worker.Active:
		s.active--
	}

	h.state = ev.State

	switch ev.State {
	case worker.Idle:
		s.idle++
	case worker.Active:
		s.active++
	case worker.Exiting:
		delete(s.workers, ev.WorkerID)
		close(h.done)
	}

	idle, total := s.idle, len(s.workers)
	s.mu.Unlock()

	if idle == 0 && total < s.cfg.MaxWorkers {
		s.spawnWorker(ctx)
	}
	if idle <= idleThreadWarnThreshold && total < s.cfg.MaxWorkers {
		logging.Logger().Warnw("idle worker count near threshold", "idle", idle, "threshold", idleThreadWarnThreshold)
	}
}

// maintenanceTick tops up to min_workers on a quiet tick, matching
// the original's periodic maintenance behavior.
func (s *Supervisor) maintenanceTick(ctx context.Context) {
	s.mu.Lock()
	total := len(s.workers)
	s.mu.Unlock()

	for total < s.cfg.MinWorkers {
		s.spawnWorker(ctx)
		total++
	}
}

func (s *Supervisor) spawnWorker(ctx context.Context) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.workers[id] = &workerHandle{state: notSeen, done: make(chan struct{})}
	s.mu.Unlock()

	b, err := bus.Connect(s.cfg.BusConfig(""))
	if err != nil {
		logging.Logger().Errorw("failed to open worker bus connection", "err", err)
		s.mu.Lock()
		delete(s.workers, id)
		s.mu.Unlock()
		return
	}

	svcAddr := addr.ForService(s.cfg.Username, b.Address().Domain, s.cfg.Service)

	w := worker.New(worker.Config{
		ID:          id,
		ServiceAddr: svcAddr,
		Bus:         b,
		Registry:    s.cfg.Registry,
		Chain:       s.cfg.Chain,
		MaxRequests: s.cfg.WorkerMaxReqs,
		Keepalive:   s.cfg.WorkerKeepalive,
		Events:      s.events,
		Shutdown:    &s.shutdown,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer b.Close()
		w.Run(ctx)
	}()
}

func (s *Supervisor) registerRouters(ctx context.Context) error {
	if s.cfg.RouterRegistrar == nil {
		return nil
	}
	var firstErr error
	for _, domain := range s.cfg.RouterDomains {
		if err := s.cfg.RouterRegistrar.Register(ctx, domain, s.cfg.Service, s.cfg.RouterClass); err != nil {
			logging.Logger().Errorw("router register failed", "domain", domain, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Supervisor) unregisterRouters(ctx context.Context) {
	if s.cfg.RouterRegistrar == nil {
		return
	}
	for _, domain := range s.cfg.RouterDomains {
		if err := s.cfg.RouterRegistrar.Unregister(ctx, domain, s.cfg.Service, s.cfg.RouterClass); err != nil {
			logging.Logger().Errorw("router unregister failed", "domain", domain, "err", err)
		}
	}
}

func (s *Supervisor) beginShutdown(ctx context.Context) {
	s.shutdown.Store(true)
	s.unregisterRouters(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Logger().Infow("all workers finished, shutting down")
	case <-time.After(shutdownMaxWait):
		logging.Logger().Warnw("shutdown wait exceeded, exiting regardless", "waited", shutdownMaxWait)
	}
}

// WorkerCounts returns a snapshot of idle/active worker counts, for
// tests and health checks.
func (s *Supervisor) WorkerCounts() (idle, active, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle, s.active, len(s.workers)
}

// Client builds a bus-connected client.Client using this supervisor's
// configured credentials, for components (e.g. a gateway) that need
// to issue requests into the service the supervisor hosts.
func (s *Supervisor) Client(ctx context.Context, domain string) (*client.Client, error) {
	return client.Connect(s.cfg.BusConfig(domain), s.cfg.BusConfig, s.cfg.Username)
}
