// Package httpgw implements the HTTP-JSON gateway: translates an
// HTTP request into a single bus Session.Request call and returns the
// concatenated Result values as a JSON array.
package httpgw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kcls/opensrf-go/internal/client"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrferr"
	"github.com/kcls/opensrf-go/internal/session"
	"github.com/kcls/opensrf-go/middleware"
)

// Gateway bridges HTTP requests onto the bus.
type Gateway struct {
	cl         *client.Client
	domain     string
	maxClients int
	sem        chan struct{}
	chain      middleware.HandlerFunc
}

// New builds a Gateway bound to cl, admitting at most maxClients
// concurrent in-flight requests; new requests are refused once the
// pool is saturated. Every request additionally runs
// through a logging + timeout + retry admission chain before reaching
// the bus.
func New(cl *client.Client, domain string, maxClients int) *Gateway {
	if maxClients <= 0 {
		maxClients = 256
	}
	g := &Gateway{cl: cl, domain: domain, maxClients: maxClients, sem: make(chan struct{}, maxClients)}
	g.chain = middleware.Chain(
		middleware.LoggingMiddleware(),
		middleware.TimeOutMiddleware(30*time.Second),
		middleware.RetryMiddleware(2, 100*time.Millisecond),
	)(g.coreHandler)
	return g
}

// coreHandler opens a Session for req.Service and runs req.Method to
// completion, the innermost link of the gateway's middleware chain.
func (g *Gateway) coreHandler(ctx context.Context, req *middleware.Request) *middleware.Response {
	domain, err := g.cl.ServiceDomain(req.Service)
	if err != nil {
		domain = g.domain
	}
	sess := session.New(g.cl, req.Service, domain)
	it, err := sess.Request(ctx, req.Method, req.Params)
	if err != nil {
		return &middleware.Response{Err: err}
	}

	results, err := it.All(ctx)
	if err != nil && len(results) == 0 {
		return &middleware.Response{Err: err}
	}
	if err != nil {
		logging.Logger().Warnw("gateway request errored after partial results", "err", err)
	}
	return &middleware.Response{Results: results}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	default:
		http.Error(w, "gateway at capacity", http.StatusServiceUnavailable)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form encoding", http.StatusBadRequest)
		return
	}

	service := r.Form.Get("service")
	method := r.Form.Get("method")
	if service == "" || method == "" {
		http.Error(w, "service and method are required", http.StatusBadRequest)
		return
	}

	var params []any
	for _, raw := range r.Form["param"] {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			http.Error(w, "malformed param: "+err.Error(), http.StatusBadRequest)
			return
		}
		params = append(params, v)
	}

	ctx := r.Context()
	resp := g.chain(ctx, &middleware.Request{Service: service, Method: method, Params: params})
	if resp.Err != nil {
		writeStatusError(w, resp.Err)
		return
	}

	results := resp.Results
	if results == nil {
		results = []any{}
	}

	w.Header().Set("Content-Type", "text/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(results)
}

func writeStatusError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var badReq *osrferr.BadRequestError
	var notFound *osrferr.MethodNotFoundError
	var notAllowed *osrferr.NotAllowedError
	var timeout *osrferr.TimeoutError

	switch {
	case errors.As(err, &badReq):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &notAllowed):
		status = http.StatusMethodNotAllowed
	case errors.As(err, &timeout):
		status = http.StatusGatewayTimeout
	}

	http.Error(w, err.Error(), status)
}

// ListenAndServe starts the HTTP gateway on addr, blocking until ctx
// is cancelled or the server errors.
func ListenAndServe(ctx context.Context, addr string, g *Gateway) error {
	srv := &http.Server{Addr: addr, Handler: g}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
