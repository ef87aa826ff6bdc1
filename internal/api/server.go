package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ChainSnap/internal/attest"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/metrics"
	"ChainSnap/internal/snapshot"
)

const (
	// apiVersion is the only path version served.
	apiVersion = "v1"

	// maxBodySize bounds request bodies.
	maxBodySize = 1 << 20 // 1 MB
)

// ModuleSource reads the module registry.
type ModuleSource interface {
	List(ctx context.Context) ([]chain.Module, error)
	Get(ctx context.Context, id uint64) (chain.Module, error)
	AuthorizedModule(ctx context.Context) (uint64, error)
}

// Options configures the server.
type Options struct {
	Addr   string                // Addr is the HTTP listen address
	Report balance.ReportOptions // Report parameterizes /stats
}

// Server is the public HTTP API server.
type Server struct {
	opts     Options             // opts holds listen and report settings
	modules  ModuleSource        // modules serves the registry routes
	verifier *attest.Verifier    // verifier checks usage attestations
	store    *snapshot.Store     // store holds the aggregated balances
	metrics  *metrics.APIMetrics // metrics records traffic
	handler  http.Handler        // handler is the routed middleware chain
	server   *http.Server        // server is the underlying HTTP server
	listener net.Listener        // listener is bound by Start
}

// New creates a new HTTP API server.
func New(opts Options, modules ModuleSource, verifier *attest.Verifier, store *snapshot.Store) *Server {
	s := &Server{
		opts:     opts,
		modules:  modules,
		verifier: verifier,
		store:    store,
		metrics:  metrics.API(),
	}

	s.handler = s.routes()

	return s
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes builds the router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer, requestID, s.observe, cors)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/{version}", func(r chi.Router) {
		r.Use(requireVersion)

		r.Get("/modules", s.handleListModules)
		r.Get("/modules/authorized", s.handleAuthorizedModule)
		r.Get("/modules/{id}", s.handleGetModule)
		r.Post("/verify", s.handleVerify)
		r.Get("/balances/{address}", s.handleBalance)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Start binds the listen address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", ln.Addr().String())

		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.opts.Addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("write response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
