package devtools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// Config configures the devtools server.
type Config struct {
	// Address is the listen address (default: "127.0.0.1:6110").
	Address string

	// Logger receives server log output. Default: slog.Default().
	Logger *slog.Logger

	// ReadHeaderTimeout bounds header parsing on inbound requests.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// CheckOrigin decides which origins may open the /live socket.
	// Default: same-host only (the gorilla default).
	CheckOrigin func(r *http.Request) bool
}

func defaultConfig() Config {
	return Config{
		Address:           "127.0.0.1:6110",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Option configures the devtools server.
type Option func(*Config)

// WithAddress sets the listen address.
func WithAddress(addr string) Option {
	return func(c *Config) { c.Address = addr }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithCheckOrigin sets the WebSocket origin check for /live.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *Config) { c.CheckOrigin = fn }
}

// Server exposes a graph's internals over HTTP for debugging:
//
//	GET /healthz   liveness probe
//	GET /snapshot  JSON census of the graph (reactive.Stats)
//	GET /metrics   Prometheus exposition (default registry)
//	GET /live      WebSocket stream of per-flush statistics
//
// The server observes the graph, so attach it before heavy traffic if you
// want every flush on the wire. Slow /live subscribers get dropped rather
// than back-pressuring the flush path.
type Server struct {
	graph    *reactive.Graph
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	httpServer *http.Server

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

// New creates a devtools server for the given graph. The server registers
// itself as a flush observer; call Shutdown to detach it.
func New(g *reactive.Graph, opts ...Option) *Server {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Server{
		graph:  g,
		config: config,
		logger: config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		clients: make(map[*liveClient]struct{}),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/live", s.handleLive)
	s.router = r

	g.AddObserver(s)
	return s
}

// Handler returns the HTTP handler, for mounting into an existing router
// instead of running a standalone server:
//
//	r := chi.NewRouter()
//	r.Mount("/debug/reflow", devtools.New(g).Handler())
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server and blocks until Shutdown or a listener error.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	s.logger.Info("devtools server starting", "address", s.config.Address)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, detaches it from the graph, and
// closes all live subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.graph.RemoveObserver(s)

	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*liveClient]struct{})
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.graph.Stats()); err != nil {
		s.logger.Error("snapshot encode failed", "error", err)
	}
}
