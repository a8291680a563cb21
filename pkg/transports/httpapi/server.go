// Package httpapi exposes the voxa engine over HTTP and a websocket segment
// stream.
package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harunnryd/voxa/pkg/cost"
	"github.com/harunnryd/voxa/pkg/dispatch"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/segment"
	"github.com/harunnryd/voxa/pkg/transports"
)

// Service is the engine surface the API serves.
type Service interface {
	GenerateLongAudio(ctx context.Context, req dispatch.LongAudioRequest) (dispatch.LongAudio, error)
	Segment(text string, mode segment.Mode, cfg *segment.Config) (segment.Result, error)
	Estimate(profile cost.UsageProfile, monthlyUsers int) (cost.Estimate, error)
	Compare(profile cost.UsageProfile, monthlyUsers int) (cost.Comparison, error)
	History(ctx context.Context, start, end time.Time) (cost.HistoricalSummary, error)
	RenderTemplate(key string, vars map[string]string) (string, error)
	Health(ctx context.Context) error
	SegmentationDefaults() segment.Config
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	// Gatherer backs /metrics; nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	return c
}

type Server struct {
	cfg      Config
	svc      Service
	log      *slog.Logger
	handler  http.Handler
	upgrader websocket.Upgrader
	started  time.Time

	mu       sync.Mutex
	server   *http.Server
	addr     string
	conns    map[*websocket.Conn]struct{}
	inflight sync.WaitGroup
	draining atomic.Bool
}

func New(svc Service, cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		log:     logging.NewComponentLogger(cfg.Logger, "http_api"),
		conns:   make(map[*websocket.Conn]struct{}),
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Name() string { return "http" }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/audio/long", s.handleLongAudio)
	mux.HandleFunc("GET /v1/audio/stream", s.handleStream)
	mux.HandleFunc("POST /v1/segments", s.handleSegments)
	mux.HandleFunc("POST /v1/cost/estimate", s.handleEstimate)
	mux.HandleFunc("POST /v1/cost/compare", s.handleCompare)
	mux.HandleFunc("GET /v1/cost/history", s.handleHistory)
	mux.HandleFunc("GET /v1/templates/{key}", s.handleTemplate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	return s.middleware(mux)
}

// Handler serves the API without a listener, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.draining.Load() && r.URL.Path != "/healthz" {
			writeError(w, errDraining)
			return
		}
		s.inflight.Add(1)
		defer s.inflight.Done()

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.log.Log(r.Context(), level, "http_request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

// Start listens on cfg.Addr and serves until Stop, Drain or ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http_api_server_error", "error", err.Error())
		}
	}()
	s.log.Info("http_api_listening", "addr", s.addr)
	return nil
}

// Addr is the bound listen address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) ReadyFields() map[string]any {
	return map[string]any{"http_addr": s.Addr(), "metrics": s.cfg.Gatherer != nil}
}

// Drain rejects new requests, closes websocket streams and waits for
// in-flight requests before shutting the listener down.
func (s *Server) Drain(ctx context.Context) error {
	s.draining.Store(true)
	s.closeConns()
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) Stop() error {
	s.draining.Store(true)
	s.closeConns()
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "draining"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
}

var (
	_ transports.Transport     = (*Server)(nil)
	_ transports.Drainer       = (*Server)(nil)
	_ transports.ReadyReporter = (*Server)(nil)
)
