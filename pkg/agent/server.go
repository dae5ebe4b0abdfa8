// Package agent serves panel extraction over HTTP and provides a client for
// it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mscrnt/panelcap/internal/logging"
	"github.com/mscrnt/panelcap/pkg/db"
	"github.com/mscrnt/panelcap/pkg/metrics"
	"github.com/mscrnt/panelcap/pkg/panelinfo"
)

// PanelStore is the subset of the panel database the agent needs
type PanelStore interface {
	CreatePanel(name string, paths db.ArtifactPaths, info *panelinfo.Info) (*db.Panel, error)
	GetPanel(id int64) (*db.Panel, error)
	GetPanelByParseID(parseID string) (*db.Panel, error)
	ListPanels(filter db.PanelFilter) ([]*db.Panel, error)
}

// Server represents the agent server
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *zap.Logger
	parser     *panelinfo.Parser
	store      PanelStore
}

// NewServer creates a new agent server. store may be nil, in which case
// saving and the panel endpoints answer 503.
func NewServer(config Config, store PanelStore, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("agent")

	server := &Server{
		config: config,
		logger: logger,
		parser: panelinfo.NewParser(logger, panelinfo.WithDecodeHook(metrics.ObserveDecode)),
		store:  store,
	}

	tlsConfig, err := config.LoadTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS config: %w", err)
	}

	server.httpServer = &http.Server{
		Addr:         net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler:      server.Handler(),
		TLSConfig:    tlsConfig,
		ErrorLog:     zap.NewStdLog(logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// Handler returns the routed handler, for embedding or httptest
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /parse", s.loggingMiddleware("/parse", s.parseHandler))
	mux.HandleFunc("GET /panels", s.loggingMiddleware("/panels", s.listPanelsHandler))
	mux.HandleFunc("GET /panels/{id}", s.loggingMiddleware("/panels/{id}", s.getPanelHandler))
	mux.HandleFunc("GET /health", s.loggingMiddleware("/health", healthHandler))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting agent server",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("tls", s.config.TLSEnabled()),
		zap.Bool("mtls", s.config.MutualTLS()),
	)

	var err error
	if s.config.TLSEnabled() {
		// certificates are already loaded in the TLS config
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down agent server")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs and counts each request under route
func (s *Server) loggingMiddleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientCert := "none"
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			clientCert = r.TLS.PeerCertificates[0].Subject.CommonName
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)

		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, wrapped.statusCode, elapsed)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.String(logging.FieldRemote, r.RemoteAddr),
			zap.String("client", clientCert),
			zap.Duration("duration", elapsed),
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
