package web

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/gpstrack/internal/assetstore"
	"github.com/vbonduro/gpstrack/internal/hub"
	"github.com/vbonduro/gpstrack/internal/service"
)

const (
	defaultMaxUpload  = 50 * 1024 * 1024 // 50 MB
	cameraTokenHeader = "X-Camera-Token"
)

// Services bundles what the HTTP layer dispatches to.
type Services struct {
	Detections *service.DetectionService
	Registry   *service.CameraRegistry
	Guard      *service.Guard
	Reset      *service.ResetService
	Assets     assetstore.AssetStore
	Hub        *hub.Hub
}

type Options struct {
	// APIPrefix is prepended to every REST route, e.g. "/api".
	APIPrefix      string
	MaxUploadBytes int64
}

type Server struct {
	detections *service.DetectionService
	registry   *service.CameraRegistry
	guard      *service.Guard
	reset      *service.ResetService
	assets     assetstore.AssetStore
	hub        *hub.Hub
	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	prefix     string
	maxUpload  int64
	logger     *slog.Logger
}

func NewServer(svc Services, opts Options, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	s := &Server{
		detections: svc.Detections,
		registry:   svc.Registry,
		guard:      svc.Guard,
		reset:      svc.Reset,
		assets:     svc.Assets,
		hub:        svc.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux:       http.NewServeMux(),
		prefix:    strings.TrimSuffix(opts.APIPrefix, "/"),
		maxUpload: opts.MaxUploadBytes,
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	p := s.prefix
	s.mux.HandleFunc("POST "+p+"/object-detection/{camId}", s.requireCamera(s.handleSubmitDetection))
	s.mux.HandleFunc("GET "+p+"/object-detection/{camId}", s.requireCamera(s.handleRecentDetections))
	s.mux.HandleFunc("GET "+p+"/object-detection/info/{camId}", s.requireCamera(s.handleCameraInfo))
	s.mux.HandleFunc("DELETE "+p+"/object-detection/clear-all", s.handleClearAll)
	s.mux.HandleFunc("DELETE "+p+"/object-detection/clear/{camId}", s.requireCamera(s.handleClearCamera))
	s.mux.HandleFunc("PATCH "+p+"/object-detection/token/{camId}", s.handleRotateToken)
	s.mux.HandleFunc("GET "+p+"/files/{camId}/{fileName}", s.handleGetFile)
	s.mux.HandleFunc("GET "+p+"/health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)
}

// requireCamera runs the camera token check before next. Requests that fail
// it never reach the handler.
func (s *Server) requireCamera(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camID := r.PathValue("camId")
		if err := s.guard.Authorize(r.Context(), camID, r.Header.Get(cameraTokenHeader)); err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.ConnectionCount(),
	})
}

// securityHeaders sets browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through to the underlying writer so websocket upgrades work
// behind the request logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr, "api_prefix", s.prefix)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
