// Package server serves decoded tlout and ctout files from a data directory:
// HTML reports over plain HTTP and record streams over websockets.
package server

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"rosdecode/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// reportCacheSize is the number of rendered reports kept in memory.
const reportCacheSize = 128

type Server struct {
	cfg     config.Config
	dataDir string
	tmpl    *template.Template
	reports *lru.Cache[string, []byte]
}

// New creates a server for the files in cfg.DataDir.
func New(cfg config.Config) (*Server, error) {
	dataDir, err := config.ResolveDataDir(cfg.DataDir, false)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	reports, err := lru.New[string, []byte](reportCacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		dataDir: dataDir,
		tmpl:    tmpl,
		reports: reports,
	}, nil
}

// httpError is returned by handlers to answer with a specific status code.
type httpError struct {
	StatusCode int
	Message    string
}

func (e httpError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// contentTypeError carries a successful response with a content type.
type contentTypeError struct {
	contentType string
	data        []byte
}

func (e *contentTypeError) Error() string {
	return fmt.Sprintf("response with content-type: %s", e.contentType)
}

// handlerFunc is the signature of all non-websocket handlers
type handlerFunc func(context.Context, *http.Request) ([]byte, error)

// wrapHandler adapts a handlerFunc to http.HandlerFunc
func (s *Server) wrapHandler(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h(r.Context(), r)
		if err != nil {
			var cte *contentTypeError
			if errors.As(err, &cte) {
				w.Header().Set("Content-Type", cte.contentType)
				_, _ = w.Write(cte.data)
				return
			}
			var he httpError
			if errors.As(err, &he) {
				slog.Error("HTTP handler error",
					"method", r.Method,
					"path", r.URL.Path,
					"status", he.StatusCode,
					"error", he.Message)
				http.Error(w, he.Message, he.StatusCode)
				return
			}
			slog.Error("HTTP handler error",
				"method", r.Method,
				"path", r.URL.Path,
				"status", http.StatusInternalServerError,
				"error", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if len(data) > 0 {
			_, _ = w.Write(data)
		}
	}
}

// loggingMiddleware logs each HTTP request
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		rw.statusCode = http.StatusSwitchingProtocols
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
}

func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.wrapHandler(s.handleIndex))
	mux.HandleFunc("GET /files/{name}/report", s.wrapHandler(s.handleReport))

	mux.HandleFunc("GET /ws/tlout/{name}", s.handleWSTimelines)
	mux.HandleFunc("GET /ws/ctout/{name}", s.handleWSContacts)

	return s.loggingMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", "http://"+addr, "data_dir", s.dataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin only, to prevent cross-site WebSocket hijacking
		origin := r.Header.Get("Origin")
		if origin == "" {
			// native clients
			return true
		}

		host := r.Host
		for _, expected := range []string{"http://" + host, "https://" + host} {
			if origin == expected {
				return true
			}
		}

		slog.Warn("Rejected WebSocket connection from unauthorized origin", "origin", origin, "host", host)
		return false
	},
}
