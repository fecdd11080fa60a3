// Package server exposes the media-stream endpoint and the call-control,
// health and metrics routes over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chriscow/voicebridge-go/internal/config"
	"github.com/chriscow/voicebridge-go/internal/relay"
	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/pkg/version"
)

// Banner is the body served on GET /.
const Banner = "voicebridge running"

// Server is the HTTP front of the relay.
type Server struct {
	cfg      config.ServerConfig
	metrics  config.MetricsConfig
	limit    int64
	relay    *relay.Relay
	manager  *session.Manager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	upgrader websocket.Upgrader

	server    *http.Server
	startTime time.Time
}

// New creates a server. gatherer may be nil when metrics are disabled.
func New(cfg *config.Config, rl *relay.Relay, mgr *session.Manager, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg.Server,
		metrics:  cfg.Metrics,
		limit:    cfg.Session.MaxMessageSize,
		relay:    rl,
		manager:  mgr,
		gatherer: gatherer,
		logger:   logger.With(slog.String("component", "http")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Carriers connect from their own infrastructure, not a browser.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	s.server = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("POST /twiml", s.handleTwiML)
	mux.HandleFunc("GET "+s.cfg.MediaPath, s.handleMedia)
	if s.metrics.Enabled && s.gatherer != nil {
		mux.Handle("GET "+s.metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves until ctx is done, then drains HTTP requests and closes every
// call.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			slog.String("address", s.server.Addr),
			slog.String("media_path", s.cfg.MediaPath))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server.
	closed := s.manager.CloseAll(session.ReasonShutdown)
	if closed > 0 {
		s.logger.Info("Closed active calls", slog.Int("count", closed))
	}
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Banner))
}

type healthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Uptime         string    `json:"uptime"`
	Version        string    `json:"version"`
	ActiveSessions int       `json:"active_sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC(),
		Uptime:         time.Since(s.startTime).Round(time.Second).String(),
		Version:        version.Version,
		ActiveSessions: s.manager.Count(),
	})
}

type sessionInfo struct {
	ID        string `json:"id"`
	StreamSID string `json:"stream_sid,omitempty"`
	State     string `json:"state"`
	Age       string `json:"age"`
	Pending   int    `json:"pending_frames"`
	Messages  int    `json:"history_messages"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.Snapshot()
	out := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfo{
			ID:        sess.ID(),
			StreamSID: sess.StreamSID(),
			State:     sess.State().String(),
			Age:       sess.Age().Round(time.Millisecond).String(),
			Pending:   sess.Pending(),
			Messages:  len(sess.History()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"sessions": out,
	})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	if s.limit > 0 {
		conn.SetReadLimit(s.limit)
	}

	id := uuid.NewString()
	s.logger.Info("Media stream connected",
		slog.String("connection_id", id),
		slog.String("remote_addr", r.RemoteAddr))

	_ = s.relay.Serve(r.Context(), id, conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
