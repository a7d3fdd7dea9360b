package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aulavoz/aulavoz/internal/health"
	"github.com/aulavoz/aulavoz/internal/observe"
)

// shutdownGrace bounds the graceful HTTP shutdown after ctx is cancelled.
const shutdownGrace = 10 * time.Second

// Config configures a [Server].
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// NewSession builds the per-connection session. Required.
	NewSession SessionFactory

	// Health serves /healthz and /readyz. Required.
	Health *health.Handler

	// Metrics instruments the HTTP surface and session gauge. Required.
	Metrics *observe.Metrics

	// OriginPatterns restricts WebSocket origins. Empty allows only
	// same-host requests (the coder/websocket default).
	OriginPatterns []string
}

// Server owns the HTTP listener and the WebSocket upgrade path.
type Server struct {
	cfg Config
	srv *http.Server
}

// New validates cfg and builds the server with its route table.
func New(cfg Config) (*Server, error) {
	if cfg.NewSession == nil {
		return nil, errors.New("gateway: NewSession is required")
	}
	if cfg.Health == nil {
		return nil, errors.New("gateway: Health is required")
	}
	if cfg.Metrics == nil {
		return nil, errors.New("gateway: Metrics is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(cfg.Metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's root handler, mainly for tests that mount it
// on their own listener.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully. It always
// returns a non-nil error; after a clean shutdown that error is ctx's cause.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			err = s.srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return ctx.Err()
}

// handleWS upgrades the request and runs the frame loop until the widget
// disconnects or the server shuts down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx := r.Context()
	lang := r.URL.Query().Get("lang")
	log := observe.Logger(ctx).With("remote", r.RemoteAddr, "lang", lang)

	emit := &wsEmitter{conn: conn}
	sess := s.cfg.NewSession(emit, lang)
	defer sess.Close()

	s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer s.cfg.Metrics.ActiveSessions.Add(ctx, -1)

	log.Info("widget connected")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				log.Info("widget disconnected")
			} else {
				log.Warn("websocket read failed", "err", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("malformed frame", "err", err)
			_ = emit.Emit(ctx, ServerFrame{
				Type:  ServerError,
				Code:  "bad_frame",
				Error: "malformed JSON frame",
			})
			continue
		}

		if err := sess.HandleFrame(ctx, frame); err != nil {
			log.Warn("frame handling failed", "frame", frame.Type, "err", err)
		}
	}
}
