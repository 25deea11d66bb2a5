package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vk/bricklog/internal/config"
	"github.com/vk/bricklog/internal/ctxlog"
	"github.com/vk/bricklog/internal/logic"
)

// Server accepts daemon sessions over websocket. The program it serves is
// immutable; any number of sessions and builds may run against it
// concurrently without locking.
type Server struct {
	settings *config.Settings
	program  *logic.Program
	digests  *lru.Cache[string, string]
	upgrader websocket.Upgrader

	httpServer *http.Server
}

// NewServer builds a server for one program. The digest cache is shared
// across all sessions; a size of zero disables it.
func NewServer(settings *config.Settings, program *logic.Program) (*Server, error) {
	s := &Server{
		settings: settings,
		program:  program,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Sessions come from the builder daemon, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if size := settings.Listen.DigestCacheSize; size > 0 {
		cache, err := lru.New[string, string](size)
		if err != nil {
			return nil, fmt.Errorf("creating digest cache: %w", err)
		}
		s.digests = cache
	}
	return s, nil
}

// Handler returns the HTTP mux serving the session endpoint and the health
// probe.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		s.handleSession(ctx, w, r)
	})
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleSession(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(ctx)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	sess := newSession(s, conn)
	logger.Debug("session accepted", "remote", r.RemoteAddr, "session", sess.id)
	if err := sess.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("session ended", "session", sess.id, "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clauses": s.program.Len(),
	})
}

// ListenAndServe serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	listener, err := net.Listen("tcp", s.settings.Listen.Address)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.settings.Listen.Address, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()
	logger.Info("frontend listening", "address", listener.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down frontend: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
