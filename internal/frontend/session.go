package frontend

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vk/bricklog/internal/ctxlog"
)

// Session is one daemon connection. All writes go through writeEnvelope
// under a mutex; reads happen on a single loop, which is the websocket
// concurrency contract.
type Session struct {
	id   string
	conn *websocket.Conn
	srv  *Server
	caps map[string]bool

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Reply
	builds  map[string]context.CancelFunc
	closed  bool
}

func newSession(srv *Server, conn *websocket.Conn) *Session {
	return &Session{
		id:      uuid.NewString(),
		conn:    conn,
		srv:     srv,
		caps:    map[string]bool{},
		pending: map[string]chan Reply{},
		builds:  map[string]context.CancelFunc{},
	}
}

// Serve runs the handshake and then the session's read loop until the
// connection drops, the context is cancelled, or the handshake fails.
func (s *Session) Serve(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("session", s.id)
	ctx = ctxlog.WithLogger(ctx, logger)
	defer s.teardown()

	if err := s.handshake(ctx); err != nil {
		logger.Warn("handshake failed", "error", err)
		s.sendError(ctx, "", err)
		return err
	}
	logger.Info("session established", "capabilities", s.capabilityList())

	for {
		var env Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug("connection closed", "error", err)
			return nil
		}
		if err := s.dispatch(ctx, env); err != nil {
			logger.Warn("message rejected", "type", env.Type, "id", env.ID, "error", err)
			s.sendError(ctx, env.ID, err)
		}
	}
}

// handshake requires hello as the first message and answers with welcome
// carrying the capability intersection.
func (s *Session) handshake(ctx context.Context) error {
	var env Envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		return protocolErrorf(CodeBadHandshake, "reading hello: %v", err)
	}
	if env.Type != MsgHello {
		return protocolErrorf(CodeBadHandshake, "expected %s, got %s", MsgHello, env.Type)
	}
	var hello Hello
	if err := json.Unmarshal(env.Body, &hello); err != nil {
		return protocolErrorf(CodeBadMessage, "decoding hello: %v", err)
	}
	if hello.Version != ProtocolVersion {
		return protocolErrorf(CodeUnsupported, "protocol version %q, server speaks %q",
			hello.Version, ProtocolVersion)
	}

	supported := map[string]bool{
		CapAllVariants:      true,
		CapDigestResolution: true,
		CapContextStat:      true,
	}
	for _, c := range hello.Capabilities {
		if supported[c] {
			s.caps[c] = true
		}
	}
	return s.writeMessage(MsgWelcome, "", Welcome{
		Version:      ProtocolVersion,
		Capabilities: s.capabilityList(),
	})
}

func (s *Session) dispatch(ctx context.Context, env Envelope) error {
	switch env.Type {
	case MsgBuild:
		var req BuildRequest
		if err := json.Unmarshal(env.Body, &req); err != nil {
			return protocolErrorf(CodeBadMessage, "decoding build request: %v", err)
		}
		if env.ID == "" {
			return protocolErrorf(CodeBadMessage, "build request without id")
		}
		return s.startBuild(ctx, env.ID, req)

	case MsgCancel:
		s.mu.Lock()
		cancel := s.builds[env.ID]
		s.mu.Unlock()
		if cancel == nil {
			return protocolErrorf(CodeUnknownID, "cancel for unknown build %q", env.ID)
		}
		cancel()
		return nil

	case MsgReply:
		var reply Reply
		if err := json.Unmarshal(env.Body, &reply); err != nil {
			return protocolErrorf(CodeBadMessage, "decoding reply: %v", err)
		}
		s.mu.Lock()
		ch := s.pending[env.ID]
		delete(s.pending, env.ID)
		s.mu.Unlock()
		if ch == nil {
			return protocolErrorf(CodeUnknownID, "reply for unknown sub-request %q", env.ID)
		}
		ch <- reply
		return nil

	default:
		return protocolErrorf(CodeBadMessage, "unexpected message type %q", env.Type)
	}
}

// startBuild launches the compilation on its own goroutine, keeping the
// read loop free to route sub-request replies and cancellations.
func (s *Session) startBuild(ctx context.Context, id string, req BuildRequest) error {
	s.mu.Lock()
	if _, exists := s.builds[id]; exists {
		s.mu.Unlock()
		return protocolErrorf(CodeDuplicateID, "build %q already in flight", id)
	}
	buildCtx, cancel := context.WithCancel(ctx)
	s.builds[id] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.builds, id)
			s.mu.Unlock()
		}()
		logger := ctxlog.FromContext(ctx).With("build", id, "target", req.Target)
		result, err := s.runBuild(ctxlog.WithLogger(buildCtx, logger), req)
		if err != nil {
			if buildCtx.Err() != nil {
				logger.Info("build cancelled")
				return
			}
			logger.Warn("build failed", "error", err)
			s.sendError(ctx, id, err)
			return
		}
		logger.Info("build compiled", "derivations", result.Derivations)
		if err := s.writeMessage(MsgResult, id, result); err != nil {
			logger.Warn("result delivery failed", "error", err)
		}
	}()
	return nil
}

// subRequest sends a server-initiated request over the session and blocks
// until the daemon replies or the context is cancelled. Multiple
// sub-requests may be outstanding at once.
func (s *Session) subRequest(ctx context.Context, msgType string, body any, out any) error {
	id := uuid.NewString()
	ch := make(chan Reply, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return protocolErrorf(CodeSessionClosed, "session closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.writeMessage(msgType, id, body); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return protocolErrorf(CodeSubRequest, "sending %s: %v", msgType, err)
	}

	select {
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return ctx.Err()
	case reply := <-ch:
		if reply.Error != "" {
			return protocolErrorf(CodeSubRequest, "%s: %s", msgType, reply.Error)
		}
		if err := json.Unmarshal(reply.Body, out); err != nil {
			return protocolErrorf(CodeBadMessage, "decoding %s reply: %v", msgType, err)
		}
		return nil
	}
}

func (s *Session) writeMessage(msgType, id string, body any) error {
	env, err := marshalEnvelope(msgType, id, body)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *Session) sendError(ctx context.Context, id string, err error) {
	if werr := s.writeMessage(MsgError, id, toWireError(err)); werr != nil {
		ctxlog.FromContext(ctx).Debug("error delivery failed", "error", werr)
	}
}

// teardown cancels in-flight builds and fails outstanding sub-requests so
// no goroutine stays blocked on a dead connection.
func (s *Session) teardown() {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.builds {
		cancel()
	}
	for id, ch := range s.pending {
		delete(s.pending, id)
		ch <- Reply{Error: "session closed"}
	}
	s.mu.Unlock()
	s.conn.Close()
}

func (s *Session) capabilityList() []string {
	var out []string
	for _, c := range []string{CapAllVariants, CapDigestResolution, CapContextStat} {
		if s.caps[c] {
			out = append(out, c)
		}
	}
	return out
}
