package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bricklog/internal/buildgraph"
	"github.com/vk/bricklog/internal/config"
	"github.com/vk/bricklog/internal/ctxlog"
	"github.com/vk/bricklog/internal/parser"
)

const testProgram = `
stage("build") :- from("rust")::run("cargo build").
stage("final") :- from("alpine")::copy("build", "/bin/app", "/bin/app")::copy("local.conf", "/etc/app.conf").
`

// testDaemon is a scripted stand-in for the builder daemon side of a
// session.
type testDaemon struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialTestServer(t *testing.T, programSrc string) (*testDaemon, func()) {
	t.Helper()
	prog, _, err := parser.Parse(programSrc)
	require.NoError(t, err)

	settings := config.Default()
	srv, err := NewServer(settings, prog)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), ctxlog.Discard()))
	httpSrv := httptest.NewServer(srv.Handler(ctx))

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		cancel()
		httpSrv.Close()
	}
	return &testDaemon{t: t, conn: conn}, cleanup
}

func (d *testDaemon) send(msgType, id string, body any) {
	d.t.Helper()
	env, err := marshalEnvelope(msgType, id, body)
	require.NoError(d.t, err)
	require.NoError(d.t, d.conn.WriteJSON(env))
}

func (d *testDaemon) recv() Envelope {
	d.t.Helper()
	require.NoError(d.t, d.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env Envelope
	require.NoError(d.t, d.conn.ReadJSON(&env))
	return env
}

func (d *testDaemon) handshake(caps ...string) Welcome {
	d.t.Helper()
	d.send(MsgHello, "", Hello{Version: ProtocolVersion, Capabilities: caps})
	env := d.recv()
	require.Equal(d.t, MsgWelcome, env.Type)
	var welcome Welcome
	require.NoError(d.t, json.Unmarshal(env.Body, &welcome))
	return welcome
}

// pump answers server sub-requests until a terminal result or error
// envelope for the build arrives.
func (d *testDaemon) pump() Envelope {
	d.t.Helper()
	for {
		env := d.recv()
		switch env.Type {
		case MsgResolveImage:
			var req ResolveImage
			require.NoError(d.t, json.Unmarshal(env.Body, &req))
			reply, _ := json.Marshal(ResolveImageReply{Digest: "sha256:" + req.Ref})
			d.send(MsgReply, env.ID, Reply{Body: reply})
		case MsgStatPath:
			var req StatPath
			require.NoError(d.t, json.Unmarshal(env.Body, &req))
			reply, _ := json.Marshal(StatPathReply{Exists: true, Size: 64})
			d.send(MsgReply, env.ID, Reply{Body: reply})
		case MsgResult, MsgError:
			return env
		default:
			d.t.Fatalf("unexpected message type %q", env.Type)
		}
	}
}

func TestHandshake(t *testing.T) {
	t.Run("capability intersection", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		welcome := d.handshake(CapDigestResolution, "future-feature")
		assert.Equal(t, ProtocolVersion, welcome.Version)
		assert.Equal(t, []string{CapDigestResolution}, welcome.Capabilities)
	})

	t.Run("wrong first message", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.send(MsgBuild, "b1", BuildRequest{Target: `stage("final")`})
		env := d.recv()
		require.Equal(t, MsgError, env.Type)
		var we WireError
		require.NoError(t, json.Unmarshal(env.Body, &we))
		assert.Equal(t, "protocol", we.Kind)
	})

	t.Run("version mismatch", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.send(MsgHello, "", Hello{Version: "99"})
		env := d.recv()
		assert.Equal(t, MsgError, env.Type)
	})
}

func TestBuildExchange(t *testing.T) {
	t.Run("full build with sub-requests", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.handshake(CapDigestResolution, CapContextStat)

		d.send(MsgBuild, "b1", BuildRequest{Target: `stage("final")`, Context: "ctx1"})
		env := d.pump()
		require.Equal(t, MsgResult, env.Type, "body: %s", env.Body)
		assert.Equal(t, "b1", env.ID)

		var result BuildResult
		require.NoError(t, json.Unmarshal(env.Body, &result))
		assert.Equal(t, 1, result.Derivations)
		assert.Equal(t, "sha256:alpine", result.Images["alpine"])
		assert.Equal(t, "sha256:rust", result.Images["rust"])

		graph, err := buildgraph.Decode(bytes.NewReader(result.Plan))
		require.NoError(t, err)
		assert.Equal(t, 5, graph.Len())
		require.Len(t, graph.Outputs(), 1)
	})

	t.Run("no sub-requests without capabilities", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.handshake()

		d.send(MsgBuild, "b1", BuildRequest{Target: `stage("final")`, Context: "ctx1"})
		env := d.recv()
		require.Equal(t, MsgResult, env.Type, "body: %s", env.Body)
		var result BuildResult
		require.NoError(t, json.Unmarshal(env.Body, &result))
		assert.Empty(t, result.Images)
	})

	t.Run("build arguments bind goal variables", func(t *testing.T) {
		d, cleanup := dialTestServer(t, `img(Tag) :- from(f"alpine:${Tag}").`)
		defer cleanup()
		d.handshake()

		d.send(MsgBuild, "b1", BuildRequest{
			Target: `img(Tag)`,
			Args:   map[string]string{"Tag": "3.20"},
		})
		env := d.recv()
		require.Equal(t, MsgResult, env.Type, "body: %s", env.Body)
		var result BuildResult
		require.NoError(t, json.Unmarshal(env.Body, &result))
		graph, err := buildgraph.Decode(bytes.NewReader(result.Plan))
		require.NoError(t, err)
		require.Equal(t, 1, graph.Len())
		assert.Equal(t, []string{"alpine:3.20"}, graph.Nodes()[0].Args)
	})

	t.Run("unknown argument rejected", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.handshake()

		d.send(MsgBuild, "b1", BuildRequest{
			Target: `stage("final")`,
			Args:   map[string]string{"Bogus": "1"},
		})
		env := d.recv()
		assert.Equal(t, MsgError, env.Type)
	})

	t.Run("compilation failure carries span attribution", func(t *testing.T) {
		d, cleanup := dialTestServer(t, "app(X) :- run(X).\n")
		defer cleanup()
		d.handshake()

		d.send(MsgBuild, "b1", BuildRequest{Target: `app(Cmd)`})
		env := d.recv()
		require.Equal(t, MsgError, env.Type)
		var we WireError
		require.NoError(t, json.Unmarshal(env.Body, &we))
		assert.Equal(t, "unbound-argument", we.Kind)
		assert.Equal(t, 1, we.Line)
	})

	t.Run("failed sub-request fails the build", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.handshake(CapDigestResolution)

		d.send(MsgBuild, "b1", BuildRequest{Target: `stage("final")`})
		for {
			env := d.recv()
			if env.Type == MsgResolveImage {
				d.send(MsgReply, env.ID, Reply{Error: "registry unreachable"})
				continue
			}
			require.Equal(t, MsgError, env.Type)
			var we WireError
			require.NoError(t, json.Unmarshal(env.Body, &we))
			assert.Equal(t, "protocol", we.Kind)
			break
		}
	})
}

func TestBuildCancellation(t *testing.T) {
	t.Run("cancelled build goes quiet, session stays usable", func(t *testing.T) {
		d, cleanup := dialTestServer(t, `img :- from("alpine").`)
		defer cleanup()
		d.handshake(CapDigestResolution)

		// Park the build on its digest sub-request, then cancel it instead
		// of replying.
		d.send(MsgBuild, "b1", BuildRequest{Target: "img"})
		env := d.recv()
		require.Equal(t, MsgResolveImage, env.Type)
		d.send(MsgCancel, "b1", nil)

		// Neither a result nor an error for b1 may arrive; the next traffic
		// on the session belongs to b2.
		d.send(MsgBuild, "b2", BuildRequest{Target: "img"})
		env = d.pump()
		require.Equal(t, MsgResult, env.Type, "body: %s", env.Body)
		assert.Equal(t, "b2", env.ID)
	})

	t.Run("cancel for unknown build is rejected", func(t *testing.T) {
		d, cleanup := dialTestServer(t, testProgram)
		defer cleanup()
		d.handshake()

		d.send(MsgCancel, "nope", nil)
		env := d.recv()
		require.Equal(t, MsgError, env.Type)
		assert.Equal(t, "nope", env.ID)
		var we WireError
		require.NoError(t, json.Unmarshal(env.Body, &we))
		assert.Equal(t, "protocol", we.Kind)
	})
}

func TestDigestCache(t *testing.T) {
	d, cleanup := dialTestServer(t, `img :- from("alpine").`)
	defer cleanup()
	d.handshake(CapDigestResolution)

	// First build resolves over the wire.
	d.send(MsgBuild, "b1", BuildRequest{Target: "img"})
	env := d.pump()
	require.Equal(t, MsgResult, env.Type, "body: %s", env.Body)

	// Second build must answer from the cache without a sub-request.
	d.send(MsgBuild, "b2", BuildRequest{Target: "img"})
	env = d.recv()
	require.Equal(t, MsgResult, env.Type, "body: %s", env.Body)
	var result BuildResult
	require.NoError(t, json.Unmarshal(env.Body, &result))
	assert.Equal(t, "sha256:alpine", result.Images["alpine"])
}
