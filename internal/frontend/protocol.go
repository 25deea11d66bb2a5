// Package frontend serves the builder daemon protocol: a websocket session
// that accepts build requests, runs resolution and graph compilation, and
// answers with a serialized operation graph or a structured, span-attributed
// error. The session is bidirectional: during compilation the server issues
// sub-requests back to the daemon (image digest resolution, build-context
// stat) correlated by ID, so several may be in flight while independent
// compilation work continues.
package frontend

import "encoding/json"

// Envelope frames every message in both directions.
type Envelope struct {
	// Type discriminates the body.
	Type string `json:"type"`
	// ID correlates requests with their replies. Build requests carry a
	// client-chosen ID; server sub-requests carry a server-chosen one.
	ID string `json:"id,omitempty"`
	// Body is the type-specific payload.
	Body json.RawMessage `json:"body,omitempty"`
}

// Message types. hello/welcome run once per session; build/result/error and
// cancel are client-driven; resolve_image and stat_path are server-driven
// sub-requests answered with reply.
const (
	MsgHello        = "hello"
	MsgWelcome      = "welcome"
	MsgBuild        = "build"
	MsgResult       = "result"
	MsgError        = "error"
	MsgCancel       = "cancel"
	MsgResolveImage = "resolve_image"
	MsgStatPath     = "stat_path"
	MsgReply        = "reply"
)

// ProtocolVersion is negotiated in the hello exchange; the server rejects
// sessions whose major version differs.
const ProtocolVersion = "1"

// Capabilities the server understands. The welcome message echoes the
// intersection with the client's set; optional behavior outside the
// intersection is disabled for the session.
const (
	CapAllVariants      = "all-variants"
	CapDigestResolution = "digest-resolution"
	CapContextStat      = "context-stat"
)

// Hello opens a session.
type Hello struct {
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// Welcome acknowledges a session.
type Welcome struct {
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// BuildRequest asks for one compilation.
type BuildRequest struct {
	// Target is the goal literal in source syntax, e.g. `stage("final")`.
	Target string `json:"target"`
	// Args bind free variables of the target goal by name.
	Args map[string]string `json:"args,omitempty"`
	// Context names the build context the daemon holds for this build;
	// stat_path sub-requests refer to it.
	Context string `json:"context,omitempty"`
	// AllVariants compiles every derivation instead of the first.
	AllVariants bool `json:"all_variants,omitempty"`
}

// BuildResult is the success payload.
type BuildResult struct {
	// Plan is the encoded operation graph.
	Plan json.RawMessage `json:"plan"`
	// Images maps base image references to their resolved digests, when the
	// session negotiated digest resolution.
	Images map[string]string `json:"images,omitempty"`
	// Derivations is the number of derivations compiled into the plan.
	Derivations int `json:"derivations"`
}

// WireError is the failure payload.
type WireError struct {
	// Kind names the error class, e.g. "syntax", "stratification".
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Line and Column attribute the error to source text when derivable.
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// ResolveImage asks the daemon for an image reference's digest.
type ResolveImage struct {
	Ref string `json:"ref"`
}

// ResolveImageReply answers a ResolveImage sub-request.
type ResolveImageReply struct {
	Digest string `json:"digest"`
}

// StatPath asks the daemon whether a build-context path exists.
type StatPath struct {
	Context string `json:"context"`
	Path    string `json:"path"`
}

// StatPathReply answers a StatPath sub-request.
type StatPathReply struct {
	Exists bool  `json:"exists"`
	Size   int64 `json:"size,omitempty"`
	Dir    bool  `json:"dir,omitempty"`
}

// Reply carries a daemon answer to a server sub-request, correlated by the
// envelope ID. Either Body or Error is set.
type Reply struct {
	Body  json.RawMessage `json:"body,omitempty"`
	Error string          `json:"error,omitempty"`
}

func marshalEnvelope(msgType, id string, body any) (Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, ID: id, Body: raw}, nil
}
