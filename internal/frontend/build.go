package frontend

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/bricklog/internal/buildgraph"
	"github.com/vk/bricklog/internal/builtin"
	"github.com/vk/bricklog/internal/ctxlog"
	"github.com/vk/bricklog/internal/logic"
	"github.com/vk/bricklog/internal/parser"
	"github.com/vk/bricklog/internal/solver"
)

// runBuild takes a build request through the full pipeline: goal parsing,
// argument binding, resolution, graph compilation, and the post-compile
// daemon round trips (digest resolution, context stat). The returned result
// is ready to send; any error is classified by toWireError at the boundary.
func (s *Session) runBuild(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	goal, err := parser.ParseGoal(req.Target)
	if err != nil {
		return nil, err
	}
	goal, err = s.bindArgs(goal, req.Args)
	if err != nil {
		return nil, err
	}

	opts := s.srv.settings.SolverOptions()
	var derivations []*solver.Derivation
	if req.AllVariants && s.caps[CapAllVariants] {
		derivations, err = solver.SolveAll(ctx, s.srv.program, goal, opts)
	} else {
		var d *solver.Derivation
		d, err = solver.First(ctx, s.srv.program, goal, opts)
		if d != nil {
			derivations = []*solver.Derivation{d}
		}
	}
	if err != nil {
		return nil, err
	}

	compiler := buildgraph.NewCompiler(s.srv.program, opts)
	for _, d := range derivations {
		if err := compiler.Compile(ctx, d.Goal, d); err != nil {
			return nil, err
		}
	}
	graph := compiler.Graph()

	images, err := s.resolveGraphInputs(ctx, graph, req)
	if err != nil {
		return nil, err
	}

	plan, err := buildgraph.EncodeBytes(graph)
	if err != nil {
		return nil, err
	}
	return &BuildResult{
		Plan:        plan,
		Images:      images,
		Derivations: len(derivations),
	}, nil
}

// bindArgs grounds the goal's free variables from request arguments, with
// the settings file's defaults filling any gap. A variable neither the
// request nor the defaults cover is left free; if the goal then reaches a
// builtin, resolution reports it as an unbound argument.
func (s *Session) bindArgs(goal logic.Literal, args map[string]string) (logic.Literal, error) {
	subst := logic.EmptySubstitution()
	for _, name := range logic.SortedUnique(goal.Variables(nil)) {
		if v, ok := args[name]; ok {
			subst = subst.Extend(name, logic.Constant(v))
			continue
		}
		if v, ok := s.srv.settings.Args[name]; ok {
			subst = subst.Extend(name, logic.Constant(v))
		}
	}
	for name := range args {
		if _, ok := subst.Lookup(name); !ok {
			return logic.Literal{}, protocolErrorf(CodeBadMessage,
				"build argument %q does not match a free variable of %s", name, goal.String())
		}
	}
	return subst.ApplyLiteral(goal), nil
}

// resolveGraphInputs performs the daemon round trips the compiled graph
// needs: each distinct base image resolves to a digest and each local copy
// source is stat'ed in the build context. The round trips run concurrently;
// a slow registry lookup never delays an unrelated stat.
func (s *Session) resolveGraphInputs(ctx context.Context, graph *buildgraph.Graph, req BuildRequest) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	var refs, paths []string
	seenRef := map[string]bool{}
	seenPath := map[string]bool{}
	for _, n := range graph.Nodes() {
		switch n.Kind {
		case builtin.OpFrom:
			if s.caps[CapDigestResolution] && !seenRef[n.Args[0]] {
				seenRef[n.Args[0]] = true
				refs = append(refs, n.Args[0])
			}
		case builtin.OpCopy:
			if s.caps[CapContextStat] && req.Context != "" && !seenPath[n.Args[0]] {
				seenPath[n.Args[0]] = true
				paths = append(paths, n.Args[0])
			}
		}
	}
	if len(refs) == 0 && len(paths) == 0 {
		return nil, nil
	}

	digests := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			digest, err := s.resolveDigest(gctx, ref)
			if err != nil {
				return err
			}
			digests[i] = digest
			return nil
		})
	}
	for _, path := range paths {
		path := path
		g.Go(func() error {
			var reply StatPathReply
			err := s.subRequest(gctx, MsgStatPath, StatPath{Context: req.Context, Path: path}, &reply)
			if err != nil {
				return err
			}
			if !reply.Exists {
				return fmt.Errorf("copy source %q not found in build context %q", path, req.Context)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	images := make(map[string]string, len(refs))
	for i, ref := range refs {
		images[ref] = digests[i]
	}
	logger.Debug("graph inputs resolved", "images", len(images), "paths", len(paths))
	return images, nil
}

// resolveDigest answers from the shared cache when it can; a miss costs one
// daemon round trip and populates the cache for every session.
func (s *Session) resolveDigest(ctx context.Context, ref string) (string, error) {
	if s.srv.digests != nil {
		if digest, ok := s.srv.digests.Get(ref); ok {
			return digest, nil
		}
	}
	var reply ResolveImageReply
	if err := s.subRequest(ctx, MsgResolveImage, ResolveImage{Ref: ref}, &reply); err != nil {
		return "", err
	}
	if reply.Digest == "" {
		return "", protocolErrorf(CodeSubRequest, "empty digest for image %q", ref)
	}
	if s.srv.digests != nil {
		s.srv.digests.Add(ref, reply.Digest)
	}
	return reply.Digest, nil
}
