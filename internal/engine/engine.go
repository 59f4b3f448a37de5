package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/casket/internal/canon"
	"github.com/roach88/casket/internal/layout"
	"github.com/roach88/casket/internal/manifest"
)

// Engine executes registered executors against a content-addressed store
// rooted at a single directory. It holds no per-artifact state between
// calls other than the registry itself; all durable state lives on disk.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// Execute calls for the same (kind, input) are permitted within a process
// and across processes sharing the filesystem; mutual exclusion derives
// from the atomicity of directory rename, not from locks.
type Engine struct {
	root        string
	mu          sync.RWMutex
	executors   map[string]*executor
	log         *slog.Logger
	keepScratch bool
	rec         Recorder
}

// New creates an Engine over the store rooted at root. The store subtree
// <root>/fs-data/<storeVersion>/ is created lazily when the first build
// prepares its scratch directory.
func New(root string, opts ...Option) *Engine {
	e := &Engine{
		root:      root,
		executors: make(map[string]*executor),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the configured store root.
func (e *Engine) Root() string {
	return e.root
}

// Execute runs the execute-or-cache-hit state machine for cfg and returns
// the path of the artifact's entry link. The link's parent directory is
// the artifact directory; following the link yields the entry point inside
// the workspace.
//
// Identical (kind, input) pairs return the previously published artifact
// without re-running the function. ForceRecompute discards any cached
// artifact first. Declared dependencies are durably on disk before the
// function runs, and stale or broken dependency mounts of a cached
// artifact are repaired before it is returned.
func (e *Engine) Execute(ctx context.Context, cfg Config) (string, error) {
	return e.execute(ctx, cfg, nil)
}

// Peek probes the cache for (kind, input) without executing anything.
// Returns the entry link path and true when a published artifact exists.
func (e *Engine) Peek(kind string, input any) (string, bool, error) {
	if err := layout.ValidateKind(kind); err != nil {
		return "", false, &Error{Code: CodeInvalidArgument, Kind: kind, Err: err}
	}
	fp, err := canon.Fingerprint(kind, input)
	if err != nil {
		return "", false, &Error{Code: CodeUnserializable, Kind: kind, Err: err}
	}
	dir := layout.ArtifactDir(e.root, kind, fp)
	if !manifest.Exists(dir) {
		return "", false, nil
	}
	return manifest.EntryLinkPath(dir), true, nil
}

// Forget deletes the artifact for (kind, input). Idempotent: a missing
// artifact is not an error.
func (e *Engine) Forget(kind string, input any) error {
	if err := layout.ValidateKind(kind); err != nil {
		return &Error{Code: CodeInvalidArgument, Kind: kind, Err: err}
	}
	fp, err := canon.Fingerprint(kind, input)
	if err != nil {
		return &Error{Code: CodeUnserializable, Kind: kind, Err: err}
	}
	dir := layout.ArtifactDir(e.root, kind, fp)
	if err := os.RemoveAll(dir); err != nil {
		return &Error{Code: CodeIO, Kind: kind, Fingerprint: fp, Message: "forget", Err: err}
	}
	e.log.Debug("artifact forgotten", "kind", kind, "fingerprint", fp)
	return nil
}

// execute is the recursive worker behind Execute. ch carries the
// (kind, fingerprint) pairs already in flight on this call path for cycle
// detection across dynamic dependencies.
func (e *Engine) execute(ctx context.Context, cfg Config, ch chain) (_ string, retErr error) {
	started := time.Now()
	outcome := OutcomeFailed
	var fp string
	defer func() {
		e.record(ctx, cfg.Kind, fp, outcome, retErr, started)
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := layout.ValidateKind(cfg.Kind); err != nil {
		return "", &Error{Code: CodeInvalidArgument, Kind: cfg.Kind, Phase: phaseResolve, Err: err}
	}
	ex, ok := e.lookup(cfg.Kind)
	if !ok {
		return "", &Error{Code: CodeNotFound, Kind: cfg.Kind, Phase: phaseResolve, Message: "unknown executor"}
	}
	deps, err := ex.resolveDeps(cfg.Input)
	if err != nil {
		return "", &Error{Code: CodeInvalidArgument, Kind: cfg.Kind, Phase: phaseResolve, Err: err}
	}

	fp, err = canon.Fingerprint(cfg.Kind, cfg.Input)
	if err != nil {
		return "", &Error{Code: CodeUnserializable, Kind: cfg.Kind, Phase: phaseResolve, Err: err}
	}
	key := chainKey(cfg.Kind, fp)
	if ch.contains(key) {
		return "", &Error{
			Code: CodeInvalidArgument, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseResolve,
			Message: "dependency cycle: artifact depends on itself",
		}
	}
	ch = ch.push(key)

	dir := layout.ArtifactDir(e.root, cfg.Kind, fp)

	// Probe the cache. Out-of-band deletion is simply a miss.
	var createdAt string
	if manifest.Exists(dir) {
		switch {
		case cfg.ForceRecompute:
			// Descriptor createdAt survives an explicit rebuild.
			if d, err := manifest.Read(dir); err == nil {
				createdAt = d.CreatedAt
			}
			if err := os.RemoveAll(dir); err != nil {
				return "", &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseProbe, Err: err}
			}
			e.log.Debug("forced recompute", "kind", cfg.Kind, "fingerprint", fp)
		default:
			path, hit, err := e.probeHit(ctx, dir, cfg, fp, deps, ch)
			if err != nil {
				return "", err
			}
			if hit.ok {
				if hit.recovered {
					outcome = OutcomeRecovered
				} else {
					outcome = OutcomeHit
				}
				return path, nil
			}
			// Corrupt entry link: the artifact was deleted, rebuild below.
		}
	}

	path, err := e.build(ctx, ex, cfg, fp, dir, deps, ch, createdAt)
	if err != nil {
		return "", err
	}
	outcome = OutcomeBuild
	return path, nil
}

// hitResult reports whether a cache probe ended in a usable artifact.
type hitResult struct {
	ok        bool
	recovered bool
}

// probeHit validates a present artifact and runs dependency recovery.
//
// A corrupt descriptor surfaces to the caller: the store cannot decide
// whether the input that produced it is still wanted. A broken or escaping
// entry link is local corruption; the artifact is deleted and (ok=false)
// tells the caller to rebuild.
func (e *Engine) probeHit(ctx context.Context, dir string, cfg Config, fp string, deps map[string]Config, ch chain) (string, hitResult, error) {
	if _, err := manifest.Read(dir); err != nil {
		if errors.Is(err, manifest.ErrCorrupt) {
			return "", hitResult{}, &Error{Code: CodeCorrupt, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseProbe, Err: err}
		}
		return "", hitResult{}, &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseProbe, Err: err}
	}
	if _, err := manifest.ResolveEntryLink(dir); err != nil {
		e.log.Warn("cache corruption, rebuilding artifact",
			"kind", cfg.Kind, "fingerprint", fp, "error", err)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return "", hitResult{}, &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseProbe, Err: rmErr}
		}
		return "", hitResult{}, nil
	}

	recovered, err := e.recoverDeps(ctx, dir, cfg, fp, deps, ch)
	if err != nil {
		return "", hitResult{}, err
	}
	e.log.Debug("cache hit", "kind", cfg.Kind, "fingerprint", fp, "recovered", recovered)
	return manifest.EntryLinkPath(dir), hitResult{ok: true, recovered: recovered}, nil
}

// record writes one journal row. Journal failures are logged and dropped;
// the artifact result must not depend on observability plumbing.
func (e *Engine) record(ctx context.Context, kind, fp string, outcome Outcome, runErr error, started time.Time) {
	if e.rec == nil {
		return
	}
	run := Run{
		ID:          uuid.NewString(),
		Kind:        kind,
		Fingerprint: fp,
		Outcome:     outcome,
		StartedAt:   started.UTC(),
		Duration:    time.Since(started),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := e.rec.Record(context.WithoutCancel(ctx), run); err != nil {
		e.log.Warn("journal record failed", "kind", kind, "error", err)
	}
}

// now returns the RFC 3339 UTC timestamp written into descriptors.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
