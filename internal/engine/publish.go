package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/casket/internal/layout"
	"github.com/roach88/casket/internal/linker"
	"github.com/roach88/casket/internal/manifest"
)

// build materializes the artifact for (cfg, fp) at dir: dependencies are
// resolved and mounted into a scratch workspace, the user function runs,
// the descriptor and entry link are staged, and the scratch directory is
// renamed into place.
//
// createdAt, when non-empty, is the original creation timestamp preserved
// across a forced recompute.
func (e *Engine) build(ctx context.Context, ex *executor, cfg Config, fp, dir string, deps map[string]Config, ch chain, createdAt string) (string, error) {
	depDirs, err := e.resolveDepArtifacts(ctx, cfg, fp, deps, ch)
	if err != nil {
		return "", err
	}

	scratch := layout.ScratchDir(e.root, cfg.Kind, fp, uuid.NewString())
	ws := filepath.Join(scratch, layout.WorkspaceDirName)
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phasePrepare, Err: err}
	}

	path, err := e.buildInScratch(ctx, ex, cfg, fp, dir, scratch, ws, deps, depDirs, createdAt)
	if err != nil {
		e.cleanScratch(scratch)
		return "", err
	}
	return path, nil
}

// buildInScratch runs the mount, fn, descriptor, and publish phases inside
// an existing scratch directory. The caller owns scratch cleanup on error.
func (e *Engine) buildInScratch(ctx context.Context, ex *executor, cfg Config, fp, dir, scratch, ws string, deps map[string]Config, depDirs map[string]string, createdAt string) (string, error) {
	for _, mount := range sortedMounts(deps) {
		if err := linker.Mount(ws, mount, depDirs[mount]); err != nil {
			return "", &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseMount, Err: err}
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := ex.fn(ctx, cfg.Input, ws)
	if err != nil {
		return "", &Error{Code: CodeUserFnFailed, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRunFn, Err: err}
	}
	if err := manifest.ValidateEntry(res.Entry); err != nil {
		return "", &Error{Code: CodeInvalidArgument, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRunFn, Err: err}
	}

	ts := now()
	if createdAt == "" {
		createdAt = ts
	}
	meta := res.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	desc := manifest.Descriptor{
		ManifestVersion: manifest.Version,
		Kind:            cfg.Kind,
		Input:           cfg.Input,
		Metadata:        meta,
		CreatedAt:       createdAt,
		UpdatedAt:       ts,
	}
	if err := manifest.Write(scratch, desc); err != nil {
		return "", &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseDescriptor, Err: err}
	}
	if err := manifest.CreateEntryLink(scratch, res.Entry); err != nil {
		return "", &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseDescriptor, Err: err}
	}

	return e.publish(cfg, fp, scratch, dir)
}

// publish renames the staged scratch directory onto the artifact path.
// Winner-takes-all: when the rename fails because another writer already
// published this fingerprint, the loser discards its scratch and adopts
// the existing artifact.
func (e *Engine) publish(cfg Config, fp, scratch, dir string) (string, error) {
	if err := os.Rename(scratch, dir); err != nil {
		if manifest.Exists(dir) {
			if rmErr := os.RemoveAll(scratch); rmErr != nil {
				e.log.Warn("discarding scratch after lost race failed",
					"kind", cfg.Kind, "fingerprint", fp, "error", rmErr)
			}
			e.log.Debug("publish race lost, reusing existing artifact",
				"kind", cfg.Kind, "fingerprint", fp)
			return manifest.EntryLinkPath(dir), nil
		}
		return "", &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phasePublish, Message: "publish failed", Err: err}
	}
	e.log.Info("artifact published", "kind", cfg.Kind, "fingerprint", fp)
	return manifest.EntryLinkPath(dir), nil
}

// resolveDepArtifacts executes every declared dependency and returns the
// artifact directory per mount path. Independent dependencies resolve in
// parallel; every dependency is durably on disk before this returns.
func (e *Engine) resolveDepArtifacts(ctx context.Context, cfg Config, fp string, deps map[string]Config, ch chain) (map[string]string, error) {
	if len(deps) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		depDirs  = make(map[string]string, len(deps))
		firstErr error
	)
	for mount, dep := range deps {
		mount, dep := mount, dep
		wg.Add(1)
		go func() {
			defer wg.Done()
			entryPath, err := e.execute(ctx, dep, ch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = &Error{
						Code: CodeDependencyFailed, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseMount,
						Message: "dependency at " + mount, Err: err,
					}
				}
				return
			}
			depDirs[mount] = filepath.Dir(entryPath)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return depDirs, nil
}

// cleanScratch applies the scratch cleanup policy after a failed build.
func (e *Engine) cleanScratch(scratch string) {
	if e.keepScratch {
		e.log.Debug("keeping scratch directory", "scratch", scratch)
		return
	}
	if err := os.RemoveAll(scratch); err != nil {
		e.log.Warn("scratch cleanup failed", "scratch", scratch, "error", err)
	}
}
