package engine

import (
	"context"
	"path/filepath"

	"github.com/roach88/casket/internal/canon"
	"github.com/roach88/casket/internal/layout"
	"github.com/roach88/casket/internal/linker"
)

// recoverDeps repairs the dependency mounts of a cached artifact without
// re-running its function. For each declared dependency the on-disk mount
// symlink is compared against the canonical target computed from the
// current declaration:
//
//   - a differing literal target means the declared config has drifted
//     since publish (the dependency now names a different artifact);
//   - a matching target that no longer resolves means the dependency was
//     removed out-of-band.
//
// Either way the dependency is re-executed (creating or refreshing its
// artifact) and the mount is relinked. Returns whether any mount was
// repaired.
func (e *Engine) recoverDeps(ctx context.Context, dir string, cfg Config, fp string, deps map[string]Config, ch chain) (bool, error) {
	if len(deps) == 0 {
		return false, nil
	}
	ws := filepath.Join(dir, layout.WorkspaceDirName)

	recovered := false
	for _, mount := range sortedMounts(deps) {
		if err := ctx.Err(); err != nil {
			return recovered, err
		}
		dep := deps[mount]

		depFP, err := canon.Fingerprint(dep.Kind, dep.Input)
		if err != nil {
			return recovered, &Error{Code: CodeUnserializable, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRecover, Err: err}
		}
		depDir := layout.ArtifactDir(e.root, dep.Kind, depFP)
		expected, err := linker.ExpectedTarget(ws, mount, depDir)
		if err != nil {
			return recovered, &Error{Code: CodeInvalidArgument, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRecover, Err: err}
		}

		state := linker.Check(ws, mount, expected)
		if state == linker.MountValid {
			continue
		}
		e.log.Info("recovering dependency mount",
			"kind", cfg.Kind, "fingerprint", fp, "mount", mount, "state", state.String())

		if _, err := e.execute(ctx, dep, ch); err != nil {
			return recovered, &Error{
				Code: CodeDependencyFailed, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRecover,
				Message: "dependency at " + mount, Err: err,
			}
		}
		if err := linker.Unmount(ws, mount); err != nil {
			return recovered, &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRecover, Err: err}
		}
		if err := linker.Mount(ws, mount, depDir); err != nil {
			return recovered, &Error{Code: CodeIO, Kind: cfg.Kind, Fingerprint: fp, Phase: phaseRecover, Err: err}
		}
		recovered = true
	}
	return recovered, nil
}
