package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/casket/internal/layout"
	"github.com/roach88/casket/internal/linker"
)

// Result is what a user function returns: the relative path to the
// artifact's entry point within the workspace, and optional metadata
// recorded in the descriptor. Metadata never participates in the
// fingerprint; on a lost publish race it is discarded with the scratch dir.
type Result struct {
	Entry    string
	Metadata map[string]any
}

// Fn is a user executor function. It must write its outputs under
// workspace and return the relative entry path. The context is the one
// passed to Execute; long-running functions should honor cancellation.
type Fn func(ctx context.Context, input any, workspace string) (Result, error)

// Config is a request handle naming an artifact: the executor kind, the
// input to fingerprint, and whether a cached artifact must be discarded
// and rebuilt. Configs appear both as Execute arguments and as the values
// of dependency mappings.
type Config struct {
	Kind           string
	Input          any
	ForceRecompute bool
}

// DepsFunc derives a dependency mapping from an input. Evaluated inside
// Execute before fingerprinting, so dynamic dependencies are an executor
// variant, not a registry mutation.
type DepsFunc func(input any) (map[string]Config, error)

// executor is a registered capability: a dependency spec plus a function.
// Exactly one of deps and depsFn is set (both nil means no dependencies).
type executor struct {
	deps   map[string]Config
	depsFn DepsFunc
	fn     Fn
}

// Register adds an executor with a fixed dependency mapping from relative
// workspace mount path to dependency config. Re-registering a kind
// replaces the prior entry.
func (e *Engine) Register(kind string, deps map[string]Config, fn Fn) error {
	if err := validateDeps(deps); err != nil {
		return &Error{Code: CodeInvalidArgument, Kind: kind, Err: err}
	}
	return e.register(kind, &executor{deps: deps, fn: fn})
}

// RegisterDynamic adds an executor whose dependency mapping is a pure
// function of the input, evaluated inside Execute before fingerprinting.
func (e *Engine) RegisterDynamic(kind string, depsFn DepsFunc, fn Fn) error {
	return e.register(kind, &executor{depsFn: depsFn, fn: fn})
}

func (e *Engine) register(kind string, ex *executor) error {
	if err := layout.ValidateKind(kind); err != nil {
		return &Error{Code: CodeInvalidArgument, Kind: kind, Err: err}
	}
	if ex.fn == nil {
		return &Error{Code: CodeInvalidArgument, Kind: kind, Message: "executor fn must not be nil"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[kind] = ex
	return nil
}

// lookup resolves a registered executor by kind.
func (e *Engine) lookup(kind string) (*executor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ex, ok := e.executors[kind]
	return ex, ok
}

// resolveDeps evaluates the executor's dependency mapping for input and
// validates every entry. Returns an empty map for dependency-free
// executors.
func (ex *executor) resolveDeps(input any) (map[string]Config, error) {
	if ex.depsFn == nil {
		return ex.deps, nil
	}
	deps, err := ex.depsFn(input)
	if err != nil {
		return nil, fmt.Errorf("evaluate dynamic dependencies: %w", err)
	}
	if err := validateDeps(deps); err != nil {
		return nil, err
	}
	return deps, nil
}

func validateDeps(deps map[string]Config) error {
	for mount, dep := range deps {
		if err := linker.ValidateMountPath(mount); err != nil {
			return err
		}
		if err := layout.ValidateKind(dep.Kind); err != nil {
			return fmt.Errorf("dependency at %q: %w", mount, err)
		}
	}
	return nil
}

// sortedMounts returns the mount paths of deps in a fixed order so mount
// creation and recovery walk dependencies deterministically.
func sortedMounts(deps map[string]Config) []string {
	mounts := make([]string, 0, len(deps))
	for m := range deps {
		mounts = append(mounts, m)
	}
	sort.Strings(mounts)
	return mounts
}
