package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/roach88/casket/internal/engine"
)

// KindCommand is the executor kind pipelines run under: an argv executed
// in the artifact workspace with stdout captured as the entry.
const KindCommand = "command"

// EntryName is the entry file a command artifact exposes.
const EntryName = "out.txt"

// RegisterCommand registers the command executor on eng. Dependencies are
// dynamic: they are read from the input's "deps" object, so one registered
// kind serves every pipeline task shape.
func RegisterCommand(eng *engine.Engine) error {
	return eng.RegisterDynamic(KindCommand, commandDeps, commandFn)
}

// commandDeps derives the dependency mapping from the input's "deps"
// object: mount path -> command config for the mounted task's input.
func commandDeps(input any) (map[string]engine.Config, error) {
	m, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("command input must be an object, got %T", input)
	}
	depsRaw, ok := m["deps"]
	if !ok {
		return nil, nil
	}
	depsMap, ok := depsRaw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("command deps must be an object, got %T", depsRaw)
	}
	deps := make(map[string]engine.Config, len(depsMap))
	for mount, depInput := range depsMap {
		deps[mount] = engine.Config{Kind: KindCommand, Input: depInput}
	}
	return deps, nil
}

// commandFn runs the input argv with the workspace as working directory
// and writes stdout to the entry file. Mounted dependencies are reachable
// through their declared relative paths.
func commandFn(ctx context.Context, input any, workspace string) (engine.Result, error) {
	m, ok := input.(map[string]any)
	if !ok {
		return engine.Result{}, fmt.Errorf("command input must be an object, got %T", input)
	}
	argv, err := stringSlice(m["argv"])
	if err != nil {
		return engine.Result{}, err
	}
	if len(argv) == 0 {
		return engine.Result{}, fmt.Errorf("command argv must not be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workspace
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return engine.Result{}, fmt.Errorf("command %q: %w: %s", argv[0], err, exitErr.Stderr)
		}
		return engine.Result{}, fmt.Errorf("command %q: %w", argv[0], err)
	}
	if err := os.WriteFile(filepath.Join(workspace, EntryName), out, 0o644); err != nil {
		return engine.Result{}, fmt.Errorf("write command output: %w", err)
	}

	return engine.Result{
		Entry: EntryName,
		Metadata: map[string]any{
			"argv":  argv,
			"bytes": len(out),
		},
	}, nil
}

// stringSlice accepts []string or []any of strings; pipeline tasks decoded
// from CUE produce the former, JSON-decoded inputs (the CLI's input
// argument) the latter.
func stringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		out := make([]string, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("argv[%d] must be a string, got %T", i, elem)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argv must be a list of strings, got %T", v)
	}
}
