package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casket/internal/engine"
)

func TestCommandDeps(t *testing.T) {
	deps, err := commandDeps(map[string]any{
		"argv": []string{"true"},
		"deps": map[string]any{
			"in/a": map[string]any{"argv": []string{"false"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, KindCommand, deps["in/a"].Kind)

	deps, err = commandDeps(map[string]any{"argv": []string{"true"}})
	require.NoError(t, err)
	assert.Empty(t, deps)

	_, err = commandDeps("not an object")
	require.Error(t, err)

	_, err = commandDeps(map[string]any{"deps": "not an object"})
	require.Error(t, err)
}

func TestStringSlice(t *testing.T) {
	got, err := stringSlice([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = stringSlice([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = stringSlice([]any{"a", 1})
	require.Error(t, err)

	_, err = stringSlice("a")
	require.Error(t, err)
}

func TestCommandFn_CapturesStdout(t *testing.T) {
	ws := t.TempDir()
	res, err := commandFn(context.Background(), map[string]any{
		"argv": []string{"sh", "-c", "printf output"},
	}, ws)
	require.NoError(t, err)
	assert.Equal(t, EntryName, res.Entry)

	data, err := os.ReadFile(filepath.Join(ws, EntryName))
	require.NoError(t, err)
	assert.Equal(t, "output", string(data))
	assert.Equal(t, []string{"sh", "-c", "printf output"}, res.Metadata["argv"])
}

func TestCommandFn_FailureIncludesStderr(t *testing.T) {
	_, err := commandFn(context.Background(), map[string]any{
		"argv": []string{"sh", "-c", "echo bad >&2; exit 3"},
	}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestCommandFn_EmptyArgv(t *testing.T) {
	_, err := commandFn(context.Background(), map[string]any{"argv": []string{}}, t.TempDir())
	require.Error(t, err)
}

func TestRegisterCommand(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, RegisterCommand(eng))

	path, err := eng.Execute(context.Background(), engine.Config{
		Kind:  KindCommand,
		Input: map[string]any{"argv": []string{"sh", "-c", "printf hi"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}
