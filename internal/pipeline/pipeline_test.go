package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casket/internal/engine"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(t.TempDir(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestLoad_Basic(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "basic.cue"))
	require.NoError(t, err)
	require.Len(t, p.Tasks, 2)

	assert.Equal(t, "hello", p.Tasks[0].Name)
	assert.Equal(t, []string{"sh", "-c", "printf hello"}, p.Tasks[0].Run)
	assert.Equal(t, map[string]string{"in/src": "hello"}, p.Tasks[1].Deps)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	require.Error(t, err)
}

func TestLoad_NoTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cue")
	require.NoError(t, os.WriteFile(path, []byte(`other: 1`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tasks")
}

func TestLoad_CycleRejected(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "cycle.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Pipeline
		wantErr string
	}{
		{
			name: "ok",
			p: Pipeline{Tasks: []Task{
				{Name: "a", Run: []string{"true"}},
				{Name: "b", Run: []string{"true"}, Deps: map[string]string{"in": "a"}},
			}},
		},
		{
			name:    "unnamed task",
			p:       Pipeline{Tasks: []Task{{Run: []string{"true"}}}},
			wantErr: "no name",
		},
		{
			name: "duplicate name",
			p: Pipeline{Tasks: []Task{
				{Name: "a", Run: []string{"true"}},
				{Name: "a", Run: []string{"true"}},
			}},
			wantErr: "duplicate",
		},
		{
			name:    "empty run",
			p:       Pipeline{Tasks: []Task{{Name: "a"}}},
			wantErr: "empty run",
		},
		{
			name: "unknown dep",
			p: Pipeline{Tasks: []Task{
				{Name: "a", Run: []string{"true"}, Deps: map[string]string{"in": "ghost"}},
			}},
			wantErr: "unknown task",
		},
		{
			name: "bad mount path",
			p: Pipeline{Tasks: []Task{
				{Name: "a", Run: []string{"true"}},
				{Name: "b", Run: []string{"true"}, Deps: map[string]string{"../in": "a"}},
			}},
			wantErr: "escapes",
		},
		{
			name: "self cycle",
			p: Pipeline{Tasks: []Task{
				{Name: "a", Run: []string{"true"}, Deps: map[string]string{"in": "a"}},
			}},
			wantErr: "cycle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestInputFor_EmbedsDependencyInputs(t *testing.T) {
	p := &Pipeline{Tasks: []Task{
		{Name: "a", Run: []string{"true"}},
		{Name: "b", Run: []string{"false"}, Deps: map[string]string{"in": "a"}},
	}}
	require.NoError(t, p.Validate())

	input := p.inputFor("b")
	assert.Equal(t, []string{"false"}, input["argv"])
	deps := input["deps"].(map[string]any)
	inner := deps["in"].(map[string]any)
	assert.Equal(t, []string{"true"}, inner["argv"])
}

func TestRun_ExecutesTasksWithMounts(t *testing.T) {
	eng := newTestEngine(t)
	p, err := Load(filepath.Join("testdata", "basic.cue"))
	require.NoError(t, err)

	results, err := Run(context.Background(), eng, p)
	require.NoError(t, err)
	require.Len(t, results, 2)

	hello, err := os.ReadFile(results["hello"])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(hello))

	shout, err := os.ReadFile(results["shout"])
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(shout))
}

func TestRun_SecondRunIsCached(t *testing.T) {
	eng := newTestEngine(t)
	p, err := Load(filepath.Join("testdata", "basic.cue"))
	require.NoError(t, err)

	first, err := Run(context.Background(), eng, p)
	require.NoError(t, err)
	second, err := Run(context.Background(), eng, p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
