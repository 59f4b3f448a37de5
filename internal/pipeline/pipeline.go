// Package pipeline loads CUE pipeline manifests and executes them against
// an engine.
//
// A manifest declares named tasks. Each task runs a command inside its own
// workspace and may mount the artifacts of sibling tasks under declared
// paths:
//
//	tasks: [
//		{name: "fetch", run: ["curl", "-sL", "https://example.com"]},
//		{name: "count", run: ["wc", "-l", "in/page"], deps: {"in/page": "fetch"}},
//	]
//
// Task identity is content-addressed: a task's input embeds the inputs of
// every task it mounts, so editing any upstream task re-executes exactly
// the affected subgraph on the next run.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/casket/internal/engine"
	"github.com/roach88/casket/internal/linker"
)

// Task is one named step of a pipeline.
type Task struct {
	// Name identifies the task within the manifest.
	Name string `json:"name"`

	// Run is the argv executed in the task's workspace.
	Run []string `json:"run"`

	// Deps maps workspace mount paths to the names of tasks whose
	// artifacts are mounted there.
	Deps map[string]string `json:"deps,omitempty"`

	// Force discards any cached artifact for this task before running.
	Force bool `json:"force,omitempty"`
}

// Pipeline is a validated set of tasks in declaration order.
type Pipeline struct {
	Tasks []Task
}

// Load reads and validates a CUE pipeline manifest.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	cctx := cuecontext.New()
	v := cctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile manifest: %w", err)
	}

	tasksVal := v.LookupPath(cue.ParsePath("tasks"))
	if !tasksVal.Exists() {
		return nil, fmt.Errorf("manifest %s has no tasks field", path)
	}
	var tasks []Task
	if err := tasksVal.Decode(&tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	p := &Pipeline{Tasks: tasks}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks task names, argvs, mount paths, dependency references,
// and the absence of dependency cycles between tasks.
func (p *Pipeline) Validate() error {
	byName := make(map[string]*Task, len(p.Tasks))
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.Name == "" {
			return fmt.Errorf("task %d has no name", i)
		}
		if _, dup := byName[t.Name]; dup {
			return fmt.Errorf("duplicate task name %q", t.Name)
		}
		if len(t.Run) == 0 {
			return fmt.Errorf("task %q has an empty run", t.Name)
		}
		byName[t.Name] = t
	}

	for _, t := range p.Tasks {
		for mount, dep := range t.Deps {
			if err := linker.ValidateMountPath(mount); err != nil {
				return fmt.Errorf("task %q: %w", t.Name, err)
			}
			if _, ok := byName[dep]; !ok {
				return fmt.Errorf("task %q depends on unknown task %q", t.Name, dep)
			}
		}
	}

	// Depth-first cycle check over the task reference graph.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(p.Tasks))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("task %q is part of a dependency cycle", name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range byName[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, t := range p.Tasks {
		if err := visit(t.Name); err != nil {
			return err
		}
	}
	return nil
}

// task returns the task with the given name; Validate must have passed.
func (p *Pipeline) task(name string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].Name == name {
			return &p.Tasks[i]
		}
	}
	return nil
}

// inputFor builds the executor input for a task: its argv plus, per mount,
// the full input of the mounted task. Embedding dependency inputs makes a
// task's fingerprint cover its entire upstream subgraph.
func (p *Pipeline) inputFor(name string) map[string]any {
	t := p.task(name)
	input := map[string]any{"argv": t.Run}
	if len(t.Deps) > 0 {
		deps := make(map[string]any, len(t.Deps))
		for mount, dep := range t.Deps {
			deps[mount] = p.inputFor(dep)
		}
		input["deps"] = deps
	}
	return input
}

// Run executes every task in declaration order and returns the entry link
// path per task name. Tasks shared as dependencies execute at most once;
// the cache carries results across pipeline runs.
func Run(ctx context.Context, eng *engine.Engine, p *Pipeline) (map[string]string, error) {
	if err := RegisterCommand(eng); err != nil {
		return nil, err
	}
	results := make(map[string]string, len(p.Tasks))
	for _, t := range p.Tasks {
		cfg := engine.Config{
			Kind:           KindCommand,
			Input:          p.inputFor(t.Name),
			ForceRecompute: t.Force,
		}
		path, err := eng.Execute(ctx, cfg)
		if err != nil {
			return results, fmt.Errorf("task %q: %w", t.Name, err)
		}
		results[t.Name] = path
	}
	return results, nil
}
