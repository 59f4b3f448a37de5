package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := runCommand(t, "--format", "xml", "graph")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExec_CommandKind(t *testing.T) {
	root := t.TempDir()
	out, err := runCommand(t, "--root", root, "exec", "command", `{"argv": ["sh", "-c", "printf hi"]}`)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestExec_JSONOutput(t *testing.T) {
	root := t.TempDir()
	out, err := runCommand(t, "--root", root, "--format", "json", "exec", "command", `{"argv": ["true"]}`)
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result["path"])
}

func TestExec_UnknownKind(t *testing.T) {
	_, err := runCommand(t, "--root", t.TempDir(), "exec", "mystery")
	require.Error(t, err)
}

func TestPeekAndForget(t *testing.T) {
	root := t.TempDir()
	input := `{"argv": ["sh", "-c", "printf hi"]}`

	_, err := runCommand(t, "--root", root, "peek", "command", input)
	require.Error(t, err)

	execOut, err := runCommand(t, "--root", root, "exec", "command", input)
	require.NoError(t, err)

	peekOut, err := runCommand(t, "--root", root, "peek", "command", input)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(execOut), strings.TrimSpace(peekOut))

	_, err = runCommand(t, "--root", root, "forget", "command", input)
	require.NoError(t, err)
	_, err = runCommand(t, "--root", root, "peek", "command", input)
	require.Error(t, err)
}

func TestGraph_ListsArtifacts(t *testing.T) {
	root := t.TempDir()
	_, err := runCommand(t, "--root", root, "exec", "command", `{"argv": ["sh", "-c", "printf hi"]}`)
	require.NoError(t, err)

	out, err := runCommand(t, "--root", root, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "command")
}

func TestTrace_RequiresJournal(t *testing.T) {
	_, err := runCommand(t, "--root", t.TempDir(), "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal")
}

func TestTrace_ShowsRuns(t *testing.T) {
	root := t.TempDir()
	journalPath := filepath.Join(root, "journal.db")

	_, err := runCommand(t, "--root", root, "--journal", journalPath,
		"exec", "command", `{"argv": ["true"]}`)
	require.NoError(t, err)

	out, err := runCommand(t, "--root", root, "--journal", journalPath, "trace")
	require.NoError(t, err)
	assert.Contains(t, out, "command")
	assert.Contains(t, out, "build")
}

func TestRunAndValidate_Pipeline(t *testing.T) {
	root := t.TempDir()
	manifestPath := filepath.Join(root, "p.cue")
	require.NoError(t, os.WriteFile(manifestPath, []byte(
		`tasks: [{name: "hello", run: ["sh", "-c", "printf hello"]}]`,
	), 0o644))

	out, err := runCommand(t, "--root", root, "validate", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	out, err = runCommand(t, "--root", root, "run", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}
