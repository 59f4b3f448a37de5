package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/casket/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id, kind string, outcome engine.Outcome, at time.Time) engine.Run {
	return engine.Run{
		ID:          id,
		Kind:        kind,
		Fingerprint: "0123456789abcdef0123456789abcdef",
		Outcome:     outcome,
		StartedAt:   at,
		Duration:    125 * time.Millisecond,
	}
}

func TestRecordAndRuns_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(context.Background(), testRun("r1", "echo", engine.OutcomeBuild, at)))

	runs, err := s.Runs(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "echo", got.Kind)
	assert.Equal(t, engine.OutcomeBuild, got.Outcome)
	assert.True(t, at.Equal(got.StartedAt))
	assert.Equal(t, 125*time.Millisecond, got.Duration)
}

func TestRecord_DuplicateIDIgnored(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	run := testRun("r1", "echo", engine.OutcomeBuild, at)

	require.NoError(t, s.Record(context.Background(), run))
	require.NoError(t, s.Record(context.Background(), run))

	runs, err := s.Runs(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRuns_FilterAndLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(context.Background(), testRun("r1", "echo", engine.OutcomeBuild, base)))
	require.NoError(t, s.Record(context.Background(), testRun("r2", "echo", engine.OutcomeHit, base.Add(time.Second))))
	require.NoError(t, s.Record(context.Background(), testRun("r3", "fetch", engine.OutcomeFailed, base.Add(2*time.Second))))

	echoRuns, err := s.Runs(context.Background(), "echo", 0)
	require.NoError(t, err)
	require.Len(t, echoRuns, 2)
	// Newest first.
	assert.Equal(t, "r2", echoRuns[0].ID)

	limited, err := s.Runs(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "r3", limited[0].ID)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.Runs(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestJournal_AsEngineRecorder(t *testing.T) {
	s := openTestStore(t)
	var rec engine.Recorder = s

	require.NoError(t, rec.Record(context.Background(), testRun("r1", "echo", engine.OutcomeBuild, time.Now().UTC())))
	runs, err := s.Runs(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
