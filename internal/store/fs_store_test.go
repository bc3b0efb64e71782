package store

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFSStore(dir, nil)
	require.NoError(t, err)
	return s, dir
}

func testRecord(id string, created time.Time) *RunRecord {
	r := NewRunRecord(id, RunSpec{
		Algorithm: "pattern",
		Function:  "sphere",
		Initial:   []float64{3, -2},
		Seed:      42,
	}, created)
	r.Complete(&optimization.OptimizationResult{
		Algorithm:       "pattern",
		BestSolution:    &optimization.Solution{Parameters: []float64{0.01, -0.02}, Value: 0.0005},
		Evaluations:     120,
		SuccessfulSteps: 2,
		Success:         true,
		Status:          optimization.MinimumStepReached,
		Message:         "done",
		History: []optimization.Evaluation{
			{Iteration: 1, Solution: &optimization.Solution{Parameters: []float64{3, -2}, Value: 13}},
			{Iteration: 40, Solution: &optimization.Solution{Parameters: []float64{0.01, -0.02}, Value: 0.0005}},
		},
	}, created.Add(time.Second))
	return r
}

func TestSaveAndLoad(t *testing.T) {
	s, dir := setupTestStore(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	record := testRecord("run-1", created)

	require.NoError(t, s.Save(record))

	_, err := os.Stat(filepath.Join(dir, "runs", "run-1.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "runs", "run-1.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := s.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, record.Spec, loaded.Spec)
	assert.Equal(t, StateCompleted, loaded.State)
	assert.Equal(t, "MinimumStepReached", loaded.Status)
	assert.Equal(t, Float(0.0005), loaded.Value)
	assert.Len(t, loaded.History, 2)
	assert.True(t, loaded.CreatedAt.Equal(created))
	require.NotNil(t, loaded.FinishedAt)
}

func TestSaveOverwrites(t *testing.T) {
	s, _ := setupTestStore(t)
	record := testRecord("run-1", time.Now())
	require.NoError(t, s.Save(record))

	record.Message = "updated"
	require.NoError(t, s.Save(record))

	loaded, err := s.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", loaded.Message)
}

func TestLoadNotFound(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing")

	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
}

func TestInvalidIDs(t *testing.T) {
	s, _ := setupTestStore(t)

	for _, id := range []string{"", "..", "a/b", "../escape"} {
		_, err := s.Load(id)
		assert.Error(t, err, "id %q", id)
		assert.NotErrorIs(t, err, ErrNotFound)
	}
	assert.Error(t, s.Save(nil))
}

func TestListNewestFirst(t *testing.T) {
	s, dir := setupTestStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(testRecord("old", base)))
	require.NoError(t, s.Save(testRecord("new", base.Add(time.Hour))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs", "corrupt.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs", "notes.txt"), []byte("x"), 0644))

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "new", infos[0].ID)
	assert.Equal(t, "old", infos[1].ID)
	assert.Equal(t, "sphere", infos[0].Function)
}

func TestListEmpty(t *testing.T) {
	s, _ := setupTestStore(t)
	infos, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestDelete(t *testing.T) {
	s, _ := setupTestStore(t)
	require.NoError(t, s.Save(testRecord("run-1", time.Now())))

	require.NoError(t, s.Delete("run-1"))
	_, err := s.Load("run-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNonFiniteValuesRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	record := NewRunRecord("inf", RunSpec{Algorithm: "walk"}, time.Now())
	record.Fail(assert.AnError, false, time.Now())
	require.NoError(t, s.Save(record))

	loaded, err := s.Load("inf")
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(loaded.Value), 1))
	assert.Equal(t, StateFailed, loaded.State)
	assert.Equal(t, assert.AnError.Error(), loaded.Error)
}

func TestFloatJSON(t *testing.T) {
	tests := []struct {
		value Float
		json  string
	}{
		{Float(1.5), `1.5`},
		{Float(math.Inf(1)), `"+Inf"`},
		{Float(math.Inf(-1)), `"-Inf"`},
		{Float(math.NaN()), `"NaN"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.json, string(data))

		var back Float
		require.NoError(t, json.Unmarshal(data, &back))
		if math.IsNaN(float64(tt.value)) {
			assert.True(t, math.IsNaN(float64(back)))
		} else {
			assert.Equal(t, tt.value, back)
		}
	}

	var f Float
	assert.Error(t, json.Unmarshal([]byte(`"big"`), &f))
}

func TestRecordDone(t *testing.T) {
	r := NewRunRecord("x", RunSpec{}, time.Now())
	assert.False(t, r.Done())
	r.State = StateRunning
	assert.False(t, r.Done())
	r.Fail(assert.AnError, true, time.Now())
	assert.True(t, r.Done())
	assert.Equal(t, StateCanceled, r.State)
}
