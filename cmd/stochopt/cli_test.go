package main

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    [][2]float64
		wantErr bool
	}{
		{"empty", nil, nil, false},
		{"pairs", []string{"-5:5", "0: 2.5"}, [][2]float64{{-5, 5}, {0, 2.5}}, false},
		{"missing colon", []string{"-5"}, nil, true},
		{"bad lower", []string{"a:1"}, nil, true},
		{"bad upper", []string{"1:b"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBounds(tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRequestOnlyUsesChangedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int64("seed", 0, "")
	fs.Float64("expansion", 0, "")
	fs.Int("max-failures", 0, "")
	require.NoError(t, fs.Parse([]string{"--seed=9", "--expansion=2"}))

	runFunction = "sphere"
	runSeed = 9
	runExpansion = 2
	runMaxFailures = 3
	runBounds = []string{"-1:1"}
	t.Cleanup(func() {
		runFunction, runSeed, runExpansion, runMaxFailures, runBounds = "", 0, 0, 0, nil
	})

	req, err := buildRequest(fs)
	require.NoError(t, err)

	assert.Equal(t, "sphere", req.Function)
	require.NotNil(t, req.Seed)
	assert.Equal(t, int64(9), *req.Seed)
	require.NotNil(t, req.Options.Expansion)
	assert.Equal(t, 2.0, *req.Options.Expansion)
	assert.Nil(t, req.Options.MaxFailures)
	assert.Nil(t, req.Options.Contraction)
	assert.Equal(t, [][2]float64{{-1, 1}}, req.Bounds)
}

func TestBenchmarksCommand(t *testing.T) {
	out, err := execute(t, "benchmarks")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "rosenbrock")
	assert.Contains(t, out, "helical-valley")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stochopt version "+version)
}

func TestRunAndManageStoredRuns(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "run", "--function", "sphere", "--seed", "1", "--save", "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "N = ")
	assert.Contains(t, out, "state:")
	assert.Contains(t, out, "completed")

	m := regexp.MustCompile(`Saved run (\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = execute(t, "runs", "list", "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Total runs: 1")

	out, err = execute(t, "runs", "show", id, "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ITERATION")

	out, err = execute(t, "runs", "delete", id, "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run "+id)

	_, err = execute(t, "runs", "show", id, "--store-dir", dir)
	assert.Error(t, err)

	out, err = execute(t, "runs", "list", "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestRunRejectsUnknownFunction(t *testing.T) {
	_, err := execute(t, "run", "--function", "nope")
	assert.Error(t, err)
}
