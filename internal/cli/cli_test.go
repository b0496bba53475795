package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"jobsys/internal/app"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBenchJSON(t *testing.T) {
	out, err := execute(t, "bench", "--log-level", "error", "-w", "2", "--producers", "2", "-n", "20", "--frames", "3", "--items", "16", "--json")
	require.NoError(t, err)

	var res app.BenchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.EqualValues(t, 40, res.Submitted)
	require.Equal(t, 3, res.Frames)
	require.Equal(t, 2, res.Workers)
}

func TestBenchText(t *testing.T) {
	out, err := execute(t, "bench", "--log-level", "error", "-w", "1", "-n", "5", "--frames", "1")
	require.NoError(t, err)
	require.Contains(t, out, "submitted:    20")
	require.Contains(t, out, "frames:       1")
}

func TestRunRejectsMissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", "/nonexistent/jobsys.yaml")
	require.Error(t, err)
}

func TestUnknownArgs(t *testing.T) {
	_, err := execute(t, "bench", "extra")
	require.Error(t, err)
}
