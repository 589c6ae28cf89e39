package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/monitortrace/agent"
	"github.com/kolkov/monitortrace/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "monitortrace "+agent.Version)

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var payload versionPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, agent.Version, payload.Version)
	assert.Equal(t, "v0", payload.Major)

	_, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mt.toml")
	require.NoError(t, os.WriteFile(path, []byte("[stack]\ndepth = 3\n"), 0o644))

	out, err := execute(t, "config", "--config", path, "--log-format", "json")
	require.NoError(t, err)

	cfg, err := config.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Stack.Depth)
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = execute(t, "config", "--log-level", "loud")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunCmd_Validation(t *testing.T) {
	tests := [][]string{
		{"run", "--workers", "0"},
		{"run", "--monitors", "0"},
		{"run", "--duration", "0s"},
		{"run", "--hold", "-1ms"},
	}
	for _, args := range tests {
		_, err := execute(t, args...)
		assert.Error(t, err, "args %v", args)
	}
}

func TestRunCmd_WritesRecords(t *testing.T) {
	out := filepath.Join(t.TempDir(), "trace.log")

	summary, err := execute(t, "--log-level", "error",
		"run", "--workers", "4", "--monitors", "2", "--duration", "300ms", "--hold", "2ms", "--out", out)
	require.NoError(t, err)

	assert.Contains(t, summary, "workload:")
	assert.Contains(t, summary, "output: "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.NotEmpty(t, lines[0], "a contended workload must produce records")

	s, err := summarize(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Zero(t, s.Malformed)
	assert.Positive(t, s.Enters)
	assert.Equal(t, s.Enters, s.Entereds, "every contended enter completes")
}
