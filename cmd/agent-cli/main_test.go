package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prompts := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(prompts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prompts, "payroll_system.txt"), []byte("You are a payroll assistant."), 0o600))

	path := filepath.Join(dir, "workspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_name: payroll-demo
observability:
  enabled: true
  tool: memory
prompts:
  source: local
  folder: `+prompts+`
llm:
  provider: mock
logging:
  level: error
`), 0o600))
	return path
}

func TestRunComputePay(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--config", writeWorkspace(t),
		"--input", `{"employee_id":"E123","action":"compute_pay"}`,
	}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "E123", resp["employee_id"])
	assert.InDelta(t, 2500.0, resp["net_pay"], 1e-9)
}

func TestRunAgentErrorExitsNonZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--config", writeWorkspace(t),
		"--input", "-",
	}, strings.NewReader(`{"employee_id":"E999"}`), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "employee not found")
	assert.Empty(t, stdout.String())
}

func TestRunProvision(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", writeWorkspace(t), "--provision"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &event))
	assert.Equal(t, "provision", event["agent"])
	assert.Equal(t, "payroll-demo", event["project"])
	assert.Equal(t, "success", event["outcome"])
	assert.NotEmpty(t, event["id"])
}

func TestRunBadConfigAndFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "workspace configuration not found")

	assert.Equal(t, 2, run([]string{"--bogus"}, strings.NewReader(""), &stdout, &stderr))
	assert.Equal(t, 0, run([]string{"--help"}, strings.NewReader(""), &stdout, &stderr))
}

func TestReadRequest(t *testing.T) {
	req, err := readRequest("", nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Request{}, req)

	req, err = readRequest(`{"a":"b"}`, nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Request{"a": "b"}, req)

	req, err = readRequest("null", nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Request{}, req)

	_, err = readRequest("[1]", nil)
	assert.ErrorContains(t, err, "invalid --input JSON")

	_, err = readRequest("@../../etc/passwd", nil)
	assert.Error(t, err)
}
