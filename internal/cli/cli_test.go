package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	root := NewRootCmd(clock.NewFakeClock(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigValidateDefaults(t *testing.T) {
	out, err := runCLI(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "VALID (built-in defaults)")
	assert.Contains(t, out, "first_reminder")
	assert.Contains(t, out, "50000.00")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := writeFile(t, `
collections:
  stages:
    - id: s1
      offsetDays: 1
      actionType: fax
      priority: low
`)
	out, err := runCLI(t, "config", "validate", "--file", path)
	require.Error(t, err)
	assert.Contains(t, out, "INVALID")
}

func TestConfigValidateWarnsOnEmptyCatalog(t *testing.T) {
	path := writeFile(t, `
collections:
  stages: []
`)
	out, err := runCLI(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "WARN")
}

func TestResolveEscalatedInvoice(t *testing.T) {
	out, err := runCLI(t, "resolve", "--days", "40", "--amount", "1200")
	require.NoError(t, err)
	assert.Contains(t, out, "Days overdue:  40")
	assert.Contains(t, out, "Current stage: Escalation")
	assert.Contains(t, out, "Next action:   legal on 2024-04-04")
	assert.Contains(t, out, "Priority:      high")
}

func TestResolveGracePeriodAndThreshold(t *testing.T) {
	out, err := runCLI(t, "resolve", "--days", "2", "--amount", "80000")
	require.NoError(t, err)
	assert.Contains(t, out, "Current stage: Due date notice")
	assert.Contains(t, out, "grace period")
	assert.Contains(t, out, "Priority:      critical")
}

func TestResolveNotYetDue(t *testing.T) {
	out, err := runCLI(t, "resolve", "--days=-5", "--amount", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Current stage: Pre-due")
	assert.Contains(t, out, "Next action:   reminder on 2024-03-17")
	assert.Contains(t, out, "Priority:      low")
}

func TestResolveRejectsBadAmount(t *testing.T) {
	_, err := runCLI(t, "resolve", "--amount", "lots")
	assert.Error(t, err)
}

func TestResolveNextStageLabels(t *testing.T) {
	out, err := runCLI(t, "resolve", "--days", "75", "--amount", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Current stage: Legal notice")
	assert.Contains(t, out, "Next stage:    (final stage reached)")

	path := writeFile(t, `
collections:
  stages: []
`)
	out, err = runCLI(t, "resolve", "--days", "75", "--amount", "10", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Current stage: Pre-due")
	assert.Contains(t, out, "Next stage:    (no stages configured)")
	assert.NotContains(t, out, "final stage reached")
}
