package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	isolate(t)
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = execute(t, "test", dir, "--format", "json")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandPasses(t *testing.T) {
	scenarios := testdataPath(t, "scenarios")
	isolate(t)

	out, err := execute(t, "test", scenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ web (2 queries)")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFilter(t *testing.T) {
	scenarios := testdataPath(t, "scenarios")
	isolate(t)

	out, err := execute(t, "test", scenarios, "--filter", "db*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

// writeScenario copies testdata/scenarios/web.yaml into dir with an
// absolute schema path and the given expectation for the "web" query.
func writeScenario(t *testing.T, dir, expect string) string {
	t.Helper()
	data, err := os.ReadFile(testdataPath(t, "scenarios", "web.yaml"))
	require.NoError(t, err)

	doc := strings.Replace(string(data), "schema: ../schema.yaml", "schema: "+testdataPath(t, "schema.yaml"), 1)
	doc = strings.Replace(doc, "expect: [1, 3]", "expect: "+expect, 1)

	path := filepath.Join(dir, "web.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := isolate(t)
	writeScenario(t, dir, "[1, 3]")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err, out)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "web.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"queries":[{"ids":[1,3],"name":"web","understood":"servertype=ExactMatch(\"web\")"},`+
			`{"ids":[1],"name":"tagged_web","understood":"servertype=ExactMatch(\"web\") tags=Not(Empty())"}],"scenario":"web"}`,
		string(golden))

	out, err = execute(t, "test", dir)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "web.golden"), []byte("{}"), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := isolate(t)
	writeScenario(t, dir, "[2]")

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	require.Len(t, resp.Data.Scenarios[0].Errors, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "expected_ids")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "golden", "b.golden"), goldenFilePath(filepath.Join("a", "b.yaml")))
}
