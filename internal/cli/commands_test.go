package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seeded creates a SQLite inventory from testdata/servers.yaml and returns
// the flags that select it.
func seeded(t *testing.T) []string {
	t.Helper()
	schemaPath := testdataPath(t, "schema.yaml")
	servers := testdataPath(t, "servers.yaml")
	isolate(t)

	flags := []string{"--schema", schemaPath, "--dsn", filepath.Join(t.TempDir(), "inventory.db")}
	out, err := execute(t, append([]string{"seed", servers}, flags...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "seeded 3 server(s)")
	return flags
}

func decodeResponse(t *testing.T, out string) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestQueryCommand_Text(t *testing.T) {
	flags := seeded(t)

	out, err := execute(t, append([]string{"query", `{"filters": {"servertype": "web"}}`}, flags...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "web01")
	assert.Contains(t, out, "web02")
	assert.NotContains(t, out, "db01")
	assert.Contains(t, out, "frontend,prod")
	assert.Contains(t, out, "2 server(s)")
}

func TestQueryCommand_JSONRestricted(t *testing.T) {
	flags := seeded(t)

	req := `{"filters": {"hostname": {"name": "startswith", "value": "web"}}, "restrict": ["hostname"]}`
	out, err := execute(t, append([]string{"query", req, "--format", "json"}, flags...)...)
	require.NoError(t, err, out)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["trace_id"])

	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(2), data["count"])
	assert.Equal(t, `hostname=Startswith("web")`, data["understood"])
	assert.Equal(t, []any{
		map[string]any{"object_id": float64(1), "hostname": "web01"},
		map[string]any{"object_id": float64(3), "hostname": "web02"},
	}, data["servers"])
}

func TestQueryCommand_FromFileAndNoMatch(t *testing.T) {
	flags := seeded(t)

	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"filters": {"cores": {"name": "between", "a": 100, "b": 200}}}`), 0o644))

	out, err := execute(t, append([]string{"query", path, "--format", "json"}, flags...)...)
	require.NoError(t, err, out)

	data := decodeResponse(t, out)["data"].(map[string]any)
	assert.Equal(t, float64(0), data["count"])
	assert.Equal(t, []any{}, data["servers"])
}

func TestQueryCommand_Errors(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	isolate(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"no schema", []string{"query", `{"filters": {}}`}, ErrCodeSchema},
		{"missing schema file", []string{"query", `{"filters": {}}`, "--schema", "nope.yaml"}, ErrCodeSchema},
		{"bad request", []string{"query", `{"filter": {}}`, "--schema", schemaPath}, ErrCodeRequest},
		{"unknown attribute", []string{"query", `{"filters": {"color": "red"}}`, "--schema", schemaPath, "--dsn", filepath.Join(t.TempDir(), "x.db")}, ErrCodeRequest},
		{"bad driver", []string{"query", `{"filters": {}}`, "--schema", schemaPath, "--driver", "postgres"}, ErrCodeDatabase},
		{"missing config", []string{"query", `{"filters": {}}`, "--config", "nope.yaml"}, ErrCodeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestExplainCommand_JSON(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	isolate(t)

	req := `{"filters": {"os": {"name": "empty"}, "tags": "prod"}, "restrict": ["hostname", "tags"]}`
	out, err := execute(t, "explain", req, "--schema", schemaPath, "--driver", "mysql", "--format", "json")
	require.NoError(t, err, out)

	data := decodeResponse(t, out)["data"].(map[string]any)
	assert.Equal(t, "mysql", data["dialect"])
	assert.Equal(t, `os=Empty() tags=ExactMatch("prod")`, data["understood"])
	assert.Equal(t, []any{"hostname"}, data["columns"])
	assert.Equal(t, true, data["fetch"])
	assert.Equal(t, []any{float64(6)}, data["fetch_keys"])

	joins := data["joins"].([]any)
	require.Len(t, joins, 2)
	osJoin := joins[0].(map[string]any)
	assert.Equal(t, "os", osJoin["attribute"])
	assert.Equal(t, "LEFT", osJoin["kind"])
	assert.Equal(t, "av0", osJoin["alias"])
	assert.Equal(t, "av0.value IS NULL", osJoin["where"])

	tagsJoin := joins[1].(map[string]any)
	assert.Equal(t, "INNER", tagsJoin["kind"])
	assert.Equal(t, "av1", tagsJoin["alias"])

	assert.Contains(t, data["sql"], "LEFT JOIN")
}

func TestExplainCommand_Text(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	isolate(t)

	out, err := execute(t, "explain", `{"filters": {"hostname": "web01"}, "restrict": ["hostname"]}`, "--schema", schemaPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, `Understood: hostname=ExactMatch("web01")`)
	assert.Contains(t, out, "Dialect: sqlite3")
	assert.Contains(t, out, "hostname: NONE WHERE")
	assert.Contains(t, out, "Fetch: none")
}

func TestCheckCommand(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	isolate(t)

	server := `{"id": 7, "attributes": {"hostname": "web07", "tags": ["prod"]}}`

	out, err := execute(t, "check", server, `{"filters": {"tags": "prod"}}`, "--schema", schemaPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ server 7 satisfies 1 filter(s)")

	out, err = execute(t, "check", server,
		`{"filters": {"tags": "staging", "hostname": {"name": "startswith", "value": "db"}}}`,
		"--schema", schemaPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ server 7")
	assert.Contains(t, out, `hostname: Startswith("db") does not hold for [web07]`)
	assert.Contains(t, out, `tags: ExactMatch("staging") does not hold for [prod]`)
}

func TestCheckCommand_JSON(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	isolate(t)

	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: 9\nattributes:\n  cores: 2\n"), 0o644))

	out, err := execute(t, "check", path, `{"filters": {"cores": {"name": "comparison", "comparator": ">=", "value": 4}}}`,
		"--schema", schemaPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, ErrCodeViolation, resp["error"].(map[string]any)["code"])

	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(9), data["server_id"])
	assert.Equal(t, false, data["pass"])
	assert.Equal(t, []any{
		map[string]any{"attribute": "cores", "filter": `Comparison(">=", 4)`, "values": []any{"2"}},
	}, data["violations"])
}

func TestCheckCommand_BadServer(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	isolate(t)

	out, err := execute(t, "check", `{"id": 1, "attributes": {"cores": "many"}}`, `{"filters": {}}`, "--schema", schemaPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeInvalidInput+"]")
}

func TestSeedCommand_Errors(t *testing.T) {
	schemaPath := testdataPath(t, "schema.yaml")
	dir := isolate(t)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("servers: []\n"), 0o644))
	out, err := execute(t, "seed", empty, "--schema", schemaPath)
	require.Error(t, err)
	assert.Contains(t, out, "servers list is required")

	typo := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(typo, []byte("server:\n  - id: 1\n"), 0o644))
	out, err = execute(t, "seed", typo, "--schema", schemaPath)
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeInvalidInput+"]")

	out, err = execute(t, "seed", testdataPath(t, "servers.yaml"), "--schema", schemaPath, "--driver", "mysql", "--dsn", "not a dsn")
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeDatabase+"]")
}
