package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/serverdb/internal/filter"
	"github.com/roach88/serverdb/internal/query"
)

// Scenario is a fixture inventory plus the queries to run against it.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario covers.
	Description string `yaml:"description"`

	// Schema is the attribute directory file (.yaml or .cue). A relative
	// path is resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Servers are inserted before any query runs.
	Servers []Server `yaml:"servers"`

	// Queries run in order against the seeded inventory.
	Queries []Query `yaml:"queries"`
}

// Server is one fixture server. Multi-valued attributes take a list.
type Server struct {
	ID         int64          `yaml:"id"`
	Attributes map[string]any `yaml:"attributes"`
}

// Query is one request of a scenario.
type Query struct {
	Name string `yaml:"name"`

	// Filters maps attribute names to filters written as constructor
	// calls, e.g. Not(ExactMatch("web")).
	Filters map[string]string `yaml:"filters"`

	// Restrict limits the returned attributes. Absent means unrestricted.
	Restrict []string `yaml:"restrict,omitempty"`

	// Expect lists the server ids the query must return. When absent, the
	// query is only cross-checked against the in-memory matcher.
	Expect []int64 `yaml:"expect,omitempty"`
}

// Request builds the query request.
func (q Query) Request() (*query.Request, error) {
	req := query.NewRequest()
	for name, code := range q.Filters {
		f, err := filter.ParseCode(code)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
		if err := req.Set(name, f); err != nil {
			return nil, err
		}
	}
	if q.Restrict != nil {
		req.Restrict(q.Restrict...)
	}
	return req, nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the schema path before validation checks that it exists.
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every .yaml file of dir, ordered by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}

	if len(s.Servers) == 0 {
		return fmt.Errorf("servers list is required and must be non-empty")
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	seen := make(map[int64]bool, len(s.Servers))
	for i, srv := range s.Servers {
		if srv.ID <= 0 {
			return fmt.Errorf("servers[%d]: id must be positive", i)
		}
		if seen[srv.ID] {
			return fmt.Errorf("servers[%d]: duplicate id %d", i, srv.ID)
		}
		seen[srv.ID] = true
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true

		if _, err := q.Request(); err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
	}

	return nil
}
