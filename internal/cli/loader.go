package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/serverdb/internal/harness"
	"github.com/roach88/serverdb/internal/query"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/store"
)

// loadDirectory loads the configured attribute directory.
func loadDirectory(cfg *Config) (*schema.Directory, error) {
	if cfg.Schema == "" {
		return nil, fmt.Errorf("no schema configured (set schema in serverdb.yaml, SERVERDB_SCHEMA or --schema)")
	}
	if _, err := os.Stat(cfg.Schema); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found: %s", cfg.Schema)
	}
	return schema.LoadFile(cfg.Schema)
}

// openStore opens the configured database.
func openStore(cfg *Config) (*store.Store, error) {
	return store.OpenDSN(cfg.Database.Driver, cfg.Database.DSN)
}

// readInput returns the document named by arg: "-" reads stdin, text
// starting with "{" is taken literally, anything else is a file path.
func readInput(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(strings.TrimSpace(arg), "{"):
		return []byte(arg), nil
	default:
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		return data, nil
	}
}

// loadRequest reads and decodes a JSON request.
func loadRequest(arg string, stdin io.Reader) (*query.Request, error) {
	data, err := readInput(arg, stdin)
	if err != nil {
		return nil, err
	}
	return query.DecodeRequest(data)
}

// ServerFile is the document accepted by seed:
//
//	servers:
//	  - id: 1
//	    attributes: {hostname: web01, tags: [prod]}
type ServerFile struct {
	Servers []harness.Server `yaml:"servers"`
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// loadServers reads a server file.
func loadServers(path string) ([]harness.Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var f ServerFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(f.Servers) == 0 {
		return nil, fmt.Errorf("%s: servers list is required and must be non-empty", path)
	}
	return f.Servers, nil
}

// loadServer reads a single server document ({id, attributes}); JSON is
// accepted as well.
func loadServer(arg string, stdin io.Reader) (harness.Server, error) {
	data, err := readInput(arg, stdin)
	if err != nil {
		return harness.Server{}, err
	}
	var srv harness.Server
	if err := decodeStrict(data, &srv); err != nil {
		return harness.Server{}, fmt.Errorf("failed to parse server: %w", err)
	}
	return srv, nil
}

// newLogger writes engine logs to the diagnostic writer: debug and up
// when verbose, warnings otherwise.
func newLogger(f *OutputFormatter) *slog.Logger {
	level := slog.LevelWarn
	if f.Verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(f.GetErrWriter(), &slog.HandlerOptions{Level: level})
	return slog.New(h).With("trace_id", f.TraceID)
}
