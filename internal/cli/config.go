package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/serverdb/internal/querysql"
	"github.com/roach88/serverdb/internal/store"
)

const (
	maxWalkDepth = 25
)

// Config represents the serverdb configuration from serverdb.yaml.
type Config struct {
	// Schema is the attribute directory file (.yaml, .yml or .cue).
	Schema string `mapstructure:"schema"`

	// Dialect overrides the SQL dialect derived from the driver.
	Dialect string `mapstructure:"dialect"`

	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// env > config file > defaults. Flags are applied on top by the caller.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SERVERDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	// A schema named in the config file is relative to that file.
	if configPath != "" && cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) && v.InConfig("schema") {
		cfg.Schema = filepath.Join(filepath.Dir(configPath), cfg.Schema)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "")
	v.SetDefault("dialect", "")

	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "serverdb.db")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for serverdb.yaml or serverdb.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"serverdb.yaml", "serverdb.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repository root.
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// applyFlags overrides config values with non-empty global flags.
func (c *Config) applyFlags(opts *RootOptions) {
	if opts.Schema != "" {
		c.Schema = opts.Schema
	}
	if opts.Driver != "" {
		c.Database.Driver = opts.Driver
	}
	if opts.DSN != "" {
		c.Database.DSN = opts.DSN
	}
}

// ResolvedDialect returns the configured dialect, or the one matching the
// database driver.
func (c *Config) ResolvedDialect() (querysql.Dialect, error) {
	name := c.Dialect
	if name == "" {
		name = c.Database.Driver
	}
	return querysql.DialectByName(name)
}

// resolveConfig loads the config and applies the command line overrides.
func resolveConfig(opts *RootOptions) (*Config, error) {
	cfg, _, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	cfg.applyFlags(opts)
	return cfg, nil
}
