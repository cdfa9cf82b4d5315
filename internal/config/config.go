// Package config loads the merger's operational configuration from a
// YAML file, with environment variables overriding individual fields
// for deployment-time tuning.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opencallgraph/merger/internal/model"
)

// Config is the top-level configuration for a cgmerge run: the
// operational knobs spec.md §6 enumerates plus connection settings for
// the three backends the merger is wired against.
type Config struct {
	DynamicSitePolicy string `yaml:"dynamic_site_policy"`
	MissingDepPolicy  string `yaml:"missing_dep_policy"`
	InternTypeURIs    bool   `yaml:"intern_type_uris"`

	Forge string `yaml:"forge"`

	Postgres PostgresConfig `yaml:"postgres"`
	Badger   BadgerConfig   `yaml:"badger"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`

	MergeTimeout time.Duration `yaml:"merge_timeout"`
}

// PostgresConfig configures the persistent metadata store connection.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// BadgerConfig configures the embedded graph blob store.
type BadgerConfig struct {
	Dir string `yaml:"dir"`
}

// Neo4jConfig configures the optional merged-graph export sink.
type Neo4jConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Clean    bool   `yaml:"clean"`
}

// Default returns the documented defaults, matching model.DefaultOptions.
func Default() Config {
	return Config{
		DynamicSitePolicy: string(model.DynamicWarn),
		MissingDepPolicy:  string(model.MissingDepSkip),
		InternTypeURIs:    true,
		Forge:             "mvn",
		Badger:            BadgerConfig{Dir: "./graphs.badger"},
		MergeTimeout:      10 * time.Minute,
	}
}

// Load reads a YAML config file at path, applying defaults for unset
// fields and then environment variable overrides. A missing path
// returns the bare defaults with environment overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CGMERGE_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("CGMERGE_BADGER_DIR"); v != "" {
		cfg.Badger.Dir = v
	}
	if v := os.Getenv("CGMERGE_NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
		cfg.Neo4j.Enabled = true
	}
	if v := os.Getenv("CGMERGE_NEO4J_USER"); v != "" {
		cfg.Neo4j.User = v
	}
	if v := os.Getenv("CGMERGE_NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("CGMERGE_DYNAMIC_SITE_POLICY"); v != "" {
		cfg.DynamicSitePolicy = v
	}
	if v := os.Getenv("CGMERGE_MISSING_DEP_POLICY"); v != "" {
		cfg.MissingDepPolicy = v
	}
}

// Validate checks the configuration for internally-consistent values
// and returns the first problem found, or nil. Options derives
// model.Options from a validated config.
func (c Config) Validate() error {
	switch model.DynamicSitePolicy(c.DynamicSitePolicy) {
	case model.DynamicWarn, model.DynamicDrop, model.DynamicFail:
	default:
		return fmt.Errorf("dynamic_site_policy: unknown value %q", c.DynamicSitePolicy)
	}
	switch model.MissingDepPolicy(c.MissingDepPolicy) {
	case model.MissingDepSkip, model.MissingDepFail:
	default:
		return fmt.Errorf("missing_dep_policy: unknown value %q", c.MissingDepPolicy)
	}
	if c.Forge == "" {
		return fmt.Errorf("forge must not be empty")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must not be empty")
	}
	if c.Badger.Dir == "" {
		return fmt.Errorf("badger.dir must not be empty")
	}
	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri must not be empty when neo4j.enabled is true")
	}
	if c.MergeTimeout <= 0 {
		return fmt.Errorf("merge_timeout must be positive")
	}
	return nil
}

// Options converts the validated config into model.Options.
func (c Config) Options() model.Options {
	return model.Options{
		DynamicSitePolicy: model.DynamicSitePolicy(c.DynamicSitePolicy),
		MissingDepPolicy:  model.MissingDepPolicy(c.MissingDepPolicy),
		InternTypeURIs:    c.InternTypeURIs,
	}
}
