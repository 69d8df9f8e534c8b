// Package config loads the voltpipe.yml configuration. Every connection
// setting is carried in an explicit Config passed into component
// constructors; nothing reads environment state at use time. Secrets may be
// supplied via environment overrides so they stay out of the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageConfig identifies the columnar store account and local gateway root.
type StorageConfig struct {
	Account   string `yaml:"account"`
	Key       string `yaml:"key,omitempty"` // env override: VOLTPIPE_STORAGE_KEY
	Container string `yaml:"container"`
	Root      string `yaml:"root"`
}

// MirrorConfig locates the relational mirror.
type MirrorConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"` // env override: VOLTPIPE_MIRROR_PASSWORD
	Database string `yaml:"database"`
}

// OracleConfig locates the reasoning oracle.
type OracleConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetastoreConfig locates the catalog service gateway.
type MetastoreConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MetaDBConfig locates the metastore's backing relational store, exposed
// to the query engine as a jdbc catalog.
type MetaDBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	JDBCURI  string `yaml:"jdbc_uri"`
}

// JournalConfig locates the optional Redis run journal. An empty address
// disables journaling.
type JournalConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the top-level voltpipe.yml configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Metastore MetastoreConfig `yaml:"metastore"`
	MetaDB    MetaDBConfig    `yaml:"metadb"`
	Journal   JournalConfig   `yaml:"journal,omitempty"`
	Samples   int             `yaml:"samples"`
}

// Default returns the configuration with every option at its documented
// default, matching the compose environment the pipeline ships with.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Container: "weather-data",
			Root:      "/var/lib/voltpipe/lake",
		},
		Mirror: MirrorConfig{
			Host:     "starrocks",
			Port:     9030,
			User:     "root",
			Database: "energy_trading",
		},
		Oracle: OracleConfig{
			Host:    "ollama",
			Port:    11434,
			Model:   "llama3.2:1b",
			Timeout: 30 * time.Second,
		},
		Metastore: MetastoreConfig{
			Host: "hive-metastore",
			Port: 9083,
		},
		MetaDB: MetaDBConfig{
			User:     "hive",
			Password: "hive",
			JDBCURI:  "jdbc:postgresql://hive-postgres:5432/metastore",
		},
		Samples: 1500,
	}
}

// Load reads and validates voltpipe.yml from the specified path.
// Omitted options keep their defaults; credentials honor env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads the config file if it exists; a missing file yields
// the defaults (with env overrides applied).
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		config.applyEnvOverrides()
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return config, nil
	}
	return Load(path)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VOLTPIPE_STORAGE_KEY"); v != "" {
		c.Storage.Key = v
	}
	if v := os.Getenv("VOLTPIPE_MIRROR_PASSWORD"); v != "" {
		c.Mirror.Password = v
	}
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Samples < 1 {
		return fmt.Errorf("samples must be >= 1, got %d", c.Samples)
	}
	if c.Storage.Container == "" {
		return fmt.Errorf("storage.container is required")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Mirror.Host == "" {
		return fmt.Errorf("mirror.host is required")
	}
	if c.Mirror.Port < 1 || c.Mirror.Port > 65535 {
		return fmt.Errorf("mirror.port out of range: %d", c.Mirror.Port)
	}
	if c.Mirror.Database == "" {
		return fmt.Errorf("mirror.database is required")
	}
	if c.Oracle.Host == "" {
		return fmt.Errorf("oracle.host is required")
	}
	if c.Oracle.Port < 1 || c.Oracle.Port > 65535 {
		return fmt.Errorf("oracle.port out of range: %d", c.Oracle.Port)
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle.model is required")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}
	if c.Metastore.Host == "" {
		return fmt.Errorf("metastore.host is required")
	}
	if c.Metastore.Port < 1 || c.Metastore.Port > 65535 {
		return fmt.Errorf("metastore.port out of range: %d", c.Metastore.Port)
	}
	if c.MetaDB.JDBCURI == "" {
		return fmt.Errorf("metadb.jdbc_uri is required")
	}
	return nil
}

// OracleBaseURL renders the oracle endpoint base URL.
func (c *Config) OracleBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Oracle.Host, c.Oracle.Port)
}

// MetastoreBaseURL renders the catalog gateway base URL.
func (c *Config) MetastoreBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Metastore.Host, c.Metastore.Port)
}

// MetastoreThriftURI renders the metastore address as embedded in external
// catalog definitions.
func (c *Config) MetastoreThriftURI() string {
	return fmt.Sprintf("thrift://%s:%d", c.Metastore.Host, c.Metastore.Port)
}
