// Package main provides the assguard CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/assguard/internal/warehouse"
)

// Environment variables configuring a run. The service-account key is
// env-only; warehouse settings may also come from the optional config file.
const (
	EnvServiceAccountJSON = "GCP_SERVICE_ACCOUNT_JSON"
	EnvProjectID          = "PROJECT_ID"
	EnvLocation           = "LOCATION"
	EnvRepositoryID       = "REPOSITORY_ID"

	EnvClickHouseAddr     = "CLICKHOUSE_ADDR"
	EnvClickHouseDatabase = "CLICKHOUSE_DATABASE"
	EnvClickHouseUsername = "CLICKHOUSE_USERNAME"
	EnvClickHousePassword = "CLICKHOUSE_PASSWORD"
	EnvPushgatewayURL     = "PUSHGATEWAY_URL"
)

// Config represents the run configuration.
type Config struct {
	// Source holds the workflow repository coordinates.
	Source SourceConfig `yaml:"source"`

	// Warehouse holds the ClickHouse connection settings.
	Warehouse warehouse.Config `yaml:"warehouse"`

	// PushgatewayURL is the optional metrics push target.
	PushgatewayURL string `yaml:"pushgateway_url"`

	// ServiceAccountJSON is the secret key. Env-only, never in a file.
	ServiceAccountJSON string `yaml:"-"`

	Verbose bool `yaml:"-"` // set via CLI flag
}

// SourceConfig locates the workflow repository to extract from.
type SourceConfig struct {
	Project    string `yaml:"project"`
	Location   string `yaml:"location"`
	Repository string `yaml:"repository"`
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment variables on top. Env wins over file values.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides config fields from the environment.
func (c *Config) applyEnv() {
	c.ServiceAccountJSON = os.Getenv(EnvServiceAccountJSON)

	if v := os.Getenv(EnvProjectID); v != "" {
		c.Source.Project = v
	}
	if v := os.Getenv(EnvLocation); v != "" {
		c.Source.Location = v
	}
	if v := os.Getenv(EnvRepositoryID); v != "" {
		c.Source.Repository = v
	}
	if v := os.Getenv(EnvClickHouseAddr); v != "" {
		c.Warehouse.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvClickHouseDatabase); v != "" {
		c.Warehouse.Database = v
	}
	if v := os.Getenv(EnvClickHouseUsername); v != "" {
		c.Warehouse.Username = v
	}
	if v := os.Getenv(EnvClickHousePassword); v != "" {
		c.Warehouse.Password = v
	}
	if v := os.Getenv(EnvPushgatewayURL); v != "" {
		c.PushgatewayURL = v
	}
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if len(c.Warehouse.Addresses) == 0 {
		c.Warehouse.Addresses = []string{"localhost:9000"}
	}
	if c.Warehouse.Database == "" {
		c.Warehouse.Database = "default"
	}
	if c.Warehouse.Username == "" {
		c.Warehouse.Username = "default"
	}
}

// Validate checks the configuration, reporting every missing required
// variable at once.
func (c *Config) Validate() error {
	var missing []string
	if c.ServiceAccountJSON == "" {
		missing = append(missing, EnvServiceAccountJSON)
	}
	if c.Source.Project == "" {
		missing = append(missing, EnvProjectID)
	}
	if c.Source.Location == "" {
		missing = append(missing, EnvLocation)
	}
	if c.Source.Repository == "" {
		missing = append(missing, EnvRepositoryID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
