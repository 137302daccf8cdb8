// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/TFMV/OrganMatchPro/internal/dataset"
	"github.com/TFMV/OrganMatchPro/pkg/db"
	"github.com/TFMV/OrganMatchPro/pkg/tfidf"
)

type Config struct {
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	DBCreds    DBCreds          `yaml:"db_creds"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ArtifactsConfig locates training outputs.
type ArtifactsConfig struct {
	Dir    string `yaml:"dir"`
	Bundle string `yaml:"bundle"`
	// SimilarityMatrix names the pairwise cosine matrix file; empty disables it.
	SimilarityMatrix string `yaml:"similarity_matrix"`
	// Projection names the PCA projection CSV; empty disables it.
	Projection           string `yaml:"projection"`
	ProjectionComponents int    `yaml:"projection_components"`
	Workers              int    `yaml:"workers"`
}

// BundlePath returns the full path of the artifact bundle.
func (a ArtifactsConfig) BundlePath() string {
	return filepath.Join(a.Dir, a.Bundle)
}

// VectorizerConfig holds the vocabulary bounds. Pointers tell an explicit zero
// apart from an omitted key.
type VectorizerConfig struct {
	MaxFeatures int      `yaml:"max_features"`
	MaxDF       *float64 `yaml:"max_df"`
	MinDF       *float64 `yaml:"min_df"`
	StopWords   string   `yaml:"stop_words"`
}

// Options converts the section into vectorizer options.
func (v VectorizerConfig) Options() tfidf.Options {
	opts := tfidf.DefaultOptions()
	opts.MaxFeatures = v.MaxFeatures
	if v.MaxDF != nil {
		opts.MaxDF = *v.MaxDF
	}
	if v.MinDF != nil {
		opts.MinDF = *v.MinDF
	}
	opts.StopWords = v.StopWords
	return opts
}

// DatasetConfig selects the reference dataset.
type DatasetConfig struct {
	Source        string   `yaml:"source"`
	Path          string   `yaml:"path"`
	Table         string   `yaml:"table"`
	DropColumns   []string `yaml:"drop_columns"`
	OutcomeColumn string   `yaml:"outcome_column"`
}

// Options converts the section into normalization options.
func (d DatasetConfig) Options() dataset.Options {
	return dataset.Options{DropColumns: d.DropColumns, OutcomeColumn: d.OutcomeColumn}
}

type DBCreds struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	LoadTable string `yaml:"load_table"`
}

// Connection returns the connection settings understood by the db package.
func (c DBCreds) Connection() db.DBCreds {
	return db.DBCreds{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Database: c.Database,
	}
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	Mode            string `yaml:"mode"`
	DefaultMatches  int    `yaml:"default_matches"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_sec"`
}

// LoggingConfig selects the zap preset and level.
type LoggingConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment references in data, unmarshals it, applies defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	data = expandEnvVars(data)

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "artifacts"
	}
	if c.Artifacts.Bundle == "" {
		c.Artifacts.Bundle = "organ_match.bundle"
	}
	if c.Artifacts.ProjectionComponents <= 0 {
		c.Artifacts.ProjectionComponents = 2
	}
	if c.Vectorizer.MaxFeatures == 0 {
		c.Vectorizer.MaxFeatures = tfidf.DefaultOptions().MaxFeatures
	}
	if c.Vectorizer.StopWords == "" {
		c.Vectorizer.StopWords = tfidf.DefaultOptions().StopWords
	}
	if c.Dataset.Source == "" {
		c.Dataset.Source = "csv"
	}
	if c.Dataset.DropColumns == nil {
		c.Dataset.DropColumns = []string{"Time"}
	}
	if c.Dataset.OutcomeColumn == "" {
		c.Dataset.OutcomeColumn = "Delta"
	}
	if c.DBCreds.Port == "" {
		c.DBCreds.Port = "5432"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.DefaultMatches <= 0 {
		c.Server.DefaultMatches = 5
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 10
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "prod"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if err := c.Vectorizer.Options().Validate(); err != nil {
		return fmt.Errorf("vectorizer: %w", err)
	}
	switch c.Dataset.Source {
	case "csv", "postgres":
	default:
		return fmt.Errorf("dataset.source must be csv or postgres, got %q", c.Dataset.Source)
	}
	return nil
}

// ValidateDataset checks the settings needed to read the reference dataset.
// The server does not read the dataset and skips it.
func (c *Config) ValidateDataset() error {
	switch c.Dataset.Source {
	case "csv":
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset.path is required for the csv source")
		}
	case "postgres":
		if c.Dataset.Table == "" {
			return fmt.Errorf("dataset.table is required for the postgres source")
		}
		return c.ValidateDatabase()
	}
	return nil
}

// ValidateDatabase checks that the Postgres connection settings are present.
func (c *Config) ValidateDatabase() error {
	if c.DBCreds.Host == "" || c.DBCreds.Database == "" {
		return fmt.Errorf("db_creds.host and db_creds.database are required")
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
