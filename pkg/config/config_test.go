package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("dataset:\n  path: data/organs.csv\n"))
	require.NoError(t, err)

	assert.Equal(t, "artifacts", cfg.Artifacts.Dir)
	assert.Equal(t, filepath.Join("artifacts", "organ_match.bundle"), cfg.Artifacts.BundlePath())
	assert.Equal(t, "csv", cfg.Dataset.Source)
	assert.Equal(t, []string{"Time"}, cfg.Dataset.DropColumns)
	assert.Equal(t, "Delta", cfg.Dataset.OutcomeColumn)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.DefaultMatches)
	assert.Equal(t, "prod", cfg.Logging.Env)

	opts := cfg.Vectorizer.Options()
	assert.Equal(t, 200, opts.MaxFeatures)
	assert.Equal(t, 0.25, opts.MaxDF)
	assert.Equal(t, 0.01, opts.MinDF)
	assert.Equal(t, "english", opts.StopWords)
}

func TestParseExplicitZeroMinDF(t *testing.T) {
	cfg, err := Parse([]byte(`
vectorizer:
  max_df: 1.0
  min_df: 0
dataset:
  path: organs.csv
`))
	require.NoError(t, err)
	opts := cfg.Vectorizer.Options()
	assert.Equal(t, 1.0, opts.MaxDF)
	assert.Equal(t, 0.0, opts.MinDF)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ORGAN_DB_HOST", "db.internal")
	t.Setenv("ORGAN_DB_PORT", "")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Set variable", "host: ${ORGAN_DB_HOST}", "host: db.internal"},
		{"Default unused", "host: ${ORGAN_DB_HOST:-localhost}", "host: db.internal"},
		{"Default used", "port: ${ORGAN_DB_PORT:-5432}", "port: 5432"},
		{"Unset without default", "port: ${ORGAN_DB_PORT}", "port: "},
		{"No references", "port: 5432", "port: 5432"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(expandEnvVars([]byte(tt.input))); got != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Unknown source", "dataset:\n  source: s3\n  path: x\n"},
		{"Bad port", "server:\n  port: 70000\ndataset:\n  path: x\n"},
		{"Bad mode", "server:\n  mode: turbo\ndataset:\n  path: x\n"},
		{"Inverted df bounds", "vectorizer:\n  max_df: 0.1\n  min_df: 0.5\ndataset:\n  path: x\n"},
		{"Unknown stop words", "vectorizer:\n  stop_words: klingon\ndataset:\n  path: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Parse() expected an error for %s", tt.name)
			}
		})
	}
}

func TestParseServingOnly(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9000\nartifacts:\n  dir: /srv/organmatch\n"))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join("/srv/organmatch", "organ_match.bundle"), cfg.Artifacts.BundlePath())
	assert.Error(t, cfg.ValidateDataset())
}

func TestValidateDataset(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"Missing csv path", "dataset:\n  source: csv\n", true},
		{"Csv path", "dataset:\n  path: organs.csv\n", false},
		{"Postgres without table", "dataset:\n  source: postgres\ndb_creds:\n  host: h\n  database: d\n", true},
		{"Postgres without host", "dataset:\n  source: postgres\n  table: organs\n", true},
		{"Postgres", "dataset:\n  source: postgres\n  table: organs\ndb_creds:\n  host: h\n  database: d\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			err = cfg.ValidateDataset()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDataset() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	cfg, err := Parse([]byte("db_creds:\n  host: h\n"))
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateDatabase())

	cfg.DBCreds.Database = "organs"
	assert.NoError(t, cfg.ValidateDatabase())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ORGAN_DATASET", "/data/organs.csv")
	t.Setenv("ORGAN_DB_HOST", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
artifacts:
  dir: /var/lib/organmatch
  similarity_matrix: cosine.bin
dataset:
  path: ${ORGAN_DATASET}
db_creds:
  host: ${ORGAN_DB_HOST:-localhost}
  database: organs
  load_table: organ_load
server:
  default_matches: 10
logging:
  env: dev
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/organs.csv", cfg.Dataset.Path)
	assert.Equal(t, "localhost", cfg.DBCreds.Host)
	assert.Equal(t, "5432", cfg.DBCreds.Port)
	assert.Equal(t, "organ_load", cfg.DBCreds.LoadTable)
	assert.Equal(t, "cosine.bin", cfg.Artifacts.SimilarityMatrix)
	assert.Equal(t, 10, cfg.Server.DefaultMatches)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
