package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "agency_data.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "scraped_data", cfg.Ingest.Dir)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 300, cfg.Join.ToleranceSecs)
	assert.Equal(t, 2, cfg.Join.MinEvidence)
	assert.InDelta(t, 0.5, cfg.Join.MinorityThreshold, 0.001)
	assert.Equal(t, 4, cfg.Join.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgYAML := `
store:
  driver: postgres
  database_url: postgres://localhost/audit
join:
  tolerance_secs: 60
  min_evidence: 3
`
	require.NoError(t, os.WriteFile(dir+"/config.yaml", []byte(cfgYAML), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/audit", cfg.Store.DatabaseURL)
	assert.Equal(t, 60, cfg.Join.ToleranceSecs)
	assert.Equal(t, 3, cfg.Join.MinEvidence)
	// Unset keys keep their defaults.
	assert.Equal(t, 4, cfg.Join.Workers)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ALPR_STORE_DRIVER", "postgres")
	t.Setenv("ALPR_JOIN_TOLERANCE_SECS", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 120, cfg.Join.ToleranceSecs)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "test.db"},
			Ingest: IngestConfig{Dir: "scraped_data", Workers: 4},
			Join:   JoinConfig{ToleranceSecs: 300, MinEvidence: 2, MinorityThreshold: 0.5, Workers: 4},
			Log:    LogConfig{Level: "info", Format: "json"},
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"zero tolerance", func(c *Config) { c.Join.ToleranceSecs = 0 }},
		{"zero min evidence", func(c *Config) { c.Join.MinEvidence = 0 }},
		{"minority threshold above one", func(c *Config) { c.Join.MinorityThreshold = 1.5 }},
		{"negative minority threshold", func(c *Config) { c.Join.MinorityThreshold = -0.1 }},
		{"zero ingest workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"zero join workers", func(c *Config) { c.Join.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestJoinConfig_Tolerance(t *testing.T) {
	j := JoinConfig{ToleranceSecs: 300}
	assert.Equal(t, "5m0s", j.Tolerance().String())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "shouting", Format: "json"}))
}
