package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgconfig "github.com/goran-ethernal/EventSyncor/pkg/config"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
store:
  db:
    path: /tmp/syncstore.db
    journal_mode: WAL
  maintenance:
    enabled: true
    check_interval: 1h
logging:
  default_level: debug
  development: true
metrics:
  enabled: true
  listen_address: ":9100"
`

const jsonConfig = `{
  "store": {
    "db": {
      "path": "/tmp/syncstore.db",
      "journal_mode": "WAL"
    },
    "maintenance": {
      "enabled": true,
      "check_interval": "1h"
    }
  },
  "logging": {
    "default_level": "debug",
    "development": true
  },
  "metrics": {
    "enabled": true,
    "listen_address": ":9100"
  }
}`

const tomlConfig = `
[store.db]
path = "/tmp/syncstore.db"
journal_mode = "WAL"

[store.maintenance]
enabled = true
check_interval = "1h"

[logging]
default_level = "debug"
development = true

[metrics]
enabled = true
listen_address = ":9100"
`

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validateConfig(t *testing.T, cfg *pkgconfig.Config, format string) {
	t.Helper()

	require.Equal(t, "/tmp/syncstore.db", cfg.Store.DB.Path, "%s: db path", format)
	require.Equal(t, "WAL", cfg.Store.DB.JournalMode, "%s: journal mode", format)

	// Defaults applied by the loader
	require.Equal(t, "NORMAL", cfg.Store.DB.Synchronous, "%s: synchronous default", format)
	require.Equal(t, 5000, cfg.Store.DB.BusyTimeout, "%s: busy timeout default", format)

	require.NotNil(t, cfg.Store.Maintenance, "%s: maintenance", format)
	require.True(t, cfg.Store.Maintenance.Enabled, "%s: maintenance enabled", format)
	require.Equal(t, time.Hour, cfg.Store.Maintenance.CheckInterval.Duration, "%s: check interval", format)
	require.Equal(t, "TRUNCATE", cfg.Store.Maintenance.WALCheckpointMode, "%s: checkpoint mode default", format)

	require.NotNil(t, cfg.Logging, "%s: logging", format)
	require.Equal(t, "debug", cfg.Logging.GetDefaultLevel(), "%s: log level", format)
	require.True(t, cfg.Logging.IsDevelopment(), "%s: development", format)

	require.NotNil(t, cfg.Metrics, "%s: metrics", format)
	require.True(t, cfg.Metrics.Enabled, "%s: metrics enabled", format)
	require.Equal(t, ":9100", cfg.Metrics.ListenAddress, "%s: listen address", format)
	require.Equal(t, "/metrics", cfg.Metrics.Path, "%s: metrics path default", format)
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := LoadFromYAML(writeConfigFile(t, "config.yaml", yamlConfig))
	require.NoError(t, err)

	validateConfig(t, cfg, "YAML")
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON(writeConfigFile(t, "config.json", jsonConfig))
	require.NoError(t, err)

	validateConfig(t, cfg, "JSON")
}

func TestLoadFromTOML(t *testing.T) {
	cfg, err := LoadFromTOML(writeConfigFile(t, "config.toml", tomlConfig))
	require.NoError(t, err)

	validateConfig(t, cfg, "TOML")
}

func TestLoadFromFile_AutoDetect(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{name: "config.yaml", content: yamlConfig},
		{name: "config.yml", content: yamlConfig},
		{name: "config.json", content: jsonConfig},
		{name: "config.toml", content: tomlConfig},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadFromFile(writeConfigFile(t, tc.name, tc.content))
			require.NoError(t, err)

			validateConfig(t, cfg, tc.name)
		})
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFromFile(writeConfigFile(t, "config.ini", "store:\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFromYAML_Invalid(t *testing.T) {
	_, err := LoadFromYAML(writeConfigFile(t, "config.yaml", "store: [broken"))
	require.Error(t, err)
}

func TestLoadFromFile_ValidationFailure(t *testing.T) {
	// Missing store.db.path must be rejected.
	_, err := LoadFromFile(writeConfigFile(t, "config.yaml", "logging:\n  default_level: debug\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "store.db.path is required")
}

func TestLoadFromFile_InvalidLogLevel(t *testing.T) {
	content := `
store:
  db:
    path: /tmp/syncstore.db
logging:
  default_level: loud
`
	_, err := LoadFromFile(writeConfigFile(t, "config.yaml", content))
	require.Error(t, err)
	require.Contains(t, err.Error(), "logging.default_level")
}
