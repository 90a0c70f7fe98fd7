package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oceanbase/recallmem-go/pkg/core"
)

func TestDefaultConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, core.ProviderSQLite, cfg.Store.Provider)
	assert.Equal(t, 14.0, cfg.Retrieval.HalfLifeDays)
	assert.Equal(t, 50, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 0.1, cfg.Retrieval.MinRelevance)
	assert.Equal(t, 90, cfg.Retention.MaxAgeDays)
	assert.Equal(t, 0.1, cfg.Retention.MinRelevance)
	assert.Equal(t, 1000, cfg.Retention.MaxEntries)
	assert.Equal(t, 100, cfg.Retention.BatchSize)
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *core.Config)
		wantErr bool
	}{
		{
			name: "sqlite with overrides",
			envVars: map[string]string{
				"DATABASE_PROVIDER":           "sqlite",
				"SQLITE_PATH":                 "/tmp/recall.db",
				"RECALL_HALF_LIFE_DAYS":       "7",
				"RECALL_DEFAULT_LIMIT":        "20",
				"RECALL_CLEANUP_MAX_AGE_DAYS": "30",
				"RECALL_LOG_LEVEL":            "debug",
				"RECALL_BREAKER_ENABLED":      "true",
			},
			check: func(t *testing.T, cfg *core.Config) {
				assert.Equal(t, "/tmp/recall.db", cfg.Store.Config["db_path"])
				assert.Equal(t, 7.0, cfg.Retrieval.HalfLifeDays)
				assert.Equal(t, 20, cfg.Retrieval.DefaultLimit)
				assert.Equal(t, 30, cfg.Retention.MaxAgeDays)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.True(t, cfg.Breaker.Enabled)
			},
		},
		{
			name: "postgres",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "postgres",
				"POSTGRES_HOST":     "db.internal",
				"POSTGRES_PORT":     "6543",
				"POSTGRES_PASSWORD": "secret",
			},
			check: func(t *testing.T, cfg *core.Config) {
				assert.Equal(t, "db.internal", cfg.Store.Config["host"])
				assert.Equal(t, 6543, cfg.Store.Config["port"])
				assert.Equal(t, "secret", cfg.Store.Config["password"])
				assert.Equal(t, "disable", cfg.Store.Config["ssl_mode"])
			},
		},
		{
			name: "oceanbase",
			envVars: map[string]string{
				"DATABASE_PROVIDER": "oceanbase",
				"OCEANBASE_HOST":    "10.0.0.5",
			},
			check: func(t *testing.T, cfg *core.Config) {
				assert.Equal(t, "10.0.0.5", cfg.Store.Config["host"])
				assert.Equal(t, 2881, cfg.Store.Config["port"])
			},
		},
		{
			name: "malformed number",
			envVars: map[string]string{
				"DATABASE_PROVIDER":    "memory",
				"RECALL_DEFAULT_LIMIT": "fifty",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := core.LoadConfigFromEnv()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.envVars["DATABASE_PROVIDER"], config.Store.Provider)
			tt.check(t, config)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "recall.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"store": {"provider": "memory"},
		"retrieval": {"default_limit": 10},
		"retention": {"max_entries": 200}
	}`), 0o600))

	yamlPath := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
store:
  provider: sqlite
  config:
    db_path: ./data/recall.db
retrieval:
  half_life_days: 30
logging:
  level: info
  encoding: console
`), 0o600))

	fromJSON, err := core.LoadConfigFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, core.ProviderMemory, fromJSON.Store.Provider)
	assert.Equal(t, 10, fromJSON.Retrieval.DefaultLimit)
	assert.Equal(t, 200, fromJSON.Retention.MaxEntries)
	assert.Equal(t, 14.0, fromJSON.Retrieval.HalfLifeDays, "unset fields keep defaults")
	require.NoError(t, fromJSON.Validate())

	fromYAML, err := core.LoadConfigFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "./data/recall.db", fromYAML.Store.Config["db_path"])
	assert.Equal(t, 30.0, fromYAML.Retrieval.HalfLifeDays)
	assert.Equal(t, "console", fromYAML.Logging.Encoding)
	assert.Equal(t, 50, fromYAML.Retrieval.DefaultLimit)
	require.NoError(t, fromYAML.Validate())

	_, err = core.LoadConfigFromFile(filepath.Join(dir, "recall.toml"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = core.LoadConfigFromJSON(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *core.Config)
	}{
		{"missing provider", func(cfg *core.Config) { cfg.Store.Provider = "" }},
		{"unknown provider", func(cfg *core.Config) { cfg.Store.Provider = "redis" }},
		{"zero half life", func(cfg *core.Config) { cfg.Retrieval.HalfLifeDays = 0 }},
		{"negative weight", func(cfg *core.Config) { cfg.Retrieval.RecencyWeight = -0.1 }},
		{"all weights zero", func(cfg *core.Config) {
			cfg.Retrieval.OverlapWeight, cfg.Retrieval.RecencyWeight, cfg.Retrieval.IntrinsicWeight = 0, 0, 0
		}},
		{"zero default limit", func(cfg *core.Config) { cfg.Retrieval.DefaultLimit = 0 }},
		{"min relevance above one", func(cfg *core.Config) { cfg.Retrieval.MinRelevance = 1.1 }},
		{"zero max age", func(cfg *core.Config) { cfg.Retention.MaxAgeDays = 0 }},
		{"negative max entries", func(cfg *core.Config) { cfg.Retention.MaxEntries = -1 }},
		{"zero batch size", func(cfg *core.Config) { cfg.Retention.BatchSize = 0 }},
		{"duplicate threshold zero", func(cfg *core.Config) { cfg.Intelligence.DuplicateThreshold = 0 }},
		{"correction penalty above one", func(cfg *core.Config) { cfg.Intelligence.CorrectionPenalty = 2 }},
		{"bad log level", func(cfg *core.Config) { cfg.Logging.Level = "loud" }},
		{"bad log encoding", func(cfg *core.Config) { cfg.Logging.Encoding = "xml" }},
		{"node id out of range", func(cfg *core.Config) { cfg.NodeID = 1024 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := core.DefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)
		})
	}
}

func TestNewClient_SQLite(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Store.Config = map[string]interface{}{
		"db_path": filepath.Join(t.TempDir(), "recall.db"),
	}

	client, err := core.NewClient(cfg)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	stats, err := client.Stats(t.Context(), "agent")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

func TestNewLogger(t *testing.T) {
	nop, err := core.NewLogger(core.LoggingConfig{})
	require.NoError(t, err)
	assert.False(t, nop.Core().Enabled(zap.DebugLevel))

	logger, err := core.NewLogger(core.LoggingConfig{Level: "warn", Encoding: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = core.NewLogger(core.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}
