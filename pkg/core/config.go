package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/oceanbase/recallmem-go/pkg/intelligence"
)

// Store providers understood by NewClient.
const (
	ProviderSQLite    = "sqlite"
	ProviderPostgres  = "postgres"
	ProviderOceanBase = "oceanbase"
	ProviderMemory    = "memory"
)

// Config contains the complete configuration for a RecallMem client.
//
// It includes settings for:
//   - Store (which backend persists entries)
//   - Retrieval (scoring weights, half-life, recall defaults)
//   - Retention (cleanup defaults)
//   - Intelligence (reinforcement and correction tuning)
//   - Logging, Metrics and Breaker (ambient behaviour)
//
// Example:
//
//	config := core.DefaultConfig()
//	config.Store = core.StoreConfig{
//	    Provider: "sqlite",
//	    Config: map[string]interface{}{
//	        "db_path": "./memories.db",
//	    },
//	}
type Config struct {
	// Store contains store configuration.
	Store StoreConfig `json:"store" yaml:"store"`

	// Retrieval contains scoring and recall configuration.
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`

	// Retention contains cleanup configuration.
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Intelligence contains write-path tuning.
	Intelligence IntelligenceConfig `json:"intelligence" yaml:"intelligence"`

	// Logging configures the zap logger built by NewClient.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Metrics configures Prometheus instrumentation.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Breaker configures the circuit breaker placed around the store.
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`

	// NodeID is the snowflake node (0-1023) used to assign entry ids.
	NodeID int64 `json:"node_id" yaml:"node_id"`
}

// StoreConfig contains configuration for the memory store.
//
// Supported providers: sqlite, postgres, oceanbase, memory
//
// Example:
//
//	storeConfig := core.StoreConfig{
//	    Provider: "sqlite",
//	    Config: map[string]interface{}{
//	        "db_path":         "./memories.db",
//	        "collection_name": "memory_entries",
//	    },
//	}
type StoreConfig struct {
	// Provider is the store provider name.
	Provider string `json:"provider" yaml:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, collection_name
	// For OceanBase: host, port, user, password, db_name, collection_name
	// For PostgreSQL: host, port, user, password, db_name, collection_name, ssl_mode
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// RetrievalConfig tunes scoring and recall defaults.
type RetrievalConfig struct {
	// HalfLifeDays is the age at which the recency term halves. Default: 14
	HalfLifeDays float64 `json:"half_life_days" yaml:"half_life_days"`

	// OverlapWeight, RecencyWeight and IntrinsicWeight weight the score terms.
	// Defaults: 0.5, 0.3, 0.2
	OverlapWeight   float64 `json:"overlap_weight" yaml:"overlap_weight"`
	RecencyWeight   float64 `json:"recency_weight" yaml:"recency_weight"`
	IntrinsicWeight float64 `json:"intrinsic_weight" yaml:"intrinsic_weight"`

	// DefaultLimit is the recall page size when none is given. Default: 50
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`

	// MinRelevance is the recall score floor when none is given. Default: 0.1
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// PatternMinFrequency is the smallest reported tag cluster. Default: 2
	PatternMinFrequency int `json:"pattern_min_frequency" yaml:"pattern_min_frequency"`

	// PatternMaxExamples caps the examples per pattern. Default: 3
	PatternMaxExamples int `json:"pattern_max_examples" yaml:"pattern_max_examples"`
}

// RetentionConfig holds cleanup defaults.
type RetentionConfig struct {
	// MaxAgeDays evicts entries not accessed for longer. Default: 90
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`

	// MinRelevance evicts never-reinforced entries below it. Default: 0.1
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// MaxEntries caps each scope. Default: 1000
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// BatchSize is the number of ids per delete batch. Default: 100
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// IntelligenceConfig tunes the write path.
type IntelligenceConfig struct {
	// DuplicateThreshold is the token similarity at which an added entry
	// reinforces an existing one instead of being inserted. Default: 0.9
	DuplicateThreshold float64 `json:"duplicate_threshold" yaml:"duplicate_threshold"`

	// CorrectionPenalty multiplies the relevance of an entry that a
	// correction refers to. Default: 0.5
	CorrectionPenalty float64 `json:"correction_penalty" yaml:"correction_penalty"`
}

// LoggingConfig configures the zap logger. An empty Level disables logging.
type LoggingConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Encoding is "json" or "console". Default: json
	Encoding string `json:"encoding" yaml:"encoding"`
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	// Enabled registers collectors on the default registerer in NewClient.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes metric names. Default: recallmem
	Namespace string `json:"namespace" yaml:"namespace"`
}

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	// Enabled wraps the store in a circuit breaker.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxFailures is the number of consecutive failures that opens it. Default: 5
	MaxFailures uint32 `json:"max_failures" yaml:"max_failures"`

	// TimeoutSeconds is how long it stays open. Default: 30
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// DefaultConfig returns a configuration backed by a local SQLite file with
// every tunable at its default.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Provider: ProviderSQLite,
			Config: map[string]interface{}{
				"db_path":         "./recallmem.db",
				"collection_name": "memory_entries",
			},
		},
		Retrieval: RetrievalConfig{
			HalfLifeDays:        14,
			OverlapWeight:       intelligence.DefaultOverlapWeight,
			RecencyWeight:       intelligence.DefaultRecencyWeight,
			IntrinsicWeight:     intelligence.DefaultIntrinsicWeight,
			DefaultLimit:        50,
			MinRelevance:        0.1,
			PatternMinFrequency: intelligence.DefaultPatternMinFrequency,
			PatternMaxExamples:  intelligence.DefaultPatternMaxExamples,
		},
		Retention: RetentionConfig{
			MaxAgeDays:   90,
			MinRelevance: intelligence.DefaultMinRelevance,
			MaxEntries:   intelligence.DefaultMaxEntries,
			BatchSize:    100,
		},
		Intelligence: IntelligenceConfig{
			DuplicateThreshold: intelligence.DefaultDuplicateThreshold,
			CorrectionPenalty:  0.5,
		},
		Logging: LoggingConfig{
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Namespace: "recallmem",
		},
		Breaker: BreakerConfig{
			MaxFailures:    5,
			TimeoutSeconds: 30,
		},
		NodeID: 1,
	}
}

// scorerConfig converts the retrieval settings for the intelligence package.
func (c *Config) scorerConfig() intelligence.ScorerConfig {
	return intelligence.ScorerConfig{
		OverlapWeight:   c.Retrieval.OverlapWeight,
		RecencyWeight:   c.Retrieval.RecencyWeight,
		IntrinsicWeight: c.Retrieval.IntrinsicWeight,
		HalfLife:        time.Duration(c.Retrieval.HalfLifeDays * float64(24*time.Hour)),
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Overlays environment variables on DefaultConfig
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, oceanbase, postgres, memory)
//   - SQLITE_PATH, SQLITE_COLLECTION
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, etc.
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - RECALL_HALF_LIFE_DAYS, RECALL_DEFAULT_LIMIT, RECALL_MIN_RELEVANCE
//   - RECALL_CLEANUP_MAX_AGE_DAYS, RECALL_CLEANUP_MIN_RELEVANCE,
//     RECALL_CLEANUP_MAX_ENTRIES, RECALL_CLEANUP_BATCH_SIZE
//   - RECALL_DUPLICATE_THRESHOLD, RECALL_CORRECTION_PENALTY
//   - RECALL_LOG_LEVEL, RECALL_LOG_ENCODING
//   - RECALL_METRICS_ENABLED, RECALL_BREAKER_ENABLED, RECALL_NODE_ID
//
// Returns a Config instance, or an error if a numeric variable cannot be parsed.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	config := DefaultConfig()
	p := &envParser{}

	config.Store.Provider = getEnvOrDefault("DATABASE_PROVIDER", ProviderSQLite)
	switch config.Store.Provider {
	case ProviderOceanBase:
		config.Store.Config = map[string]interface{}{
			"host":            getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":            p.int("OCEANBASE_PORT", 2881),
			"user":            getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password":        os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":         getEnvOrDefault("OCEANBASE_DATABASE", "recallmem"),
			"collection_name": getEnvOrDefault("OCEANBASE_COLLECTION", "memory_entries"),
		}
	case ProviderSQLite:
		config.Store.Config = map[string]interface{}{
			"db_path":         getEnvOrDefault("SQLITE_PATH", "./recallmem.db"),
			"collection_name": getEnvOrDefault("SQLITE_COLLECTION", "memory_entries"),
		}
	case ProviderPostgres:
		config.Store.Config = map[string]interface{}{
			"host":            getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":            p.int("POSTGRES_PORT", 5432),
			"user":            getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":        os.Getenv("POSTGRES_PASSWORD"),
			"db_name":         getEnvOrDefault("POSTGRES_DATABASE", "recallmem"),
			"collection_name": getEnvOrDefault("POSTGRES_COLLECTION", "memory_entries"),
			"ssl_mode":        getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case ProviderMemory:
		config.Store.Config = map[string]interface{}{}
	}

	r := &config.Retrieval
	r.HalfLifeDays = p.float("RECALL_HALF_LIFE_DAYS", r.HalfLifeDays)
	r.DefaultLimit = p.int("RECALL_DEFAULT_LIMIT", r.DefaultLimit)
	r.MinRelevance = p.float("RECALL_MIN_RELEVANCE", r.MinRelevance)

	ret := &config.Retention
	ret.MaxAgeDays = p.int("RECALL_CLEANUP_MAX_AGE_DAYS", ret.MaxAgeDays)
	ret.MinRelevance = p.float("RECALL_CLEANUP_MIN_RELEVANCE", ret.MinRelevance)
	ret.MaxEntries = p.int("RECALL_CLEANUP_MAX_ENTRIES", ret.MaxEntries)
	ret.BatchSize = p.int("RECALL_CLEANUP_BATCH_SIZE", ret.BatchSize)

	config.Intelligence.DuplicateThreshold = p.float("RECALL_DUPLICATE_THRESHOLD", config.Intelligence.DuplicateThreshold)
	config.Intelligence.CorrectionPenalty = p.float("RECALL_CORRECTION_PENALTY", config.Intelligence.CorrectionPenalty)

	config.Logging.Level = os.Getenv("RECALL_LOG_LEVEL")
	config.Logging.Encoding = getEnvOrDefault("RECALL_LOG_ENCODING", config.Logging.Encoding)
	config.Metrics.Enabled = os.Getenv("RECALL_METRICS_ENABLED") == "true"
	config.Breaker.Enabled = os.Getenv("RECALL_BREAKER_ENABLED") == "true"
	config.NodeID = int64(p.int("RECALL_NODE_ID", int(config.NodeID)))

	if p.err != nil {
		return nil, NewMemoryError("LoadConfigFromEnv", p.err)
	}
	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file. Fields missing
// from the file keep their DefaultConfig values.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file. Fields missing
// from the file keep their DefaultConfig values.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, NewMemoryError("LoadConfigFromYAML", err)
	}

	return config, nil
}

// LoadConfigFromFile picks the JSON or YAML loader by file extension.
func LoadConfigFromFile(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadConfigFromYAML(path)
	case ".json":
		return LoadConfigFromJSON(path)
	default:
		return nil, NewMemoryError("LoadConfigFromFile",
			fmt.Errorf("%w: unsupported config file %q", ErrInvalidConfig, path))
	}
}

// Validate validates the configuration.
//
// Returns an error wrapping ErrInvalidConfig if any setting is out of range,
// nil otherwise.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return NewMemoryError("Validate", fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch c.Store.Provider {
	case ProviderSQLite, ProviderPostgres, ProviderOceanBase, ProviderMemory:
	case "":
		return fail("store provider is required")
	default:
		return fail("unknown store provider %q", c.Store.Provider)
	}

	r := c.Retrieval
	if r.HalfLifeDays <= 0 {
		return fail("retrieval.half_life_days must be positive")
	}
	if r.OverlapWeight < 0 || r.RecencyWeight < 0 || r.IntrinsicWeight < 0 {
		return fail("retrieval weights must not be negative")
	}
	if r.OverlapWeight+r.RecencyWeight+r.IntrinsicWeight == 0 {
		return fail("retrieval weights must not all be zero")
	}
	if r.DefaultLimit <= 0 {
		return fail("retrieval.default_limit must be positive")
	}
	if r.MinRelevance < 0 || r.MinRelevance > 1 {
		return fail("retrieval.min_relevance must be within [0,1]")
	}

	ret := c.Retention
	if ret.MaxAgeDays <= 0 {
		return fail("retention.max_age_days must be positive")
	}
	if ret.MinRelevance < 0 || ret.MinRelevance > 1 {
		return fail("retention.min_relevance must be within [0,1]")
	}
	if ret.MaxEntries < 0 {
		return fail("retention.max_entries must not be negative")
	}
	if ret.BatchSize <= 0 {
		return fail("retention.batch_size must be positive")
	}

	in := c.Intelligence
	if in.DuplicateThreshold <= 0 || in.DuplicateThreshold > 1 {
		return fail("intelligence.duplicate_threshold must be within (0,1]")
	}
	if in.CorrectionPenalty < 0 || in.CorrectionPenalty > 1 {
		return fail("intelligence.correction_penalty must be within [0,1]")
	}

	if c.Logging.Level != "" {
		if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
			return fail("logging.level: %v", err)
		}
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return fail("logging.encoding must be json or console")
	}

	if c.NodeID < 0 || c.NodeID > 1023 {
		return fail("node_id must be within [0,1023]")
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads numeric variables and keeps the first parse failure.
type envParser struct {
	err error
}

func (p *envParser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, raw)
		}
		return def
	}
	return v
}

func (p *envParser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, raw)
		}
		return def
	}
	return v
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	// First check the current directory
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	// Check project root directory (search upward)
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
