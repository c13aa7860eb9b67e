// Package config handles nornicflow configuration via YAML files and environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--log-level, --metrics-addr)
//  2. Environment variables (NORNICFLOW_*)
//  3. Config file (nornicflow.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	config.ApplyEnvVars(cfg)
//
// Environment Variables (all use NORNICFLOW_ prefix):
//
// Storage:
//   - NORNICFLOW_ENGINE="memory", "badger" or "postgres"
//   - NORNICFLOW_DATA_DIR="./data"
//   - NORNICFLOW_IN_MEMORY=true
//   - NORNICFLOW_SYNC_WRITES=true
//   - NORNICFLOW_ENCRYPTION_PASSWORD="..."
//   - NORNICFLOW_POSTGRES_URL="postgres://..."
//
// Execution:
//   - NORNICFLOW_WORKERS=8
//   - NORNICFLOW_BATCH_SIZE=256
//
// Logging:
//   - NORNICFLOW_LOG_LEVEL="info"
//   - NORNICFLOW_LOG_FORMAT="json"
//
// Metrics:
//   - NORNICFLOW_METRICS_ENABLED=true
//   - NORNICFLOW_METRICS_ADDR=":9090"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Storage engine names.
const (
	EngineMemory   = "memory"
	EngineBadger   = "badger"
	EnginePostgres = "postgres"
)

// Config holds all nornicflow configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StorageConfig selects and configures the graph backend.
type StorageConfig struct {
	// Engine is memory, badger or postgres.
	Engine string `yaml:"engine"`
	// DataDir is the Badger directory.
	DataDir string `yaml:"data_dir"`
	// InMemory runs Badger without touching disk.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites fsyncs every Badger write.
	SyncWrites bool `yaml:"sync_writes"`
	// EncryptionPassword enables Badger encryption at rest when set.
	EncryptionPassword string `yaml:"encryption_password"`
	// PostgresURL is required by the postgres engine.
	PostgresURL string `yaml:"postgres_url"`
}

// ExecutionConfig sizes the dataflow runtime.
type ExecutionConfig struct {
	// Workers bounds concurrently processed input records.
	Workers int `yaml:"workers"`
	// BatchSize is how many output records are buffered before printing.
	BatchSize int `yaml:"batch_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format (json, text)
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoadDefaults returns the built-in configuration.
func LoadDefaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:  EngineMemory,
			DataDir: "./data",
		},
		Execution: ExecutionConfig{
			Workers:   runtime.NumCPU(),
			BatchSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// LoadFromFile layers a YAML file over the defaults. A missing file is not
// an error; the defaults are returned. Fields absent from the file keep
// their default values.
func LoadFromFile(configPath string) (*Config, error) {
	config := LoadDefaults()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// ApplyEnvVars overrides config with any NORNICFLOW_* variables that are set.
func ApplyEnvVars(config *Config) {
	config.Storage.Engine = getEnv("NORNICFLOW_ENGINE", config.Storage.Engine)
	config.Storage.DataDir = getEnv("NORNICFLOW_DATA_DIR", config.Storage.DataDir)
	config.Storage.InMemory = getEnvBool("NORNICFLOW_IN_MEMORY", config.Storage.InMemory)
	config.Storage.SyncWrites = getEnvBool("NORNICFLOW_SYNC_WRITES", config.Storage.SyncWrites)
	config.Storage.EncryptionPassword = getEnv("NORNICFLOW_ENCRYPTION_PASSWORD", config.Storage.EncryptionPassword)
	config.Storage.PostgresURL = getEnv("NORNICFLOW_POSTGRES_URL", config.Storage.PostgresURL)

	config.Execution.Workers = getEnvInt("NORNICFLOW_WORKERS", config.Execution.Workers)
	config.Execution.BatchSize = getEnvInt("NORNICFLOW_BATCH_SIZE", config.Execution.BatchSize)

	config.Logging.Level = getEnv("NORNICFLOW_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("NORNICFLOW_LOG_FORMAT", config.Logging.Format)

	config.Metrics.Enabled = getEnvBool("NORNICFLOW_METRICS_ENABLED", config.Metrics.Enabled)
	config.Metrics.Address = getEnv("NORNICFLOW_METRICS_ADDR", config.Metrics.Address)
}

// Load is LoadFromFile followed by ApplyEnvVars and Validate.
func Load(configPath string) (*Config, error) {
	config, err := LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	ApplyEnvVars(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory, EngineBadger:
	case EnginePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres engine requires a postgres url")
		}
	default:
		return fmt.Errorf("unknown storage engine: %q", c.Storage.Engine)
	}

	if c.Storage.Engine == EngineBadger && !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("badger engine requires a data dir")
	}

	if c.Execution.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", c.Execution.Workers)
	}
	if c.Execution.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", c.Execution.BatchSize)
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics enabled but no address provided")
	}
	return nil
}

// NewLogger builds the logger described by the Logging section.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if strings.EqualFold(c.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// String returns a safe string representation of the Config.
//
// Secrets (the encryption password and the postgres URL) are not included.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Engine: %s, DataDir: %s, Encrypted: %v, Workers: %d, Log: %s/%s, Metrics: %v}",
		c.Storage.Engine, c.Storage.DataDir, c.Storage.EncryptionPassword != "",
		c.Execution.Workers,
		c.Logging.Level, c.Logging.Format,
		c.Metrics.Enabled,
	)
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if none found.
// Search order:
//  1. Current working directory (nornicflow.yaml)
//  2. ~/.nornicflow/config.yaml
//  3. ~/.config/nornicflow/config.yaml (XDG)
func FindConfigFile() string {
	candidates := []string{"nornicflow.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".nornicflow", "config.yaml"),
			filepath.Join(home, ".config", "nornicflow", "config.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
