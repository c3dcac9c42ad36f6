package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"

	"github.com/jbweber/homelab/labpool/internal/datastore"
	"github.com/jbweber/homelab/labpool/internal/domain"
)

// MemoryDBPath selects a shared in-memory database instead of a file.
const MemoryDBPath = ":memory:"

// Config holds all configuration for the labpool service
type Config struct {
	DBPath    string
	Port      string
	LogLevel  string
	LogFormat string
	JWTSecret string // empty disables token checks and trusts X-Student-ID

	// DefaultCaps seeds the caps of courses created from the CLI
	DefaultCaps domain.Caps
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		DBPath:    "~/labpool/data/labpool.db",
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "text",
		DefaultCaps: domain.Caps{
			VcpuMax:             4,
			MemoryMax:           8,
			DiskMax:             100,
			MaxInstances:        2,
			MaxRunningInstances: 1,
		},
	}
}

// Load reads configuration from LABPOOL_* environment variables on top of
// the defaults. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := NewConfig()
	cfg.DBPath = getEnv("LABPOOL_DB_PATH", cfg.DBPath)
	cfg.Port = getEnv("LABPOOL_PORT", cfg.Port)
	cfg.LogLevel = getEnv("LABPOOL_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LABPOOL_LOG_FORMAT", cfg.LogFormat)
	cfg.JWTSecret = getEnv("LABPOOL_JWT_SECRET", cfg.JWTSecret)

	caps := &cfg.DefaultCaps
	caps.VcpuMax = getEnvInt("LABPOOL_DEFAULT_VCPU", caps.VcpuMax)
	caps.MaxInstances = getEnvInt("LABPOOL_DEFAULT_MAX_INSTANCES", caps.MaxInstances)
	caps.MaxRunningInstances = getEnvInt("LABPOOL_DEFAULT_MAX_RUNNING", caps.MaxRunningInstances)

	var err error
	if caps.MemoryMax, err = getEnvGB("LABPOOL_DEFAULT_MEMORY", caps.MemoryMax); err != nil {
		return nil, err
	}
	if caps.DiskMax, err = getEnvGB("LABPOOL_DEFAULT_DISK", caps.DiskMax); err != nil {
		return nil, err
	}
	if err := caps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default caps: %w", err)
	}

	return cfg, nil
}

// DSN returns the SQLite data source name for DBPath.
func (c *Config) DSN() string {
	const params = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if c.DBPath == MemoryDBPath {
		return "file:labpool?mode=memory&cache=shared&" + params
	}
	return "file:" + c.expandPath(c.DBPath) + "?" + params
}

// InitializeDatabase creates the database directory, opens and migrates the
// datastore and applies the file-backed performance pragmas.
func (c *Config) InitializeDatabase() (*datastore.Datastore, error) {
	if c.DBPath != MemoryDBPath {
		dbDir := filepath.Dir(c.expandPath(c.DBPath))
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	ds, err := datastore.New(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if c.DBPath != MemoryDBPath {
		if err := ApplyPragmaOptimizations(ds.DB); err != nil {
			_ = ds.Close()
			return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
		}
	}

	return ds, nil
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvGB parses a size such as "8GB" or "512MB" and returns it in gigabytes.
func getEnvGB(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return size.GBytes(), nil
}
