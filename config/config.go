package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port int
	Host string
	Env  string // "development" or "production"

	// Data directory (snapshot, database)
	DataDir string

	// Root directory holding per-project transcript subdirectories
	TranscriptsDir string

	// Snapshot file for the session index
	SnapshotPath string

	// Database
	DatabasePath string

	// Engine tuning
	DebounceWindow  time.Duration // min spacing between accepted passes per session
	ReadRetries     int           // attempts when a partial line is hit mid-append
	ReadBackoff     time.Duration // sleep between read retries
	InvokeTimeout   time.Duration // external tool invocation deadline
	KillGracePeriod time.Duration // wait after SIGINT before SIGKILL

	// External tool binary
	ToolBinary string

	// Meilisearch (optional session search mirror)
	MeiliHost   string
	MeiliAPIKey string
	MeiliIndex  string

	// Debug settings
	DBLogQueries bool
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// load reads configuration from environment variables
func load() *Config {
	dataDir := getEnv("SESSIOND_DATA_DIR", "./data")
	appDir := filepath.Join(dataDir, "app", "sessiond")

	homeDir, _ := os.UserHomeDir()
	defaultTranscripts := filepath.Join(homeDir, ".claude", "projects")

	return &Config{
		// Server
		Port: getEnvInt("PORT", 12400),
		Host: getEnv("HOST", "0.0.0.0"),
		Env:  getEnv("ENV", "development"),

		// Data
		DataDir:        dataDir,
		TranscriptsDir: getEnv("SESSIOND_ROOT_DIR", defaultTranscripts),
		SnapshotPath:   getEnv("SESSIOND_SNAPSHOT_PATH", filepath.Join(appDir, "sessions-snapshot.json")),
		DatabasePath:   filepath.Join(appDir, "database.sqlite"),

		// Engine
		DebounceWindow:  getEnvDurationMs("SESSIOND_DEBOUNCE_MS", 200),
		ReadRetries:     getEnvInt("SESSIOND_READ_RETRIES", 3),
		ReadBackoff:     getEnvDurationMs("SESSIOND_READ_BACKOFF_MS", 50),
		InvokeTimeout:   time.Duration(getEnvInt("SESSIOND_INVOKE_TIMEOUT_S", 300)) * time.Second,
		KillGracePeriod: time.Duration(getEnvInt("SESSIOND_KILL_GRACE_S", 5)) * time.Second,

		ToolBinary: getEnv("SESSIOND_TOOL_BINARY", "claude"),

		// Meilisearch
		MeiliHost:   getEnv("MEILI_HOST", ""),
		MeiliAPIKey: getEnv("MEILI_API_KEY", ""),
		MeiliIndex:  getEnv("MEILI_INDEX", "sessiond_sessions"),

		// Debug
		DBLogQueries: getEnv("DB_LOG_QUERIES", "") == "1",
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
