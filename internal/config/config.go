// Package config reads ledger settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/dvloznov/ledger/internal/storage"
	"github.com/dvloznov/ledger/internal/tagging"
	"github.com/joho/godotenv"
)

// Backend names accepted by LEDGER_BACKEND.
const (
	BackendJSON   = storage.BackendJSON
	BackendSQLite = storage.BackendSQLite
)

// Config holds every setting read from the environment.
type Config struct {
	// Storage
	Backend      string
	DatabasePath string
	SQLiteDBPath string

	// HTTP server
	Port     string
	LogLevel string

	// Model features
	AIEnabled        bool
	AIAutoTag        bool
	AIAutoTagWithLLM bool
	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	LLMTimeout       time.Duration

	// Backups
	BackupEnabled      bool
	BackupPath         string
	BackupIntervalDays int
	BackupKeep         int
	BackupBucket       string

	// Integrations
	BQProject        string
	BQDataset        string
	NotionToken      string
	NotionDatabaseID string
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string

	// Mirror worker
	MirrorInterval time.Duration

	// Command jobs
	WorkerCount int
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Backend:      strings.ToLower(getEnv("LEDGER_BACKEND", BackendJSON)),
		DatabasePath: getEnv("DATABASE_PATH", "./data/transactions.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),

		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AIEnabled:        getEnvBool("AI_ENABLED", false),
		AIAutoTag:        getEnvBool("AI_AUTO_TAG", true),
		AIAutoTagWithLLM: getEnvBool("AI_AUTO_TAG_WITH_LLM", false),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", llm.DefaultModelName),
		LLMTimeout:       getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		BackupEnabled:      getEnvBool("BACKUP_ENABLED", true),
		BackupPath:         getEnv("BACKUP_PATH", "./data/backups"),
		BackupIntervalDays: getEnvInt("BACKUP_INTERVAL_DAYS", 7),
		BackupKeep:         getEnvInt("BACKUP_KEEP", 10),
		BackupBucket:       getEnv("BACKUP_BUCKET", ""),

		BQProject:        getEnv("BQ_PROJECT", ""),
		BQDataset:        getEnv("BQ_DATASET", "ledger"),
		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:        getEnv("AMQP_QUEUE", "ledger-mirror"),

		MirrorInterval: getEnvDuration("MIRROR_INTERVAL", 15*time.Minute),

		WorkerCount: getEnvInt("WORKER_COUNT", 1),
	}
}

// LLM returns the model settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Enabled: c.AIEnabled,
		BaseURL: c.LLMBaseURL,
		APIKey:  c.LLMAPIKey,
		Model:   c.LLMModel,
		Timeout: c.LLMTimeout,
	}
}

// Tagging returns the tag suggester settings. The model step needs AI_ENABLED as well.
func (c *Config) Tagging() tagging.Config {
	return tagging.Config{UseModel: c.AIEnabled && c.AIAutoTagWithLLM}
}

// Command returns the interpreter settings.
func (c *Config) Command() command.Config {
	return command.Config{AutoTag: c.AIAutoTag}
}

// NotionEnabled reports whether both Notion settings are present.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Backend {
	case BackendJSON:
		if c.DatabasePath == "" {
			errors = append(errors, "DATABASE_PATH cannot be empty when using json backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLITE_DB_PATH cannot be empty when using sqlite backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of [%s %s]", c.Backend, BackendJSON, BackendSQLite))
	}

	if c.LLMTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be at least 1 second", c.LLMTimeout))
	}
	if c.LLMBaseURL != "" {
		if u, err := url.Parse(c.LLMBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid LLM base URL '%s'", c.LLMBaseURL))
		}
	}

	if c.BackupEnabled {
		if c.BackupPath == "" {
			errors = append(errors, "BACKUP_PATH cannot be empty when backups are enabled")
		}
		if c.BackupIntervalDays < 1 {
			errors = append(errors, fmt.Sprintf("invalid backup interval %d: must be at least 1 day", c.BackupIntervalDays))
		}
		if c.BackupKeep < 1 {
			errors = append(errors, fmt.Sprintf("invalid backup retention %d: must keep at least 1 snapshot", c.BackupKeep))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if (c.NotionToken == "") != (c.NotionDatabaseID == "") {
		errors = append(errors, "NOTION_TOKEN and NOTION_DATABASE_ID must be set together")
	}

	if c.MirrorInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at least 1 minute", c.MirrorInterval))
	}

	if c.WorkerCount < 1 || c.WorkerCount > 32 {
		errors = append(errors, fmt.Sprintf("invalid worker count %d: must be between 1 and 32", c.WorkerCount))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
