package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mealtrack server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Offline  OfflineConfig
	Reminder ReminderConfig
	Queue    QueueConfig
}

type ServerConfig struct {
	Port              int
	Env               string
	RequestsPerMinute int
}

type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	URL             string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OfflineConfig controls the app-shell cache in front of the static bundle origin.
type OfflineConfig struct {
	OriginURL    string
	Generation   string
	Manifest     []string
	FetchTimeout time.Duration
	MaxBodyBytes int    // larger origin responses are passed through, never cached
	Storage      string // redis or memory
}

type ReminderConfig struct {
	Enabled     bool
	Time        string
	DefaultTime string
}

type QueueConfig struct {
	FeedSize int
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
}

// DefaultManifest is the fixed list of entry-point resources stored at install time.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.webmanifest",
	"/icons/icon-192.png",
	"/icons/icon-512.png",
}

// fileValues holds ENV_NAME: value pairs read from MEALTRACK_CONFIG.
// Real environment variables always win over the file.
var fileValues map[string]string

// Load reads configuration from environment variables (and the optional YAML
// file named by MEALTRACK_CONFIG) and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	values, err := readFile(os.Getenv("MEALTRACK_CONFIG"))
	if err != nil {
		return nil, err
	}
	fileValues = values

	cfg := &Config{
		Server: ServerConfig{
			Port:              envInt("MEALTRACK_PORT", 8080),
			Env:               envString("MEALTRACK_ENV", "development"),
			RequestsPerMinute: envInt("MEALTRACK_REQUESTS_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			Driver:          envString("DATABASE_DRIVER", "postgres"),
			URL:             envString("DATABASE_URL", ""),
			SQLitePath:      envString("SQLITE_PATH", "mealtrack.db"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: envString("REDIS_URL", ""),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", ""),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llava"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  envString("OPENAI_API_KEY", ""),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  envString("ANTHROPIC_API_KEY", ""),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		Offline: OfflineConfig{
			OriginURL:    envString("APP_ORIGIN_URL", ""),
			Generation:   envString("CACHE_GENERATION", "mealtrack-v1"),
			Manifest:     envList("OFFLINE_MANIFEST", DefaultManifest),
			FetchTimeout: envDuration("OFFLINE_FETCH_TIMEOUT", 10*time.Second),
			MaxBodyBytes: envInt("OFFLINE_MAX_BODY_BYTES", 32<<20),
			Storage:      envString("OFFLINE_STORAGE", "redis"),
		},
		Reminder: ReminderConfig{
			Enabled:     envBool("REMINDER_ENABLED", true),
			Time:        envString("REMINDER_TIME", "19:00"),
			DefaultTime: envString("REMINDER_DEFAULT_TIME", "19:00"),
		},
		Queue: QueueConfig{
			FeedSize: envInt("NOTIFICATION_FEED_SIZE", 50),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER is postgres")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DATABASE_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of postgres, sqlite; got %q", c.Database.Driver)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Offline.OriginURL == "" {
		return fmt.Errorf("APP_ORIGIN_URL is required")
	}
	if !strings.HasPrefix(c.Offline.OriginURL, "http://") && !strings.HasPrefix(c.Offline.OriginURL, "https://") {
		return fmt.Errorf("APP_ORIGIN_URL must start with http:// or https://, got %q", c.Offline.OriginURL)
	}
	if c.Offline.Generation == "" {
		return fmt.Errorf("CACHE_GENERATION must not be empty")
	}
	if c.Offline.Storage != "redis" && c.Offline.Storage != "memory" {
		return fmt.Errorf("OFFLINE_STORAGE must be one of redis, memory; got %q", c.Offline.Storage)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}
	// Missing cloud API keys are not fatal here: each analysis job fails with a
	// configuration error until the key is supplied.

	return nil
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileValues[key]
}

func envString(key, defaultVal string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := lookup(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := lookup(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := lookup(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envList(key string, defaultVal []string) []string {
	v := lookup(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
