package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for LeaseLens.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Extract  ExtractConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         int
	Env          string
	WriteTimeout time.Duration
	JobTimeout   time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	SessionTTL   time.Duration
	JobStatusTTL time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Temperature      float64
	MaxTokens        int
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
	APIKey  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type ExtractConfig struct {
	Strategy string
}

type LogConfig struct {
	Level  string
	Format string
}

// MaxSyncModelCalls is the most model calls a single synchronous request
// makes: issue detection followed by up to five rewrites.
const MaxSyncModelCalls = 6

const writeTimeoutSlack = 30 * time.Second

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
}

var validStrategies = map[string]bool{
	"greedy":   true,
	"hardened": true,
}

// Load reads configuration from environment variables and validates value
// ranges. Provider selection and credentials are checked by RequireAI and
// server-only settings by RequireServer, so each binary asks only for what it uses.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         envInt("LEASELENS_PORT", 8080),
			Env:          envString("LEASELENS_ENV", "development"),
			WriteTimeout: envDuration("LEASELENS_WRITE_TIMEOUT", 0),
			JobTimeout:   envDuration("ANALYSIS_JOB_TIMEOUT", 15*time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			SessionTTL:   envDuration("SESSION_TTL", 24*time.Hour),
			JobStatusTTL: envDuration("JOB_STATUS_TTL", 30*time.Minute),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "anthropic"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			Temperature:      envFloat("AI_TEMPERATURE", 0.2),
			MaxTokens:        envInt("AI_MAX_TOKENS", 4096),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
				APIKey:  os.Getenv("VLLM_API_KEY"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
		},
		Extract: ExtractConfig{
			Strategy: envString("EXTRACT_STRATEGY", "hardened"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.MinWriteTimeout()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2, got %v", c.AI.Temperature)
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", c.AI.MaxTokens)
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}

	if !validStrategies[c.Extract.Strategy] {
		return fmt.Errorf("EXTRACT_STRATEGY must be one of greedy, hardened; got %q", c.Extract.Strategy)
	}

	return nil
}

// RequireAI checks the provider selection and its credentials. Binaries that
// never call a model, such as key administration, skip it.
func (c *Config) RequireAI() error {
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}
	return nil
}

// MinWriteTimeout is the shortest server write timeout that still lets the
// slowest synchronous endpoint answer when every model call runs to the
// inference timeout.
func (c *Config) MinWriteTimeout() time.Duration {
	return time.Duration(MaxSyncModelCalls)*c.AI.InferenceTimeout + writeTimeoutSlack
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.Server.JobTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_JOB_TIMEOUT must be positive")
	}
	if floor := c.MinWriteTimeout(); c.Server.WriteTimeout < floor {
		return fmt.Errorf("LEASELENS_WRITE_TIMEOUT must be at least %s (%d model calls of AI_INFERENCE_TIMEOUT_SECS plus %s), got %s",
			floor, MaxSyncModelCalls, writeTimeoutSlack, c.Server.WriteTimeout)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("LEASELENS_PORT must be a valid port, got %d", c.Server.Port)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
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
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
