package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the agent's application configuration.
type Config struct {
	Environment string               `toml:"environment"` // "development" or "production"
	Server      ServerConfig         `toml:"server"`
	Logging     LoggingConfig        `toml:"logging"`
	FinSite     FinancialSiteConfig  `toml:"financial_site"`
	ObjectStore ObjectStoreConfig    `toml:"object_store"`
	Vision      VisionConfig         `toml:"vision"`
	Search      SearchConfig         `toml:"search"`
	Claude      ClaudeConfig         `toml:"claude"`
	Agent       AgentConfig          `toml:"agent"`
	Callback    CallbackConfig       `toml:"callback"`
}

type ServerConfig struct {
	Port         int    `toml:"port"`
	Host         string `toml:"host"`
	IngressToken string `toml:"ingress_token"` // bearer token required on POST /v1/tickers
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
}

// FinancialSiteConfig holds the credentials and base URL for the statement site
// the browser session logs into and navigates.
type FinancialSiteConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// ObjectStoreConfig addresses the bucket holding per-ticker workbooks.
type ObjectStoreConfig struct {
	BaseURL           string `toml:"base_url"`           // public-read download base
	UploadURL         string `toml:"upload_url"`         // authenticated upload endpoint
	Bucket            string `toml:"bucket"`             // bucket / prefix name
	ServiceCredential string `toml:"service_credential"` // client-credentials secret for uploads
	TokenURL          string `toml:"token_url"`          // OAuth2 token endpoint
}

// VisionConfig configures the multimodal extraction client (Gemini).
type VisionConfig struct {
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	MaxOutputTokens int    `toml:"max_output_tokens"` // must be >= 12000 per the extraction contract
	Timeout         string `toml:"timeout"`
	RateLimit       string `toml:"rate_limit"` // minimum interval between calls, e.g. "2s"
}

// SearchConfig configures the search-grounded corroboration client.
type SearchConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	Timeout   string `toml:"timeout"`
	RateLimit string `toml:"rate_limit"`
}

// ClaudeConfig configures the Anthropic chat model driving the agent loop.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
	Thinking    bool    `toml:"thinking"` // enable extended thinking
}

// AgentConfig bounds a single ticker's orchestrator run.
type AgentConfig struct {
	MaxIterations  int    `toml:"max_iterations"`   // default 15, valid range 5-18
	TickerTimeout  string `toml:"ticker_timeout"`   // wall-clock budget for one ticker, default "30m"
	CallTimeout    string `toml:"call_timeout"`     // default "30s"; not read by any client (vision, search, claude and callback each use their own timeout)
	WorkDir        string `toml:"work_dir"`         // parent directory for per-run working directories
}

// CallbackConfig configures the outbound status callback poster.
type CallbackConfig struct {
	BearerToken string `toml:"bearer_token"`
	RetryDelay  string `toml:"retry_delay"` // default "5s", one retry only
	Timeout     string `toml:"timeout"`
}

// NewDefaultConfig returns a configuration with production-sane defaults.
// Secrets are intentionally left blank and must come from a file, the
// environment, or CLI flags.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		ObjectStore: ObjectStoreConfig{
			Bucket: "statements",
		},
		Vision: VisionConfig{
			Model:           "gemini-2.5-pro",
			MaxOutputTokens: 12000,
			Timeout:         "30s",
			RateLimit:       "2s",
		},
		Search: SearchConfig{
			Model:     "sonar",
			BaseURL:   "https://api.perplexity.ai",
			Timeout:   "30s",
			RateLimit: "2s",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Timeout:     "2m",
			Temperature: 0,
			Thinking:    true,
		},
		Agent: AgentConfig{
			MaxIterations: 15,
			TickerTimeout: "30m",
			CallTimeout:   "30s",
			WorkDir:       "./data/runs",
		},
		Callback: CallbackConfig{
			RetryDelay: "5s",
			Timeout:    "30s",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env -> CLI.
// Later files override earlier ones. Pass no paths to load defaults plus env overrides only.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AGENT_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("AGENT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("AGENT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if token := os.Getenv("AGENT_INGRESS_TOKEN"); token != "" {
		config.Server.IngressToken = token
	}

	if level := os.Getenv("AGENT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if baseURL := os.Getenv("AGENT_FINSITE_BASE_URL"); baseURL != "" {
		config.FinSite.BaseURL = baseURL
	}
	if username := os.Getenv("AGENT_FINSITE_USERNAME"); username != "" {
		config.FinSite.Username = username
	}
	if password := os.Getenv("AGENT_FINSITE_PASSWORD"); password != "" {
		config.FinSite.Password = password
	}

	if baseURL := os.Getenv("AGENT_OBJECTSTORE_BASE_URL"); baseURL != "" {
		config.ObjectStore.BaseURL = baseURL
	}
	if uploadURL := os.Getenv("AGENT_OBJECTSTORE_UPLOAD_URL"); uploadURL != "" {
		config.ObjectStore.UploadURL = uploadURL
	}
	if cred := os.Getenv("AGENT_OBJECTSTORE_SERVICE_CREDENTIAL"); cred != "" {
		config.ObjectStore.ServiceCredential = cred
	}
	if tokenURL := os.Getenv("AGENT_OBJECTSTORE_TOKEN_URL"); tokenURL != "" {
		config.ObjectStore.TokenURL = tokenURL
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Vision.APIKey = apiKey
	}
	if apiKey := os.Getenv("AGENT_VISION_API_KEY"); apiKey != "" {
		config.Vision.APIKey = apiKey
	}

	if apiKey := os.Getenv("AGENT_SEARCH_API_KEY"); apiKey != "" {
		config.Search.APIKey = apiKey
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("AGENT_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}

	if maxIter := os.Getenv("AGENT_MAX_ITERATIONS"); maxIter != "" {
		if mi, err := strconv.Atoi(maxIter); err == nil {
			config.Agent.MaxIterations = mi
		}
	}

	if bearer := os.Getenv("AGENT_CALLBACK_BEARER_TOKEN"); bearer != "" {
		config.Callback.BearerToken = bearer
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config. Flags
// have the highest priority in the layering order.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks invariants that must hold before the server starts
// accepting work: max_iterations must stay within the 5-18 band the
// orchestrator's iteration budget was designed for.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 5 || c.Agent.MaxIterations > 18 {
		return fmt.Errorf("agent.max_iterations must be between 5 and 18, got %d", c.Agent.MaxIterations)
	}
	if c.Vision.MaxOutputTokens < 12000 {
		return fmt.Errorf("vision.max_output_tokens must be at least 12000, got %d", c.Vision.MaxOutputTokens)
	}
	return nil
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Duration parses a config duration string, falling back to def on error
// or an empty string.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
