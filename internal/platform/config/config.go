package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultAddr          = ":8080"
	DefaultPortalBaseURL = "https://api.portaldatransparencia.gov.br/api-de-dados"
	DefaultPortalTimeout = 15 * time.Second
	DefaultLLMEndpoint   = "https://api.openai.com/v1/chat/completions"
	DefaultLLMModel      = "gpt-3.5-turbo"
	DefaultTemperature   = 0.5
	DefaultMaxTokens     = 2000
	DefaultLLMTimeout    = 60 * time.Second

	// MinTimeout rejects unitless durations such as PORTAL_TIMEOUT=15, which parse as nanoseconds.
	MinTimeout = 100 * time.Millisecond
)

// Config is the full runtime configuration, built once in main and passed
// explicitly to constructors.
type Config struct {
	Server   Server
	Portal   Portal
	Narrator Narrator
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Portal configures the Portal da Transparência registry clients.
// An empty APIKey is allowed at startup; lookups then fail with a configuration error.
type Portal struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Narrator configures the chat-completion provider used for compliance opinions.
type Narrator struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Log configures the zap logger.
type Log struct {
	Level  string
	Format string
}

// Load reads an optional .env file, then environment variables, and applies defaults.
// Variables already present in the environment win over the .env file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromViper(newViper())
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: Server{Addr: v.GetString("addr")},
		Portal: Portal{
			APIKey:  v.GetString("portal_api_key"),
			BaseURL: v.GetString("portal_base_url"),
			Timeout: v.GetDuration("portal_timeout"),
		},
		Narrator: Narrator{
			APIKey:      v.GetString("openai_api_key"),
			Endpoint:    v.GetString("openai_endpoint"),
			Model:       v.GetString("openai_model"),
			Temperature: v.GetFloat64("openai_temperature"),
			MaxTokens:   v.GetInt("openai_max_tokens"),
			Timeout:     v.GetDuration("openai_timeout"),
		},
		Log: Log{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Portal.Timeout < MinTimeout {
		return fmt.Errorf("PORTAL_TIMEOUT must be at least %s with a unit (e.g. 15s), got %s", MinTimeout, c.Portal.Timeout)
	}
	if c.Narrator.Timeout < MinTimeout {
		return fmt.Errorf("OPENAI_TIMEOUT must be at least %s with a unit (e.g. 60s), got %s", MinTimeout, c.Narrator.Timeout)
	}
	if c.Narrator.Temperature < 0 || c.Narrator.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be within [0, 2], got %v", c.Narrator.Temperature)
	}
	if c.Narrator.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", c.Narrator.MaxTokens)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("portal_base_url", DefaultPortalBaseURL)
	v.SetDefault("portal_timeout", DefaultPortalTimeout)
	v.SetDefault("openai_endpoint", DefaultLLMEndpoint)
	v.SetDefault("openai_model", DefaultLLMModel)
	v.SetDefault("openai_temperature", DefaultTemperature)
	v.SetDefault("openai_max_tokens", DefaultMaxTokens)
	v.SetDefault("openai_timeout", DefaultLLMTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// First name wins; API_KEY is the legacy name of the portal key.
	_ = v.BindEnv("addr", "DILIGENCE_ADDR")
	_ = v.BindEnv("portal_api_key", "PORTAL_API_KEY", "API_KEY")
	_ = v.BindEnv("portal_base_url", "PORTAL_BASE_URL")
	_ = v.BindEnv("portal_timeout", "PORTAL_TIMEOUT")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai_endpoint", "OPENAI_ENDPOINT")
	_ = v.BindEnv("openai_model", "OPENAI_MODEL")
	_ = v.BindEnv("openai_temperature", "OPENAI_TEMPERATURE")
	_ = v.BindEnv("openai_max_tokens", "OPENAI_MAX_TOKENS")
	_ = v.BindEnv("openai_timeout", "OPENAI_TIMEOUT")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")

	return v
}
