// Package config handles application configuration using Viper.
// Values come from defaults, then an optional YAML file, then environment
// variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// DefaultSentinel is the prompt context used while the journal is empty.
const DefaultSentinel = "Tidak ada data sebelumnya."

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Image     ImageConfig     `mapstructure:"image"`
	LLM       LLMConfig       `mapstructure:"llm"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	// ExportDir receives archived journal exports when MinIO is disabled.
	ExportDir string      `mapstructure:"export_dir"`
	MinIO     MinIOConfig `mapstructure:"minio"`
}

type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

type JournalConfig struct {
	Sentinel string `mapstructure:"sentinel"`
	// Path is the journal file the CLI restores from and exports back to.
	Path string `mapstructure:"path"`
}

type ImageConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
}

type LLMConfig struct {
	Timeout   time.Duration  `mapstructure:"timeout"`
	MaxTokens int64          `mapstructure:"max_tokens"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Deepseek  ProviderConfig `mapstructure:"deepseek"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds the preconfigured credential and an optional
// endpoint override for one provider. An empty BaseURL means the public API.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// bareKeyEnv maps provider credential keys to the conventional environment
// variables each vendor documents.
var bareKeyEnv = map[string]string{
	"llm.gemini.api_key":    "GEMINI_API_KEY",
	"llm.openai.api_key":    "OPENAI_API_KEY",
	"llm.deepseek.api_key":  "DEEPSEEK_API_KEY",
	"llm.anthropic.api_key": "ANTHROPIC_API_KEY",
}

// Load reads configuration from a YAML file and environment variables.
// An empty configPath searches for config.yaml in . and ./config and is
// not an error when none exists.
// In Go, functions return errors as the last return value, and callers must check them.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/wyckoff-journal.db")
	v.SetDefault("storage.export_dir", "./storage/exports")
	v.SetDefault("storage.minio.enabled", false)
	v.SetDefault("storage.minio.bucket", "wyckoff-journal")
	v.SetDefault("catalog.dir", "./config")
	v.SetDefault("journal.sentinel", DefaultSentinel)
	v.SetDefault("journal.path", "./storage/journal.json")
	v.SetDefault("image.max_dimension", 2048)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:8501"})
	v.SetDefault("rate_limit.requests_per_second", 0.5)
	v.SetDefault("rate_limit.burst", 3)
	v.SetDefault("log.level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Only "no config.yaml found by search" is tolerated. A file that
	// exists but does not parse is an error whether or not it was named.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// WYCKOFF_ prefix + nested keys: WYCKOFF_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("WYCKOFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range bareKeyEnv {
		// The prefixed name stays first so WYCKOFF_LLM_GEMINI_API_KEY wins.
		if err := v.BindEnv(key, "WYCKOFF_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Credentials returns the preconfigured API key per provider name.
// Providers without a key are omitted.
func (l LLMConfig) Credentials() map[string]string {
	creds := make(map[string]string, len(model.AllProviders))
	for name, pc := range l.providers() {
		if pc.APIKey != "" {
			creds[name] = pc.APIKey
		}
	}
	return creds
}

// Provider returns the settings for one provider by its canonical name.
func (l LLMConfig) Provider(name string) (ProviderConfig, bool) {
	pc, ok := l.providers()[name]
	return pc, ok
}

func (l LLMConfig) providers() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		model.ProviderGemini:    l.Gemini,
		model.ProviderOpenAI:    l.OpenAI,
		model.ProviderDeepseek:  l.Deepseek,
		model.ProviderAnthropic: l.Anthropic,
	}
}
