package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix scopes environment overrides: HAIRHUB_SERVER_ADDR sets server.addr.
const EnvPrefix = "HAIRHUB_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	LLM     LLMConfig     `koanf:"llm"`
	Catalog CatalogConfig `koanf:"catalog"`
	Log     LogConfig     `koanf:"log"`
	Tracing TracingConfig `koanf:"tracing"`
	Report  ReportConfig  `koanf:"report"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes" validate:"gt=0"`
	RateLimit      string        `koanf:"rate_limit" validate:"required"` // limiter format, e.g. "30-M"
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

type LLMConfig struct {
	Provider  string `koanf:"provider" validate:"oneof=anthropic gemini"`
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key"`
	MaxTokens int64  `koanf:"max_tokens" validate:"gt=0"`
}

type CatalogConfig struct {
	// Path is an optional YAML catalog replacing the embedded one.
	Path string `koanf:"path"`
	// SQLitePath, when set, takes priority over Path.
	SQLitePath string `koanf:"sqlite_path"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `koanf:"service_name" validate:"required"`
	Insecure    bool   `koanf:"insecure"`
}

type ReportConfig struct {
	ChromePath string        `koanf:"chrome_path"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 10 << 20,
			RateLimit:      "30-M",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "anthropic",
			MaxTokens: 2048,
		},
		Log: LogConfig{Level: "info"},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "hairhub",
			Insecure:    true,
		},
		Report: ReportConfig{Timeout: 45 * time.Second},
	}
}

// Load layers defaults, an optional YAML file and HAIRHUB_* environment
// variables, in that order. A .env file in the working directory is read
// first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := k.Load(rawMap(raw), nil); err != nil {
			return nil, fmt.Errorf("apply config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKeyFromEnv(cfg.LLM.Provider)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// transformEnvKey maps HAIRHUB_SECTION_SOME_KEY to section.some_key.
func transformEnvKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return "", nil
	}
	return section + "." + rest, value
}

// providerKeyFromEnv falls back to the vendor's conventional variable.
func providerKeyFromEnv(provider string) string {
	switch provider {
	case "gemini":
		if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
			return v
		}
		return strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
}

type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap does not support ReadBytes")
}
