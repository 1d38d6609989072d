package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeStrict   = "strict"
	ModeDegraded = "degraded"

	defaultJWTSecret = "dev-secret"
)

type Config struct {
	Env            string        `yaml:"env"`
	Port           string        `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	CookieName     string        `yaml:"cookie_name"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	AllowQueryAuth bool          `yaml:"allow_query_token"`
	CORSOrigins    []string      `yaml:"cors_origins"`

	// AdminBootstrapSecret enables POST /admin/bootstrap when set.
	AdminBootstrapSecret string `yaml:"admin_bootstrap_secret"`

	DatabaseURL string `yaml:"database_url"`
	StorageMode string `yaml:"storage_mode"`

	Payments  PaymentsConfig  `yaml:"payments"`
	Responder ResponderConfig `yaml:"responder"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PaymentsConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	APIKey     string        `yaml:"api_key"`
	Currency   string        `yaml:"currency"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ResponderConfig selects the chat auto-reply backend: echo, ollama or none.
type ResponderConfig struct {
	Kind          string        `yaml:"kind"`
	OllamaBaseURL string        `yaml:"ollama_base_url"`
	OllamaModel   string        `yaml:"ollama_model"`
	Timeout       time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds the configuration from environment variables and then applies
// the YAML file at path on top, when path is not empty.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:       getDuration("TOKEN_TTL", 7*24*time.Hour),
		CookieName:     getEnv("COOKIE_NAME", "token"),
		CookieSecure:   ParseBool(os.Getenv("COOKIE_SECURE")),
		AllowQueryAuth: ParseBool(os.Getenv("ALLOW_QUERY_TOKEN")),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		DatabaseURL:    databaseURL(),
		StorageMode:    getEnv("STORAGE_MODE", ModeDegraded),

		AdminBootstrapSecret: os.Getenv("ADMIN_BOOTSTRAP_SECRET"),

		Payments: PaymentsConfig{
			GatewayURL: os.Getenv("PAYMENT_GATEWAY_URL"),
			APIKey:     os.Getenv("PAYMENT_API_KEY"),
			Currency:   getEnv("PAYMENT_CURRENCY", "usd"),
			Timeout:    getDuration("PAYMENT_TIMEOUT", 10*time.Second),
		},
		Responder: ResponderConfig{
			Kind:          getEnv("RESPONDER", "echo"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2"),
			Timeout:       getDuration("RESPONDER_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "test"
}

func (c *Config) Strict() bool {
	return c.StorageMode == ModeStrict
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be changed outside development"))
		}
		if c.AllowQueryAuth {
			errs = append(errs, errors.New("ALLOW_QUERY_TOKEN is only allowed in development"))
		}
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	switch c.StorageMode {
	case ModeStrict, ModeDegraded:
	default:
		errs = append(errs, fmt.Errorf("unknown storage mode %q", c.StorageMode))
	}
	switch c.Responder.Kind {
	case "echo", "ollama", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown responder %q", c.Responder.Kind))
	}
	if c.Payments.Timeout <= 0 {
		errs = append(errs, errors.New("payment timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ParseBool accepts the usual truthy spellings; anything else is false.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		getEnv("DB_PORT", "5432"),
		os.Getenv("DB_NAME"),
	)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
