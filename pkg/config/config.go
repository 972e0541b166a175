package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevSessionSecret is the session signing secret used when none is configured.
const DevSessionSecret = "dev-session-secret-change-in-production"

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Clients ClientsConfig
	Session SessionConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// ClientsConfig configures the Diagnostic and Treatment Plan API clients.
// DiagnoURL, SolutionsURL, Mock and Debug are read from the unprefixed
// API_DIAGNO, API_SOLUTIONS, MOCK and DEBUG variables.
type ClientsConfig struct {
	DiagnoURL    string        `mapstructure:"diagno_url"`
	SolutionsURL string        `mapstructure:"solutions_url"`
	Mock         bool          `mapstructure:"mock"`
	Debug        bool          `mapstructure:"debug"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CatalogTTL   time.Duration `mapstructure:"catalog_ttl"`
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	Secret        string        `mapstructure:"secret"`
	TTL           time.Duration `mapstructure:"ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

// Validate checks that the session configuration is usable for the given server.
func (c *SessionConfig) Validate(server *ServerConfig) error {
	if c.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if server.IsProductionLike() {
		if c.Secret == "" || c.Secret == DevSessionSecret {
			return errors.New("VITISCAN_SESSION_SECRET must be set to a secure value in " + server.Environment)
		}
	}
	return nil
}

// LoadWithValidation loads configuration and validates it for the current environment.
// Use this function in main() for fail-fast behavior.
func LoadWithValidation(serviceName string) (*Config, error) {
	cfg, err := loadConfig(serviceName, ".env")
	if err != nil {
		return nil, err
	}

	if err := cfg.Session.Validate(&cfg.Server); err != nil {
		return nil, fmt.Errorf("session configuration error: %w", err)
	}
	if cfg.Clients.Timeout <= 0 {
		return nil, errors.New("clients timeout must be positive")
	}

	return cfg, nil
}

// loadConfig is the internal configuration loader
func loadConfig(serviceName string, envFile string) (*Config, error) {
	// Values already present in the environment win over the .env file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VITISCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The backend URLs and mode flags keep their historical unprefixed names.
	for key, env := range map[string]string{
		"clients.diagno_url":    "API_DIAGNO",
		"clients.solutions_url": "API_SOLUTIONS",
		"clients.mock":          "MOCK",
		"clients.debug":         "DEBUG",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/vitiscan")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.Environment = strings.ToLower(cfg.Server.Environment)
	cfg.Clients.DiagnoURL = cleanURL(cfg.Clients.DiagnoURL)
	cfg.Clients.SolutionsURL = cleanURL(cfg.Clients.SolutionsURL)

	return &cfg, nil
}

// cleanURL strips quotes that docker env files tend to leave around values
// and any trailing slash.
func cleanURL(raw string) string {
	return strings.TrimRight(strings.ReplaceAll(strings.TrimSpace(raw), `"`, ""), "/")
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8501"})

	// Backend API defaults
	v.SetDefault("clients.diagno_url", "http://localhost:8000")
	v.SetDefault("clients.solutions_url", "http://localhost:9000")
	v.SetDefault("clients.mock", true)
	v.SetDefault("clients.debug", false)
	v.SetDefault("clients.timeout", 60*time.Second)
	v.SetDefault("clients.catalog_ttl", 1*time.Hour)

	// Session defaults
	v.SetDefault("session.secret", DevSessionSecret)
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cookie_name", "vitiscan_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.max_upload_size", 20<<20)
}
