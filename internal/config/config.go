package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. They never come from the YAML file.
const (
	EnvFilloutAPIKey = "FILLOUT_API_KEY"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvWebhookSecret = "WEBHOOK_SECRET"
)

const (
	DefaultFilloutBaseURL      = "https://api.fillout.com/v1/api"
	DefaultPageSize            = 150
	DefaultMaxConcurrentWrites = 8
	DefaultRequestTimeout      = 30 * time.Second
)

// FilloutConfig configures access to the forms provider
type FilloutConfig struct {
	BaseURL  string        `yaml:"baseURL,omitempty" validate:"omitempty,url"`
	FormID   string        `yaml:"formID" validate:"required"`
	PageSize int           `yaml:"pageSize,omitempty" validate:"omitempty,min=1,max=150"`
	Timeout  time.Duration `yaml:"timeout,omitempty" validate:"min=1s"`
	APIKey   string        `yaml:"-" validate:"required"`
}

// DatabaseConfig selects and configures the submission store
type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"required,oneof=postgres memory"`
	MaxConns int32  `yaml:"maxConns,omitempty" validate:"omitempty,min=1"`
	URL      string `yaml:"-" validate:"required_if=Driver postgres"`
}

// SyncConfig configures periodic fetch-and-reconcile
type SyncConfig struct {
	// Schedule is an RRULE, e.g. "FREQ=MINUTELY;INTERVAL=15"
	Schedule            string `yaml:"schedule" validate:"required"`
	MaxConcurrentWrites int    `yaml:"maxConcurrentWrites,omitempty" validate:"omitempty,min=1"`
}

// ServerConfig configures the webhook HTTP server
type ServerConfig struct {
	Addr          string `yaml:"addr" validate:"required"`
	WebhookSecret string `yaml:"-"`
}

// NotificationsConfig configures the new-order digest email
type NotificationsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	To              string `yaml:"to,omitempty" validate:"required_if=Enabled true,omitempty,email"`
	Sender          string `yaml:"sender,omitempty" validate:"required_if=Enabled true,omitempty,email"`
	CredentialsFile string `yaml:"credentialsFile,omitempty" validate:"required_if=Enabled true"`
}

// Config represents the application configuration
type Config struct {
	Fillout       FilloutConfig       `yaml:"fillout"`
	Database      DatabaseConfig      `yaml:"database"`
	Sync          SyncConfig          `yaml:"sync"`
	Server        ServerConfig        `yaml:"server"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
	LogDir        string              `yaml:"logDir,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads .env.<env> and .env if present, then the config file for env.
// For example, env="prod" looks for "cake_orders_config.prod.yaml".
func LoadWithEnv(env string) (*Config, error) {
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads the config file at path, fills secrets from the environment, applies defaults and validates
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Fillout.APIKey = os.Getenv(EnvFilloutAPIKey)
	cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	cfg.Server.WebhookSecret = os.Getenv(EnvWebhookSecret)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks the sync schedule rrule
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := rrule.StrToRRule(cfg.Sync.Schedule); err != nil {
		return fmt.Errorf("invalid rrule in sync.schedule: %w", err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Fillout.BaseURL == "" {
		cfg.Fillout.BaseURL = DefaultFilloutBaseURL
	}
	if cfg.Fillout.PageSize == 0 {
		cfg.Fillout.PageSize = DefaultPageSize
	}
	if cfg.Fillout.Timeout == 0 {
		cfg.Fillout.Timeout = DefaultRequestTimeout
	}
	if cfg.Sync.MaxConcurrentWrites == 0 {
		cfg.Sync.MaxConcurrentWrites = DefaultMaxConcurrentWrites
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
}

// loadDotEnv reads .env.<env> then .env. Variables already set in the process win.
func loadDotEnv(env string) error {
	files := []string{".env"}
	if env != "" {
		files = append([]string{".env." + env}, files...)
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// findConfigFile searches for the config file in the current directory, then the home directory
func findConfigFile(env string) (string, error) {
	configFileName := "cake_orders_config.yaml"
	if env != "" {
		configFileName = "cake_orders_config." + env + ".yaml"
	}

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", configFileName)
}
