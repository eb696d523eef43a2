// Package config provides configuration management using viper.
// It supports loading from YAML files, a local .env file and environment variable overrides.
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

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Points    PointsConfig    `mapstructure:"points"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds the community chats the bot answers in.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// StorageConfig holds the S3-compatible bucket used for ticket photos.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// PointsConfig holds the base point rates of every rewarded action.
type PointsConfig struct {
	Report        int64 `mapstructure:"report"`
	Accept        int64 `mapstructure:"accept"`
	CleanPartial  int64 `mapstructure:"clean_partial"`
	CleanComplete int64 `mapstructure:"clean_complete"`
	Validate      int64 `mapstructure:"validate"`
}

// EngineConfig holds ticket engine tuning.
type EngineConfig struct {
	// Timezone decides which calendar day an activity belongs to for streaks.
	Timezone           string        `mapstructure:"timezone"`
	MaxRetries         int           `mapstructure:"max_retries"`
	PhotoDeleteTimeout time.Duration `mapstructure:"photo_delete_timeout"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Location resolves the configured timezone, falling back to UTC.
func (e *EngineConfig) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, STORAGE_BUCKET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cleanup")
	v.SetDefault("database.name", "cleanup")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "cleanup-photos")

	// Point rates
	v.SetDefault("points.report", 50)
	v.SetDefault("points.accept", 10)
	v.SetDefault("points.clean_partial", 100)
	v.SetDefault("points.clean_complete", 200)
	v.SetDefault("points.validate", 25)

	// Engine defaults
	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.photo_delete_timeout", "10s")

	v.SetDefault("log.level", "info")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
