package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmcdole/directus/internal/store"
)

const appName = "directus"

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the Directus server location
type ServerConfig struct {
	URL   string `mapstructure:"url"`
	Email string `mapstructure:"email"` // Last login (display only)
}

// AuthConfig holds session persistence settings
type AuthConfig struct {
	RefreshTokenFile string `mapstructure:"refresh_token_file"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // "json", "bolt" or "memory"
	Dir           string        `mapstructure:"dir"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	MemoryEntries int           `mapstructure:"memory_entries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`

	// Rotation of the log file
	MaxSize    int `mapstructure:"max_size"`    // megabytes before rotation
	MaxBackups int `mapstructure:"max_backups"` // rotated files to keep
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			RefreshTokenFile: filepath.Join(defaultDataPath(), "refresh_token"),
		},
		Cache: CacheConfig{
			Backend:       store.BackendJSON,
			Dir:           defaultCachePath(),
			MaxAge:        24 * time.Hour,
			MemoryEntries: store.DefaultMemoryEntries,
		},
		Logging: LoggingConfig{
			File:       filepath.Join(defaultDataPath(), appName+".log"),
			Level:      "INFO",
			MaxSize:    10,
			MaxBackups: 3,
		},
	}
}

// defaultDataPath returns the directory for logs, tokens and the cache
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", appName)
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	return filepath.Join(defaultDataPath(), "cache")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Defaults register every key so environment overrides apply to all of them
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.email", cfg.Server.Email)
	v.SetDefault("auth.refresh_token_file", cfg.Auth.RefreshTokenFile)
	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.max_age", cfg.Cache.MaxAge)
	v.SetDefault("cache.memory_entries", cfg.Cache.MemoryEntries)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)

	// Environment variable overrides, e.g. DIRECTUS_SERVER_URL
	v.SetEnvPrefix("DIRECTUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(defaultConfigPath(), ".")
}

// LoadConfigFrom loads config.yaml from the first of dirs that has one.
// A missing file is not an error.
func LoadConfigFrom(dirs ...string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the default location
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(defaultConfigPath(), cfg)
}

// SaveConfigTo writes cfg as dir/config.yaml
func SaveConfigTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.email", cfg.Server.Email)
	v.Set("auth.refresh_token_file", cfg.Auth.RefreshTokenFile)
	v.Set("cache.backend", cfg.Cache.Backend)
	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.max_age", cfg.Cache.MaxAge.String())
	v.Set("cache.memory_entries", cfg.Cache.MemoryEntries)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.max_size", cfg.Logging.MaxSize)
	v.Set("logging.max_backups", cfg.Logging.MaxBackups)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if a server URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// ClearServerConfig removes the server settings while preserving the others
func ClearServerConfig(cfg *Config) error {
	cfg.Server = ServerConfig{}
	return SaveConfig(cfg)
}

// CachePath returns the expanded cache directory
func (c *Config) CachePath() (string, error) {
	return ExpandHome(c.Cache.Dir)
}

// ClearCache removes all cached data of every server
func ClearCache(cfg *Config) error {
	cachePath, err := cfg.CachePath()
	if err != nil {
		return err
	}
	if err := os.RemoveAll(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetCachePath returns the default cache directory path
func GetCachePath() string {
	return defaultCachePath()
}
