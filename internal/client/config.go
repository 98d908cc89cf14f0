package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
)

// Settings are read from the config file and SLOKA_* environment variables.
type Settings struct {
	ServerURL   string          `mapstructure:"server_url"`
	LogMode     string          `mapstructure:"log_mode"`
	LogLevel    string          `mapstructure:"log_level"`
	HTTPTimeout time.Duration   `mapstructure:"http_timeout"`
	StateFile   string          `mapstructure:"state_file"`
	Cache       CacheSettings   `mapstructure:"cache"`
	Preview     PreviewSettings `mapstructure:"preview"`
}

type CacheSettings struct {
	// Backend is "memory" or "redis".
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type PreviewSettings struct {
	PDFWait   time.Duration `mapstructure:"pdf_wait"`
	MediaWait time.Duration `mapstructure:"media_wait"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetDefault("server_url", transport.DefaultServerURL)
	v.SetDefault("log_mode", "dev")
	v.SetDefault("log_level", "warn")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("state_file", "")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("preview.pdf_wait", 4*time.Second)
	v.SetDefault("preview.media_wait", 3*time.Second)

	v.SetEnvPrefix("SLOKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	return v
}

// LoadSettings reads path if it exists, after loading an optional .env file.
func LoadSettings(path string) (Settings, error) {
	_ = godotenv.Load()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	s.ServerURL = strings.TrimSuffix(s.ServerURL, "/")
	if s.StateFile == "" {
		s.StateFile = filepath.Join(filepath.Dir(path), "state.json")
	}
	return s, nil
}

// SetServerURL persists the server URL, keeping any other keys in the file.
func SetServerURL(path, url string) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	v.Set("server_url", strings.TrimSuffix(url, "/"))

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return v.WriteConfigAs(path)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// GetConfigPath returns the default config file location.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "sloka", "config.yaml"), nil
}
