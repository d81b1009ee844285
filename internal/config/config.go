// Package config provides the configuration structure for the
// storybook-service.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

const dirPermissions = 0o750

// Static errors.
var (
	ErrAPIKeyMissing  = errors.New("generative service api key is not set")
	ErrDataDirMissing = errors.New("data directory is not configured")
)

// OpenAIConfig holds the connection parameters for the generative services.
// The API key itself is read from the environment variable named by
// APIKeyEnv, never from the TOML file.
type OpenAIConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKeyEnv      string `toml:"api_key_env"`
	TextModel      string `toml:"text_model"`
	ImageModel     string `toml:"image_model"`
	SpeechModel    string `toml:"speech_model"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// NATSConfig holds the event publication subjects. An empty URL disables
// event publication.
type NATSConfig struct {
	URL            string `toml:"url"`
	PageSubject    string `toml:"page_subject"`
	BalanceSubject string `toml:"balance_subject"`
	RunSubject     string `toml:"run_subject"`
}

// PathsConfig holds the file-system layout of the service.
type PathsConfig struct {
	DataDir     string `toml:"data_dir"`
	PrefsPath   string `toml:"prefs_path"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// SecureStoreConfig scopes keychain entries to an installation identity.
type SecureStoreConfig struct {
	Service string `toml:"service"`
}

// Config is the root configuration structure.
type Config struct {
	OpenAI      OpenAIConfig      `toml:"openai"`
	NATS        NATSConfig        `toml:"nats"`
	Paths       PathsConfig       `toml:"paths"`
	SecureStore SecureStoreConfig `toml:"secure_store"`
}

// Load loads the configuration for the storybook-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// APIKey resolves the generative service credential from the environment.
func (c *Config) APIKey() (string, error) {
	key := os.Getenv(c.OpenAI.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: set %s", ErrAPIKeyMissing, c.OpenAI.APIKeyEnv)
	}

	return key, nil
}

// EnsureDirectories creates the data and log directories if needed.
func (c *Config) EnsureDirectories() error {
	if c.Paths.DataDir == "" {
		return ErrDataDirMissing
	}

	for _, dir := range []string{c.Paths.DataDir, c.Paths.BaseLogsDir} {
		if dir == "" {
			continue
		}

		mkdirErr := os.MkdirAll(dir, dirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, mkdirErr)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}

	if c.OpenAI.APIKeyEnv == "" {
		c.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.OpenAI.Voice == "" {
		c.OpenAI.Voice = "shimmer"
	}

	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = 300
	}

	if c.SecureStore.Service == "" {
		c.SecureStore.Service = "storybook-service"
	}
}
