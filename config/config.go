package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chatwire/chatwire/internal/logger"
)

// DefaultConfigPath is where the engine looks for configuration when no
// explicit path is given
const DefaultConfigPath = ".chatwire/config.yaml"

// Config is the engine configuration
type Config struct {
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Chat    ChatConfig    `yaml:"chat" mapstructure:"chat"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// BackendConfig describes the chat-completions backend
type BackendConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`

	// TimeoutSeconds bounds one model request end to end. It is deliberately
	// generous since some backends load large contexts slowly.
	TimeoutSeconds int `yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig describes the host-boundary HTTP server
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// ChatConfig contains conversation defaults
type ChatConfig struct {
	SystemPrompt string `yaml:"system_prompt" mapstructure:"system_prompt"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:            "http://localhost:11434/v1",
			APIKey:         "",
			Model:          "",
			TimeoutSeconds: 300,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8732,
		},
		Chat: ChatConfig{
			SystemPrompt: "",
		},
		Logging: LoggingConfig{
			Verbose: false,
		},
	}
}

// Load reads configuration from the given path, layering environment
// variables with the CHATWIRE_ prefix on top. A missing file yields the
// defaults rather than an error so the binary runs unconfigured.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHATWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("backend.url", defaults.Backend.URL)
	v.SetDefault("backend.api_key", defaults.Backend.APIKey)
	v.SetDefault("backend.model", defaults.Backend.Model)
	v.SetDefault("backend.timeout", defaults.Backend.TimeoutSeconds)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("chat.system_prompt", defaults.Chat.SystemPrompt)
	v.SetDefault("logging.verbose", defaults.Logging.Verbose)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			logger.Debug("config file not found, using defaults", "path", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration as YAML, creating parent directories
func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize config encoding: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	logger.Debug("saved config", "path", configPath)
	return nil
}
