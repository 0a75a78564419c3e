package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey       string         `mapstructure:"api_key"`
	Model        string         `mapstructure:"model"`
	AppURL       string         `mapstructure:"app_url"`
	AppTitle     string         `mapstructure:"app_title"`
	SystemPrompt string         `mapstructure:"system_prompt"`
	Embedded     EmbeddedConfig `mapstructure:"embedded"`
}

// EmbeddedConfig configures the in-process inference engine.
type EmbeddedConfig struct {
	ModulePath  string  `mapstructure:"module_path"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "fusion-chat")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("model", "qwen/qwen3-235b-a22b-2507")
	viper.SetDefault("app_title", "Fusion Studio")
	viper.SetDefault("embedded.temperature", 0.7)
	viper.SetDefault("embedded.max_tokens", 1024)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.APIKey = expandEnv(cfg.APIKey)

	// Fall back to the environment if the key is not in the config file
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	return &cfg, nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "fusion-chat", "config.yaml"), nil
}

// configFile mirrors Config with yaml tags so Save writes every field Load
// reads. Values like the system prompt may span lines; yaml.Marshal quotes
// them correctly.
type configFile struct {
	APIKey       string             `yaml:"api_key,omitempty"`
	Model        string             `yaml:"model,omitempty"`
	AppURL       string             `yaml:"app_url,omitempty"`
	AppTitle     string             `yaml:"app_title,omitempty"`
	SystemPrompt string             `yaml:"system_prompt,omitempty"`
	Embedded     embeddedConfigFile `yaml:"embedded"`
}

type embeddedConfigFile struct {
	ModulePath  string  `yaml:"module_path,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := yaml.Marshal(configFile{
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		AppURL:       cfg.AppURL,
		AppTitle:     cfg.AppTitle,
		SystemPrompt: cfg.SystemPrompt,
		Embedded: embeddedConfigFile{
			ModulePath:  cfg.Embedded.ModulePath,
			Temperature: cfg.Embedded.Temperature,
			MaxTokens:   cfg.Embedded.MaxTokens,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, content, 0600)
}
