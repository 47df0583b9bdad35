package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the prtree configuration.
type Config struct {
	Provider   string           `yaml:"provider"`
	Repository RepositoryConfig `yaml:"repository"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Logging    LoggingConfig    `yaml:"logging"`
	Extract    ExtractConfig    `yaml:"extract"`
}

// RepositoryConfig identifies the repository whose pull requests are fetched.
type RepositoryConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// ProvidersConfig holds git provider configurations.
type ProvidersConfig struct {
	GitHub GitHubConfig `yaml:"github"`
	GitLab GitLabConfig `yaml:"gitlab"`
}

// GitHubConfig holds GitHub-specific settings.
type GitHubConfig struct {
	BaseURL string `yaml:"base_url"` // empty means https://api.github.com
	Token   string `yaml:"token"`
}

// GitLabConfig holds GitLab-specific settings.
type GitLabConfig struct {
	BaseURL string `yaml:"base_url"` // instance root, without /api/v4
	Token   string `yaml:"token"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Dir           string `yaml:"dir"` // empty disables run log files
	RetentionDays int    `yaml:"retention_days"`
}

// ExtractConfig holds archive extraction settings.
type ExtractConfig struct {
	Strict   bool `yaml:"strict"`
	Progress bool `yaml:"progress"`
}

// Supported provider names.
const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGitHub,
		Repository: RepositoryConfig{
			Owner: "kstost",
			Name:  "cokacdir",
		},
		Logging: LoggingConfig{
			RetentionDays: 30,
		},
		Extract: ExtractConfig{
			Progress: true,
		},
	}
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadOptional loads path if it exists and falls back to defaults otherwise.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
		cfg.ApplyEnv()
		return cfg, nil
	}
	return cfg, err
}

// ApplyEnv fills unset tokens from GITHUB_TOKEN and GITLAB_TOKEN.
func (c *Config) ApplyEnv() {
	if c.Providers.GitHub.Token == "" {
		c.Providers.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.Providers.GitLab.Token == "" {
		c.Providers.GitLab.Token = os.Getenv("GITLAB_TOKEN")
	}
}

// Validate checks that the configuration can drive a fetch.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGitHub, ProviderGitLab:
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	if c.Repository.Owner == "" || c.Repository.Name == "" {
		return errors.New("repository owner and name are required")
	}
	if c.Logging.RetentionDays < 0 {
		return fmt.Errorf("logging.retention_days must not be negative: %d", c.Logging.RetentionDays)
	}
	return nil
}
