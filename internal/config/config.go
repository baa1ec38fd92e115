// Package config loads and validates endpoint profiles from YAML. A
// profile bundles everything one streaming request needs: endpoint, model,
// prompts, sampling, and where to find the API token. Tokens never live in
// the file itself, only the name of the environment variable that holds
// them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"chatstream/internal/models"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile captures one endpoint's connection and prompt settings.
type Profile struct {
	Endpoint           string  `yaml:"endpoint"`
	Model              string  `yaml:"model"`
	APITokenEnv        string  `yaml:"api_token_env"`
	ChatEndpoint       *bool   `yaml:"chat_endpoint"`
	Temperature        float64 `yaml:"temperature"`
	SystemPrompt       string  `yaml:"system_prompt"`
	UserPromptTemplate string  `yaml:"user_prompt_template"`
	Language           string  `yaml:"language"`
}

// Load reads YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile must be configured")
	}

	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			return fmt.Errorf("default_profile %q is not a configured profile", c.DefaultProfile)
		}
	}

	for name, profile := range c.Profiles {
		if err := validateProfile(name, profile); err != nil {
			return err
		}
	}
	return nil
}

func validateProfile(name string, p Profile) error {
	if strings.TrimSpace(p.Endpoint) == "" {
		return fmt.Errorf("profile %s: endpoint must be provided", name)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("profile %s: model must be provided", name)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("profile %s: temperature %v must be within [0, 2]", name, p.Temperature)
	}
	if env := p.APITokenEnv; env != "" && strings.ContainsAny(env, " \t=") {
		return fmt.Errorf("profile %s: api_token_env %q is not a valid environment variable name", name, env)
	}
	return nil
}

// Resolve returns the named profile, or the default when name is empty.
func (c Config) Resolve(name string) (Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return Profile{}, fmt.Errorf("no profile named and no default_profile set")
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return profile, nil
}

// RequestConfig converts the profile into a request configuration, reading
// the API token from the configured environment variable. A missing token
// is legal: some endpoints are unauthenticated.
func (p Profile) RequestConfig(history []models.ChatMessage) models.RequestConfig {
	token := ""
	if p.APITokenEnv != "" {
		token = os.Getenv(p.APITokenEnv)
	}

	chat := true
	if p.ChatEndpoint != nil {
		chat = *p.ChatEndpoint
	}

	language := p.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	return models.RequestConfig{
		EndpointURL:       p.Endpoint,
		Model:             p.Model,
		APIToken:          token,
		ChatEndpoint:      chat,
		Temperature:       p.Temperature,
		SystemPrompt:      p.SystemPrompt,
		UserPromptFormat:  p.UserPromptTemplate,
		History:           history,
		PreferredLanguage: language,
	}
}
