package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SEMSTORE_*). A missing file is not an
// error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: SEMSTORE_PROVIDER -> provider, etc.
	if err := k.Load(env.Provider("SEMSTORE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SEMSTORE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path. The request
// timeout is written as a duration string ("30s") rather than raw
// nanoseconds so the file stays hand-editable; Load parses both forms.
func (c *Config) Save(path string) error {
	out := struct {
		Provider       ProviderType   `yaml:"provider"`
		Model          string         `yaml:"model"`
		Dimension      int            `yaml:"dimension"`
		DataDir        string         `yaml:"data_dir"`
		Snapshot       SnapshotFormat `yaml:"snapshot"`
		OllamaURL      string         `yaml:"ollama_url,omitempty"`
		RequestTimeout string         `yaml:"request_timeout"`
		MaxAttempts    int            `yaml:"max_attempts"`
		Server         ServerConfig   `yaml:"server"`
	}{
		Provider:       c.Provider,
		Model:          c.Model,
		Dimension:      c.Dimension,
		DataDir:        c.DataDir,
		Snapshot:       c.Snapshot,
		OllamaURL:      c.OllamaURL,
		RequestTimeout: c.RequestTimeout.String(),
		MaxAttempts:    c.MaxAttempts,
		Server:         c.Server,
	}
	data, err := yamlv3.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized embedding provider values.
var validProviders = map[ProviderType]bool{
	ProviderLocal:  true,
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// validSnapshotFormats is the set of recognized snapshot backend values.
var validSnapshotFormats = map[SnapshotFormat]bool{
	SnapshotDir:    true,
	SnapshotSQLite: true,
}

// Validate checks that the configuration contains valid values. An absent
// OPENAI_API_KEY with provider=openai is reported here: it is a
// configuration error, not a runtime fault.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of local, openai, ollama", c.Provider)
	}

	if c.Provider == ProviderOpenAI {
		if c.Model == "" {
			return fmt.Errorf("model is required for the openai provider")
		}
		if os.Getenv(APIKeyEnvVar(ProviderOpenAI)) == "" {
			return fmt.Errorf("%s environment variable is required for the openai provider",
				APIKeyEnvVar(ProviderOpenAI))
		}
	}
	if c.Provider == ProviderOllama && c.Model == "" {
		return fmt.Errorf("model is required for the ollama provider")
	}

	if c.Dimension < 1 {
		return fmt.Errorf("dimension must be >= 1")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Snapshot != "" && !validSnapshotFormats[c.Snapshot] {
		return fmt.Errorf("invalid snapshot %q: must be one of dir, sqlite", c.Snapshot)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be non-negative")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for the
// API key of the given provider, or "" if the provider needs no credential.
func APIKeyEnvVar(provider ProviderType) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return ""
}
