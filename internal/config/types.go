package config

import "time"

// ProviderType identifies an embedding backend.
type ProviderType string

const (
	ProviderLocal  ProviderType = "local"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// SnapshotFormat selects the on-disk snapshot backend.
type SnapshotFormat string

const (
	// SnapshotDir is a directory of per-store files plus a manifest.
	SnapshotDir SnapshotFormat = "dir"
	// SnapshotSQLite is a single SQLite database file.
	SnapshotSQLite SnapshotFormat = "sqlite"
)

// Config is the top-level semstore configuration, corresponding to
// .semstore.yml.
type Config struct {
	Provider       ProviderType   `yaml:"provider" koanf:"provider"`
	Model          string         `yaml:"model" koanf:"model"`
	Dimension      int            `yaml:"dimension" koanf:"dimension"`
	DataDir        string         `yaml:"data_dir" koanf:"data_dir"`
	Snapshot       SnapshotFormat `yaml:"snapshot" koanf:"snapshot"`
	OllamaURL      string         `yaml:"ollama_url" koanf:"ollama_url"`
	RequestTimeout time.Duration  `yaml:"request_timeout" koanf:"request_timeout"`
	MaxAttempts    int            `yaml:"max_attempts" koanf:"max_attempts"`
	Server         ServerConfig   `yaml:"server" koanf:"server"`
}

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}
