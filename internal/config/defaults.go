package config

import "time"

// ModelPreset describes the default model and native dimension for a
// provider.
type ModelPreset struct {
	Model     string
	Dimension int
}

// modelPresets maps each provider to its default model choice. The local
// backend has no model; its dimension is just a sensible default.
var modelPresets = map[ProviderType]ModelPreset{
	ProviderLocal:  {Model: "", Dimension: 256},
	ProviderOpenAI: {Model: "text-embedding-3-small", Dimension: 1536},
	ProviderOllama: {Model: "nomic-embed-text", Dimension: 768},
}

// DefaultConfig returns a Config with sensible defaults: the local
// deterministic backend, a dir snapshot under .semstore, no retries.
func DefaultConfig() *Config {
	preset := modelPresets[ProviderLocal]
	return &Config{
		Provider:       ProviderLocal,
		Model:          preset.Model,
		Dimension:      preset.Dimension,
		DataDir:        ".semstore",
		Snapshot:       SnapshotDir,
		RequestTimeout: 30 * time.Second,
		MaxAttempts:    1,
		Server: ServerConfig{
			Port: 8400,
		},
	}
}

// GetPreset returns the default model preset for the given provider. Unknown
// providers fall back to the local preset.
func GetPreset(provider ProviderType) ModelPreset {
	if preset, ok := modelPresets[provider]; ok {
		return preset
	}
	return modelPresets[ProviderLocal]
}
