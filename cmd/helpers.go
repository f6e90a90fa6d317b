package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ziadkadry99/semstore/internal/config"
	"github.com/ziadkadry99/semstore/internal/embed"
	"github.com/ziadkadry99/semstore/internal/snapshot"
	"github.com/ziadkadry99/semstore/internal/store"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `semstore init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// embedderFactory builds the embedder factory selected by the config. The
// backend decision happens here, once; stores never branch per call.
func embedderFactory(cfg *config.Config) (embed.Factory, error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		return func(dim int) (embed.Embedder, error) {
			return embed.NewLocalEmbedder(dim), nil
		}, nil

	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is required for the openai provider",
				config.APIKeyEnvVar(config.ProviderOpenAI))
		}
		model := embed.OpenAIModel(cfg.Model)
		opts := embed.OpenAIOptions{Timeout: cfg.RequestTimeout, MaxAttempts: cfg.MaxAttempts}
		return func(dim int) (embed.Embedder, error) {
			return embed.NewOpenAIEmbedder(apiKey, model, dim, opts), nil
		}, nil

	case config.ProviderOllama:
		return func(dim int) (embed.Embedder, error) {
			e := embed.NewOllamaEmbedder(cfg.Model, dim, cfg.OllamaURL, cfg.RequestTimeout)
			return e, nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// snapshotPath returns the location of the working snapshot inside the data
// directory for the configured codec.
func snapshotPath(cfg *config.Config) string {
	if cfg.Snapshot == config.SnapshotSQLite {
		return filepath.Join(cfg.DataDir, "snapshot.db")
	}
	return filepath.Join(cfg.DataDir, "snapshot")
}

func openCodec(cfg *config.Config) (snapshot.Codec, error) {
	return snapshot.New(string(cfg.Snapshot))
}

// openRegistry loads the working snapshot, or starts an empty registry when
// none exists yet.
func openRegistry(cfg *config.Config) (*store.Registry, snapshot.Codec, error) {
	factory, err := embedderFactory(cfg)
	if err != nil {
		return nil, nil, err
	}
	codec, err := openCodec(cfg)
	if err != nil {
		return nil, nil, err
	}

	reg, err := codec.Load(snapshotPath(cfg), factory)
	if errors.Is(err, store.ErrNotFound) {
		return store.NewRegistry(factory), codec, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return reg, codec, nil
}

// saveRegistry writes the registry back to the working snapshot.
func saveRegistry(cfg *config.Config, codec snapshot.Codec, reg *store.Registry) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	return codec.Save(reg, snapshotPath(cfg))
}

// parseMetaFlags converts repeated k=v flags into metadata, inferring the
// scalar type: bool, then number, then string.
func parseMetaFlags(pairs []string) (store.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(store.Metadata, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("metadata must be key=value, got %q", pair)
		}
		switch {
		case v == "true" || v == "false":
			meta[k] = v == "true"
		default:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				meta[k] = n
			} else {
				meta[k] = v
			}
		}
	}
	return meta, nil
}

func formatMeta(meta store.Metadata) string {
	if len(meta) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(meta))
	for k, v := range meta {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	// Deterministic output for scripts and tests.
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}
