package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .semstore.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to semstore! Let's configure your document store.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{
			"local  — deterministic, offline, free",
			"openai — text-embedding-3 models (needs OPENAI_API_KEY)",
			"ollama — local model server",
		},
	}
	providerIdx, _, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	providers := []ProviderType{ProviderLocal, ProviderOpenAI, ProviderOllama}
	provider := providers[providerIdx]
	preset := GetPreset(provider)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = preset.Model
	cfg.Dimension = preset.Dimension

	// 2. Model name, for providers that take one.
	if provider != ProviderLocal {
		modelPrompt := promptui.Prompt{
			Label:   "Embedding model",
			Default: preset.Model,
		}
		model, err := modelPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		cfg.Model = model
	}

	// 3. Default embedding dimension for new stores.
	dimPrompt := promptui.Prompt{
		Label:   "Default embedding dimension for new stores",
		Default: strconv.Itoa(preset.Dimension),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	dimStr, err := dimPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("dimension: %w", err)
	}
	cfg.Dimension, _ = strconv.Atoi(dimStr)

	// 4. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 5. Snapshot backend.
	snapPrompt := promptui.Select{
		Label: "Snapshot backend",
		Items: []string{
			"dir    — manifest + one file per store",
			"sqlite — single database file",
		},
	}
	snapIdx, _, err := snapPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("snapshot selection: %w", err)
	}
	formats := []SnapshotFormat{SnapshotDir, SnapshotSQLite}
	cfg.Snapshot = formats[snapIdx]

	// Check for API key.
	if envVar := APIKeyEnvVar(provider); envVar != "" {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before adding or querying documents.\n", envVar)
		}
	}

	// Save to .semstore.yml.
	configPath := ".semstore.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}
