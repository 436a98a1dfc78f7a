// Package config loads the engine's configuration, merging defaults, a
// global YAML file, a local YAML file, and environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the merged configuration for one run of the engine, per the
// schema table in SPEC_FULL.md section 6.
type Config struct {
	MaxFileSize        int64  `yaml:"maxFileSize" json:"maxFileSize"`
	MaxFileCount        int    `yaml:"maxFileCount" json:"maxFileCount"`
	EmbeddingProvider  string `yaml:"embeddingProvider" json:"embeddingProvider"`
	EmbeddingModel     string `yaml:"embeddingModel" json:"embeddingModel"`
	OpenAIAPIKey       string `yaml:"openaiApiKey" json:"openaiApiKey"`
	BaseURL            string `yaml:"baseUrl" json:"baseUrl"`
	LocalEmbeddingURL  string `yaml:"localEmbeddingUrl" json:"localEmbeddingUrl"`
	ChatModel          string `yaml:"chatModel" json:"chatModel"`
	LogLevel           string `yaml:"logLevel" json:"logLevel"`
	DataDir            string `yaml:"dataDir" json:"dataDir"`
}

const (
	defaultMaxFileSize  = 10 * 1024 * 1024
	defaultMaxFileCount = 10000
)

// Default returns the engine's built-in defaults before any file or
// environment override is applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		MaxFileSize:       defaultMaxFileSize,
		MaxFileCount:      defaultMaxFileCount,
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-small",
		LocalEmbeddingURL: "http://127.0.0.1:11434",
		ChatModel:         "gpt-4o-mini",
		LogLevel:          "info",
		DataDir:           filepath.Join(home, ".searchgrep"),
	}
}

// GlobalPath returns the location of the global config file.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "searchgrep", "config.yaml"), nil
}

// LocalPath returns the location of the local (per-project) config file for
// the given working directory.
func LocalPath(cwd string) string {
	return filepath.Join(cwd, ".searchgreprc.yaml")
}

// Load merges defaults, the global config, the local config (relative to
// cwd), and environment variables, in that precedence order (low to high).
func Load(cwd string) (Config, error) {
	cfg := Default()

	globalPath, err := GlobalPath()
	if err == nil {
		if err := mergeFile(&cfg, globalPath); err != nil {
			return cfg, err
		}
	}

	if err := mergeFile(&cfg, LocalPath(cwd)); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// mergeFile reads a YAML config file at path, if it exists, and overlays its
// non-zero fields onto cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	mergeInto(cfg, overlay)
	return nil
}

// mergeInto overlays every non-zero field of overlay onto base.
func mergeInto(base *Config, overlay Config) {
	if overlay.MaxFileSize != 0 {
		base.MaxFileSize = overlay.MaxFileSize
	}
	if overlay.MaxFileCount != 0 {
		base.MaxFileCount = overlay.MaxFileCount
	}
	if overlay.EmbeddingProvider != "" {
		base.EmbeddingProvider = overlay.EmbeddingProvider
	}
	if overlay.EmbeddingModel != "" {
		base.EmbeddingModel = overlay.EmbeddingModel
	}
	if overlay.OpenAIAPIKey != "" {
		base.OpenAIAPIKey = overlay.OpenAIAPIKey
	}
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	if overlay.LocalEmbeddingURL != "" {
		base.LocalEmbeddingURL = overlay.LocalEmbeddingURL
	}
	if overlay.ChatModel != "" {
		base.ChatModel = overlay.ChatModel
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}
}

// applyEnvOverrides reads the SEARCHGREP_* and OPENAI_* environment
// variables and overlays them onto cfg, the highest-precedence layer.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SEARCHGREP_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxFileSize = n
		}
	}
	if v := os.Getenv("SEARCHGREP_MAX_FILE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFileCount = n
		}
	}
	if v := os.Getenv("SEARCHGREP_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("SEARCHGREP_EMBEDDING_PROVIDER"); v != "" {
		cfg.EmbeddingProvider = v
	}
	if v := os.Getenv("SEARCHGREP_LOCAL_EMBEDDING_URL"); v != "" {
		cfg.LocalEmbeddingURL = v
	}
	if v := os.Getenv("SEARCHGREP_CHAT_MODEL"); v != "" {
		cfg.ChatModel = v
	}
	if v := os.Getenv("SEARCHGREP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SEARCHGREP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}
