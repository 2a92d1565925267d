// Package config loads memctl's configuration (spec §6): a YAML file
// overridden by environment variables, each option carrying a default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/kittclouds/memctl/internal/errs"
)

// Config holds every recognised option from spec §6.
type Config struct {
	DBPath    string          `koanf:"db_path"`
	MMapSize  int64           `koanf:"mmap_size"`
	Rerank    RerankConfig    `koanf:"rerank"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	Expansion ExpansionConfig `koanf:"expansion"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	AutoIndex AutoIndexConfig `koanf:"auto_index"`
	// IncludeThinking must require explicit true to surface thinking
	// blocks through search or export (spec §6).
	IncludeThinking bool `koanf:"include_thinking"`
}

type RerankConfig struct {
	Enabled      bool    `koanf:"enabled"`
	VectorWeight float64 `koanf:"vector_weight"`
	RRFK         int     `koanf:"rrf_k"`
}

type ChunkingConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Strategy     string `koanf:"strategy"`
	TargetTokens int    `koanf:"target_tokens"`
	Overlap      int    `koanf:"overlap"`
}

type ExpansionConfig struct {
	Enabled     bool `koanf:"enabled"`
	MaxVariants int  `koanf:"max_variants"`
}

type EmbeddingConfig struct {
	Provider   string `koanf:"provider"`
	Model      string `koanf:"model"`
	APIKey     string `koanf:"api_key"`
	Dimensions int    `koanf:"dimensions"`
}

type AutoIndexConfig struct {
	CooldownMS int64 `koanf:"cooldown_ms"`
}

// defaultConfigPath returns ~/.config/memctl/config.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.Config, "defaultConfigPath", "resolving home directory", err)
	}
	return filepath.Join(home, ".config", "memctl", "config.yaml"), nil
}

// defaultDataDir returns ~/.local/share/memctl, the per-user data directory
// the database file and backups live under by default.
func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.Config, "defaultDataDir", "resolving home directory", err)
	}
	return filepath.Join(home, ".local", "share", "memctl"), nil
}

// defaultYAML carries the coded defaults of spec §6 as the lowest koanf
// layer, so booleans like rerank.enabled can default to true while an
// explicit `false` in the file or environment still wins.
// include_thinking is deliberately absent: its default must be off and only
// an explicit true enables it.
const defaultYAML = `
mmap_size: 268435456
rerank:
  enabled: true
  vector_weight: 0.7
  rrf_k: 60
chunking:
  enabled: true
  strategy: sentence
  target_tokens: 400
  overlap: 0
expansion:
  enabled: true
  max_variants: 3
embedding:
  provider: local
  dimensions: 384
auto_index:
  cooldown_ms: 30000
`

// Load reads configPath (or the default location if empty) as YAML over the
// coded defaults, then overrides with MEMCTL_-prefixed environment
// variables. Precedence, highest first: env vars, YAML file, defaults.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultYAML)), yaml.Parser()); err != nil {
		return nil, errs.Wrap(errs.Config, "Load", "loading defaults", err)
	}

	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errs.Wrap(errs.Config, "Load", "reading config file "+configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, errs.Wrap(errs.Config, "Load", "parsing config file "+configPath, err)
		}
	}

	if err := k.Load(env.Provider("MEMCTL_", ".", envTransform), nil); err != nil {
		return nil, errs.Wrap(errs.Config, "Load", "reading environment overrides", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errs.Wrap(errs.Config, "Load", "unmarshaling config", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.Config, "Load", "validating config", err)
	}
	return &cfg, nil
}

// envKeys maps each recognised MEMCTL_ environment variable (prefix
// stripped) to its config key. An explicit table rather than a splitting
// rule: top-level options like DB_PATH and sectioned ones like
// AUTO_INDEX_COOLDOWN_MS both contain underscores, so no single split
// heuristic recovers the right key for all of spec §6's option set.
var envKeys = map[string]string{
	"DB_PATH":                "db_path",
	"MMAP_SIZE":              "mmap_size",
	"INCLUDE_THINKING":       "include_thinking",
	"RERANK_ENABLED":         "rerank.enabled",
	"RERANK_VECTOR_WEIGHT":   "rerank.vector_weight",
	"RERANK_RRF_K":           "rerank.rrf_k",
	"CHUNKING_ENABLED":       "chunking.enabled",
	"CHUNKING_STRATEGY":      "chunking.strategy",
	"CHUNKING_TARGET_TOKENS": "chunking.target_tokens",
	"CHUNKING_OVERLAP":       "chunking.overlap",
	"EXPANSION_ENABLED":      "expansion.enabled",
	"EXPANSION_MAX_VARIANTS": "expansion.max_variants",
	"EMBEDDING_PROVIDER":     "embedding.provider",
	"EMBEDDING_MODEL":        "embedding.model",
	"EMBEDDING_API_KEY":      "embedding.api_key",
	"EMBEDDING_DIMENSIONS":   "embedding.dimensions",
	"AUTO_INDEX_COOLDOWN_MS": "auto_index.cooldown_ms",
}

// envTransform receives the full variable name (prefix included) from the
// env provider and returns the config key, or "" to ignore an unrecognised
// variable.
func envTransform(s string) string {
	return envKeys[strings.TrimPrefix(s, "MEMCTL_")]
}

// applyDefaults fills the one default that cannot live in defaultYAML:
// the database path, which depends on the user's home directory.
func applyDefaults(cfg *Config) error {
	if cfg.DBPath == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return err
		}
		cfg.DBPath = filepath.Join(dir, "memctl.db")
	}
	return nil
}

// Validate rejects configurations that would misbehave at runtime rather
// than failing loudly at startup.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errs.New(errs.Config, "Validate", "db_path must not be empty")
	}
	if c.MMapSize < 0 {
		return errs.New(errs.Config, "Validate", "mmap_size must not be negative")
	}
	if c.Rerank.VectorWeight < 0 || c.Rerank.VectorWeight > 1 {
		return errs.New(errs.Config, "Validate", "rerank.vector_weight must be within [0,1]")
	}
	if c.Rerank.RRFK <= 0 {
		return errs.New(errs.Config, "Validate", "rerank.rrf_k must be positive")
	}
	switch c.Chunking.Strategy {
	case "sentence", "sliding_window", "paragraph":
	default:
		return errs.New(errs.Config, "Validate", fmt.Sprintf("chunking.strategy %q is not recognised", c.Chunking.Strategy))
	}
	if c.Chunking.TargetTokens <= 0 {
		return errs.New(errs.Config, "Validate", "chunking.target_tokens must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.TargetTokens {
		return errs.New(errs.Config, "Validate", "chunking.overlap must be non-negative and less than target_tokens")
	}
	if c.Embedding.Dimensions <= 0 {
		return errs.New(errs.Config, "Validate", "embedding.dimensions must be positive")
	}
	if c.AutoIndex.CooldownMS < 0 {
		return errs.New(errs.Config, "Validate", "auto_index.cooldown_ms must not be negative")
	}
	return nil
}
