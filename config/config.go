package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docrag.
type Config struct {
	Documents  DocumentsConfig  `yaml:"documents"`
	Index      IndexConfig      `yaml:"index"`
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DocumentsConfig points at the document tree. The first two directory
// levels below Root are read as category and year.
type DocumentsConfig struct {
	Root string `yaml:"root"`
}

// IndexConfig holds ingestion configuration.
type IndexConfig struct {
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
	Tokenizer   string   `yaml:"tokenizer"` // "bpe" or "word"
	Encoding    string   `yaml:"encoding"`  // tiktoken encoding for "bpe"
	ChunkTokens int      `yaml:"chunk_tokens"`
	Workers     int      `yaml:"workers"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "bolt", "sqlite", "postgres", "memory"
	Path   string `yaml:"path"`   // bolt and sqlite file, relative to the project dir
	DSN    string `yaml:"dsn"`    // postgres connection string

	// LockTimeoutSeconds bounds the wait for a bolt file held by another
	// process.
	LockTimeoutSeconds int `yaml:"lock_timeout_seconds"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "openai", "ollama", "jina", "compatible", "hash"
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"` // environment variable holding the API key
	Dimension         int     `yaml:"dimension"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// GenerationConfig configures the answer generator.
type GenerationConfig struct {
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	MinScore        float64 `yaml:"min_score"` // drop results below this score (0 = disabled)
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Root: "documents",
		},
		Index: IndexConfig{
			Includes:    []string{"**/*.docx"},
			Excludes:    []string{"**/~$*", "**/.git/**"},
			Tokenizer:   "bpe",
			Encoding:    "cl100k_base",
			ChunkTokens: 500,
			Workers:     1,
		},
		Store: StoreConfig{
			Driver: "bolt",
			Path:   filepath.Join(".docrag", "index.db"),
			DSN:    "${DOCRAG_PG_DSN}",

			LockTimeoutSeconds: 5,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			APIKeyEnv:      "OPENAI_API_KEY",
			Dimension:      1536,
			TimeoutSeconds: 60,
		},
		Generation: GenerationConfig{
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			MaxTokens:      512,
			TimeoutSeconds: 120,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			CacheSize:       0,
			CacheTTLSeconds: 300,
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. ${VAR} references in
// paths, URLs and the DSN are expanded from the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.expandEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.expandEnv()

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.expandEnv()
	return cfg, nil
}

// expandEnv is limited to fields that never hold glob patterns.
func (c *Config) expandEnv() {
	c.Documents.Root = os.ExpandEnv(c.Documents.Root)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.Store.DSN = os.ExpandEnv(c.Store.DSN)
	c.Embedding.BaseURL = os.ExpandEnv(c.Embedding.BaseURL)
	c.Generation.BaseURL = os.ExpandEnv(c.Generation.BaseURL)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath resolves the store file relative to the project dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// DocumentsRoot resolves the documents root relative to the project dir.
func (c *Config) DocumentsRoot(dir string) string {
	if filepath.IsAbs(c.Documents.Root) {
		return c.Documents.Root
	}
	return filepath.Join(dir, c.Documents.Root)
}

// EnsureDir ensures the directory holding path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
