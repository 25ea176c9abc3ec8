package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides. Nested keys use "__":
// RAG_RETRIEVAL__TOP_K=8 sets retrieval.top_k.
const EnvPrefix = "RAG_"

// DocumentsConfig controls where documents are read from.
type DocumentsConfig struct {
	Directory string   `yaml:"directory" koanf:"directory"`
	Exclude   []string `yaml:"exclude" koanf:"exclude"`
}

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	Separators   []string `yaml:"separators" koanf:"separators"`
	Clean        bool     `yaml:"clean" koanf:"clean"`
}

// EmbeddingsConfig selects and configures the text embedder.
type EmbeddingsConfig struct {
	Provider    string        `yaml:"provider" koanf:"provider"`
	Model       string        `yaml:"model" koanf:"model"`
	Dimensions  int           `yaml:"dimensions" koanf:"dimensions"`
	BaseURL     string        `yaml:"base_url" koanf:"base_url"`
	BatchSize   int           `yaml:"batch_size" koanf:"batch_size"`
	Concurrency int           `yaml:"concurrency" koanf:"concurrency"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
}

// VectorDBConfig selects and configures the vector store.
type VectorDBConfig struct {
	Type             string `yaml:"type" koanf:"type"`
	PersistDirectory string `yaml:"persist_directory" koanf:"persist_directory"`
	CollectionName   string `yaml:"collection_name" koanf:"collection_name"`
	Compress         bool   `yaml:"compress" koanf:"compress"`
	// URL and APIKey address a Qdrant server when Type is qdrant.
	URL     string        `yaml:"url,omitempty" koanf:"url"`
	APIKey  string        `yaml:"api_key,omitempty" koanf:"api_key"`
	Timeout time.Duration `yaml:"timeout,omitempty" koanf:"timeout"`
}

// RetrievalConfig controls similarity search.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k" koanf:"top_k"`
	RelevanceFloor float64 `yaml:"relevance_floor" koanf:"relevance_floor"`
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider" koanf:"provider"`
	Model             string        `yaml:"model" koanf:"model"`
	Temperature       float64       `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
	BaseURL           string        `yaml:"base_url" koanf:"base_url"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout" koanf:"timeout"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations" koanf:"max_iterations"`
	MemoryTurns   int           `yaml:"memory_turns" koanf:"memory_turns"`
	CallTimeout   time.Duration `yaml:"call_timeout" koanf:"call_timeout"`
	Verbose       bool          `yaml:"verbose" koanf:"verbose"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// Config is the root application configuration structure.
type Config struct {
	Documents  DocumentsConfig  `yaml:"documents" koanf:"documents"`
	Chunking   ChunkingConfig   `yaml:"chunking" koanf:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" koanf:"embeddings"`
	VectorDB   VectorDBConfig   `yaml:"vector_db" koanf:"vector_db"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	LLM        LLMConfig        `yaml:"llm" koanf:"llm"`
	Agent      AgentConfig      `yaml:"agent" koanf:"agent"`
	Log        LogConfig        `yaml:"log" koanf:"log"`
}

// Load reads configuration from the given YAML file on top of the defaults,
// then overlays RAG_* environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// Decoding into a non-empty slice only overwrites a prefix of it.
	if k.Exists("documents.exclude") {
		cfg.Documents.Exclude = nil
	}
	if k.Exists("chunking.separators") {
		cfg.Chunking.Separators = nil
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and
// loads them with environment overrides applied.
func LoadDefault() (*Config, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); os.IsNotExist(err) {
		if err := Default().Save(userPath); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}
