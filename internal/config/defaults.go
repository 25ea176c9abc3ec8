package config

import (
	"fmt"
	"time"
)

// Embedding providers.
const (
	EmbeddingsHash   = "hash"
	EmbeddingsOpenAI = "openai"
	EmbeddingsOllama = "ollama"
	EmbeddingsGoogle = "google"
)

// Generation providers.
const (
	LLMOpenAI = "openai"
	LLMOllama = "ollama"
	LLMGoogle = "google"
)

// Vector store backends.
const (
	VectorDBChromem = "chromem"
	VectorDBMemory  = "memory"
	VectorDBQdrant  = "qdrant"
)

var validEmbeddingProviders = map[string]bool{
	EmbeddingsHash:   true,
	EmbeddingsOpenAI: true,
	EmbeddingsOllama: true,
	EmbeddingsGoogle: true,
}

var validLLMProviders = map[string]bool{
	LLMOpenAI: true,
	LLMOllama: true,
	LLMGoogle: true,
}

var validVectorDBs = map[string]bool{
	VectorDBChromem: true,
	VectorDBMemory:  true,
	VectorDBQdrant:  true,
}

// DefaultExcludes are glob patterns skipped while walking the documents directory.
var DefaultExcludes = []string{
	".git/**",
	"**/.DS_Store",
	"**/~$*",
}

// Default returns a Config with sensible defaults. The local hash embedder
// needs no API key, so ingestion works out of the box.
func Default() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Directory: "documents",
			Exclude:   append([]string(nil), DefaultExcludes...),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			Separators:   []string{"\n\n", "\n", " ", ""},
			Clean:        true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    EmbeddingsHash,
			Dimensions:  512,
			BatchSize:   32,
			Concurrency: 4,
			Timeout:     30 * time.Second,
		},
		VectorDB: VectorDBConfig{
			Type:             VectorDBChromem,
			PersistDirectory: "vector_db",
			CollectionName:   "documents",
			Compress:         false,
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			RelevanceFloor: 0.0,
		},
		LLM: LLMConfig{
			Provider:          LLMOpenAI,
			Model:             "gpt-4o-mini",
			Temperature:       0.1,
			MaxTokens:         1024,
			RequestsPerMinute: 60,
			Timeout:           60 * time.Second,
		},
		Agent: AgentConfig{
			MaxIterations: 5,
			MemoryTurns:   10,
			CallTimeout:   60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// EmbeddingModel returns the configured embedding model, falling back to a
// per-provider default.
func (c *Config) EmbeddingModel() string {
	if c.Embeddings.Model != "" {
		return c.Embeddings.Model
	}
	switch c.Embeddings.Provider {
	case EmbeddingsOpenAI:
		return "text-embedding-3-small"
	case EmbeddingsOllama:
		return "nomic-embed-text"
	case EmbeddingsGoogle:
		return "text-embedding-004"
	default:
		return ""
	}
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive")
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if !validEmbeddingProviders[c.Embeddings.Provider] {
		return fmt.Errorf("invalid embeddings.provider %q: must be one of hash, openai, ollama, google", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == EmbeddingsHash && c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive for the hash embedder")
	}
	if c.Embeddings.BatchSize < 0 || c.Embeddings.Concurrency < 0 {
		return fmt.Errorf("embeddings.batch_size and embeddings.concurrency must be non-negative")
	}
	if !validVectorDBs[c.VectorDB.Type] {
		return fmt.Errorf("invalid vector_db.type %q: must be one of chromem, memory, qdrant", c.VectorDB.Type)
	}
	if c.VectorDB.Type == VectorDBQdrant && c.VectorDB.URL == "" {
		return fmt.Errorf("vector_db.url is required for qdrant")
	}
	if c.VectorDB.CollectionName == "" {
		return fmt.Errorf("vector_db.collection_name is required")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if !validLLMProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid llm.provider %q: must be one of openai, ollama, google", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2]")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	if c.Agent.MemoryTurns < 0 {
		return fmt.Errorf("agent.memory_turns must be non-negative")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case EmbeddingsOpenAI:
		return "OPENAI_API_KEY"
	case EmbeddingsGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
