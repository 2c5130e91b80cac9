package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig `yaml:"server"`
	RAG      RAGConfig    `yaml:"rag"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	InferLLM LLMConfig    `yaml:"inference_llm"`
	Index    IndexConfig  `yaml:"index"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	UploadDir string `yaml:"upload_dir"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

// LLMConfig describes one OpenAI-compatible or ollama endpoint
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
	// vector size of the embedding model; every vector in the index must match
	Dimensions int `yaml:"dimensions"`
	// role prefixes the embedding model expects
	PassagePrefix string `yaml:"passage_prefix"`
	QueryPrefix   string `yaml:"query_prefix"`
}

type IndexConfig struct {
	Provider      string `yaml:"provider"` // chromem | postgres
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
	DatabaseURL   string `yaml:"database_url"`
	Debug         bool   `yaml:"debug"`
}

const (
	defaultAddr         = ":8000"
	defaultUploadDir    = "./uploaded_docs"
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
	defaultTopK         = 3

	defaultEmbedModel    = "nomic-embed-text"
	defaultEmbedDim      = 768
	defaultPassagePrefix = "search_document: "
	defaultQueryPrefix   = "search_query: "
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = defaultUploadDir
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = defaultEmbedModel
	}
	if c.EmbedLLM.Dimensions <= 0 {
		c.EmbedLLM.Dimensions = defaultEmbedDim
	}
	if c.EmbedLLM.PassagePrefix == "" {
		c.EmbedLLM.PassagePrefix = defaultPassagePrefix
	}
	if c.EmbedLLM.QueryPrefix == "" {
		c.EmbedLLM.QueryPrefix = defaultQueryPrefix
	}
	if c.Index.Provider == "" {
		c.Index.Provider = "chromem"
	}
	if c.Index.Collection == "" {
		c.Index.Collection = "documents"
	}
	if c.Index.Path == "" {
		c.Index.Path = "./chromemdb"
	}
}

// secrets come from the environment when the yaml leaves them blank
func (c *Config) applyEnv() {
	if v := os.Getenv("EMBED_API_KEY"); v != "" {
		c.EmbedLLM.Key = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" && c.InferLLM.Key == "" {
		c.InferLLM.Key = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Index.DatabaseURL = v
	}
}

// Validate rejects configurations that would otherwise fail on first use.
// Called at startup so a misconfigured service refuses to start.
func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag: chunk_overlap (%d) must be smaller than chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.EmbedLLM.Provider {
	case "ollama":
		if c.EmbedLLM.BaseURL == "" {
			return fmt.Errorf("embed_llm: base_url is required for the ollama provider")
		}
	case "openai", "":
		if c.EmbedLLM.Key == "" {
			return fmt.Errorf("embed_llm: key is required (set EMBED_API_KEY)")
		}
	default:
		return fmt.Errorf("embed_llm: unknown provider %q", c.EmbedLLM.Provider)
	}
	switch c.InferLLM.Provider {
	case "ollama":
		if c.InferLLM.BaseURL == "" {
			return fmt.Errorf("inference_llm: base_url is required for the ollama provider")
		}
	case "openai", "":
		if c.InferLLM.Key == "" {
			return fmt.Errorf("inference_llm: key is required (set GROQ_API_KEY)")
		}
	default:
		return fmt.Errorf("inference_llm: unknown provider %q", c.InferLLM.Provider)
	}
	if c.InferLLM.Model == "" {
		return fmt.Errorf("inference_llm: model is required")
	}
	switch c.Index.Provider {
	case "chromem":
		if !c.Index.InMemory && c.Index.Path == "" {
			return fmt.Errorf("index: path is required for the persistent chromem provider")
		}
	case "postgres":
		if c.Index.DatabaseURL == "" {
			return fmt.Errorf("index: database_url is required for the postgres provider (set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("index: unknown provider %q", c.Index.Provider)
	}
	return nil
}
