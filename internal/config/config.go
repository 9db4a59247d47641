package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
// Type "section" splits on numbered headings; "plain" splits by length only.
type ChunkerConfig struct {
	Type      string `yaml:"type"`
	MaxLength int    `yaml:"max_length"`
	Overlap   int    `yaml:"overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig controls how many chunks are handed to the generator.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig selects the answer generator. Type is one of openai, anthropic,
// gemini or extractive. OpenAI-compatible endpoints (Groq by default) use BaseURL.
type LLMConfig struct {
	Type              string  `yaml:"type"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	MaxSentences      int     `yaml:"max_sentences,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port          string `yaml:"port"`
	AdminTokenEnv string `yaml:"admin_token_env"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir     string            `yaml:"data_dir"`
	IndexDir    string            `yaml:"index_dir"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	LLM         LLMConfig         `yaml:"llm"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/policybot/config.yaml.
// If neither exists, it writes defaults to ~/.config/policybot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports settings that cannot work together.
func (c *AppConfig) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.IndexDir == "" {
		return errors.New("index_dir is required")
	}
	if c.Chunker.Overlap < 0 {
		return fmt.Errorf("chunker.overlap (%d) must not be negative", c.Chunker.Overlap)
	}
	if c.Chunker.Overlap >= c.Chunker.MaxLength {
		return fmt.Errorf("chunker.overlap (%d) must be smaller than chunker.max_length (%d)", c.Chunker.Overlap, c.Chunker.MaxLength)
	}
	switch c.LLM.Type {
	case "openai", "anthropic", "gemini", "extractive":
	default:
		return fmt.Errorf("unknown llm type: %s", c.LLM.Type)
	}
	if c.VectorStore.Type == "qdrant" && (c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "") {
		return errors.New("vector_store.qdrant.url is required for qdrant")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "policybot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		DataDir:     "data",
		IndexDir:    "policy_index",
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "section", MaxLength: 800, Overlap: 100},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Retrieval:   RetrievalConfig{TopK: 5},
		LLM:         LLMConfig{Type: "openai"},
		Server:      ServerConfig{Port: "8090", AdminTokenEnv: "POLICYBOT_ADMIN_TOKEN"},
		Log:         LogConfig{Level: "info", Format: "json"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = "policy_index"
	}
	switch cfg.Chunker.Type {
	case "plain":
		if cfg.Chunker.MaxLength == 0 {
			cfg.Chunker.MaxLength = 1000
			if cfg.Chunker.Overlap == 0 {
				cfg.Chunker.Overlap = 200
			}
		}
	default:
		if cfg.Chunker.Type == "" {
			cfg.Chunker.Type = "section"
		}
		if cfg.Chunker.MaxLength == 0 {
			cfg.Chunker.MaxLength = 800
			if cfg.Chunker.Overlap == 0 {
				cfg.Chunker.Overlap = 100
			}
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "hr_policies"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	applyLLMDefaults(&cfg.LLM)
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8090"
	}
	if cfg.Server.AdminTokenEnv == "" {
		cfg.Server.AdminTokenEnv = "POLICYBOT_ADMIN_TOKEN"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

func applyLLMDefaults(l *LLMConfig) {
	if l.Type == "" {
		l.Type = "openai"
	}
	switch l.Type {
	case "openai":
		if l.BaseURL == "" {
			l.BaseURL = "https://api.groq.com/openai/v1"
		}
		if l.APIKeyEnv == "" {
			l.APIKeyEnv = "GROQ_API_KEY"
		}
		if l.Model == "" {
			l.Model = "llama-3.3-70b-versatile"
		}
	case "anthropic":
		if l.BaseURL == "" {
			l.BaseURL = "https://api.anthropic.com/v1"
		}
		if l.APIKeyEnv == "" {
			l.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if l.Model == "" {
			l.Model = "claude-sonnet-4-5-20250929"
		}
	case "gemini":
		if l.APIKeyEnv == "" {
			l.APIKeyEnv = "GEMINI_API_KEY"
		}
		if l.Model == "" {
			l.Model = "gemini-2.0-flash"
		}
	case "extractive":
		if l.MaxSentences == 0 {
			l.MaxSentences = 4
		}
	}
	if l.MaxTokens == 0 {
		l.MaxTokens = 1024
	}
	if l.TimeoutSecs == 0 {
		l.TimeoutSecs = 60
	}
	if l.RequestsPerMinute == 0 {
		l.RequestsPerMinute = 30
	}
}
