// Package agent implements the top-level orchestrator. AgentCore runs the
// perceive, retrieve, plan, execute, respond, consolidate, reflect pipeline
// over the memory hub, planner, tool caller, and reflector, and is the only
// component that talks to all of them.
package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for an agent.
//
// It includes provider selection for the LLM, embedder, and storage backend,
// plus pipeline tunables (timeouts, retrieval depth, working-memory budgets).
//
// Example:
//
//	config := &agent.Config{
//	    LLM: agent.ProviderConfig{
//	        Provider: "anthropic",
//	        APIKey:   "sk-ant-...",
//	    },
//	    Embedder: agent.ProviderConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	    },
//	    Storage: agent.StorageConfig{
//	        Provider: "sqlite",
//	        Path:     "./sentio.db",
//	    },
//	}
type Config struct {
	// LLM selects and configures the language model provider.
	LLM ProviderConfig `json:"llm"`

	// Embedder selects and configures the embedding provider.
	Embedder ProviderConfig `json:"embedder"`

	// Storage selects and configures the memory store.
	Storage StorageConfig `json:"storage"`

	// Pipeline contains orchestration tunables.
	Pipeline PipelineConfig `json:"pipeline"`
}

// ProviderConfig selects an external capability provider.
//
// Supported LLM providers: openai, anthropic, ollama.
// Supported embedding providers: openai, mock.
type ProviderConfig struct {
	// Provider is the provider name.
	Provider string `json:"provider"`

	// APIKey is the provider API key.
	APIKey string `json:"api_key"`

	// Model is the model name (optional, provider default if empty).
	Model string `json:"model,omitempty"`

	// BaseURL overrides the API base URL (optional).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the embedding vector size (embedders only).
	Dimensions int `json:"dimensions,omitempty"`
}

// StorageConfig selects the durable memory store.
//
// Supported providers: sqlite, postgres, mysql, chromem.
type StorageConfig struct {
	// Provider is the store name (sqlite, postgres, mysql, chromem).
	Provider string `json:"provider"`

	// Path is the database file path (sqlite).
	Path string `json:"path,omitempty"`

	// Host is the database host (postgres, mysql).
	Host string `json:"host,omitempty"`

	// Port is the database port (postgres, mysql).
	Port int `json:"port,omitempty"`

	// User is the database user (postgres, mysql).
	User string `json:"user,omitempty"`

	// Password is the database password (postgres, mysql).
	Password string `json:"password,omitempty"`

	// DBName is the database name (postgres, mysql).
	DBName string `json:"db_name,omitempty"`

	// Table is the record table name (default "memories").
	Table string `json:"table,omitempty"`

	// Dimensions is the embedding vector size the store indexes.
	Dimensions int `json:"dimensions,omitempty"`
}

// PipelineConfig contains orchestration tunables.
type PipelineConfig struct {
	// LLMTimeout bounds reply generation (default 20s).
	LLMTimeout time.Duration `json:"llm_timeout"`

	// PerceptionTimeout bounds the perception fan-out (default 20s).
	PerceptionTimeout time.Duration `json:"perception_timeout"`

	// RetrievalTopK is how many memories a turn retrieves (default 5).
	RetrievalTopK int `json:"retrieval_top_k"`

	// MaxTurns is the working-memory turn budget (default 20).
	MaxTurns int `json:"max_turns"`

	// TokenBudget is the working-memory token budget (default 2000).
	TokenBudget int `json:"token_budget"`

	// HistoryLimit bounds per-user execution history (default 100).
	HistoryLimit int `json:"history_limit"`
}

// DefaultConfig returns a config with mock providers and an in-process
// store, usable without any credentials.
func DefaultConfig() *Config {
	return &Config{
		LLM:      ProviderConfig{Provider: "openai"},
		Embedder: ProviderConfig{Provider: "mock", Dimensions: 64},
		Storage:  StorageConfig{Provider: "chromem"},
		Pipeline: DefaultPipelineConfig(),
	}
}

// DefaultPipelineConfig returns the default orchestration tunables.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		LLMTimeout:        20 * time.Second,
		PerceptionTimeout: 20 * time.Second,
		RetrievalTopK:     5,
		MaxTurns:          20,
		TokenBudget:       2000,
		HistoryLimit:      100,
	}
}

// LoadConfigFromEnv builds a config from environment variables, loading a
// .env file from the working directory first when present.
//
// Recognized variables: LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL,
// EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
// EMBEDDING_DIMENSIONS, STORAGE_PROVIDER, SQLITE_PATH, DATABASE_HOST,
// DATABASE_PORT, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME,
// STORAGE_TABLE, SENTIO_LLM_TIMEOUT_SECONDS, SENTIO_RETRIEVAL_TOP_K,
// SENTIO_MAX_TURNS, SENTIO_TOKEN_BUDGET.
func LoadConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	cfg.LLM = ProviderConfig{
		Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
		APIKey:   os.Getenv("LLM_API_KEY"),
		Model:    os.Getenv("LLM_MODEL"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))
	cfg.Embedder = ProviderConfig{
		Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "openai"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Dimensions: dims,
	}

	port, _ := strconv.Atoi(getEnvOrDefault("DATABASE_PORT", "0"))
	cfg.Storage = StorageConfig{
		Provider:   getEnvOrDefault("STORAGE_PROVIDER", "sqlite"),
		Path:       getEnvOrDefault("SQLITE_PATH", "./sentio.db"),
		Host:       os.Getenv("DATABASE_HOST"),
		Port:       port,
		User:       os.Getenv("DATABASE_USER"),
		Password:   os.Getenv("DATABASE_PASSWORD"),
		DBName:     os.Getenv("DATABASE_NAME"),
		Table:      getEnvOrDefault("STORAGE_TABLE", "memories"),
		Dimensions: dims,
	}

	if secs, err := strconv.Atoi(os.Getenv("SENTIO_LLM_TIMEOUT_SECONDS")); err == nil && secs > 0 {
		cfg.Pipeline.LLMTimeout = time.Duration(secs) * time.Second
	}
	if k, err := strconv.Atoi(os.Getenv("SENTIO_RETRIEVAL_TOP_K")); err == nil && k > 0 {
		cfg.Pipeline.RetrievalTopK = k
	}
	if n, err := strconv.Atoi(os.Getenv("SENTIO_MAX_TURNS")); err == nil && n > 0 {
		cfg.Pipeline.MaxTurns = n
	}
	if n, err := strconv.Atoi(os.Getenv("SENTIO_TOKEN_BUDGET")); err == nil && n > 0 {
		cfg.Pipeline.TokenBudget = n
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm provider is required")
	}
	if c.Embedder.Provider == "" {
		return fmt.Errorf("embedding provider is required")
	}
	if c.Storage.Provider == "" {
		return fmt.Errorf("storage provider is required")
	}
	switch c.Storage.Provider {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("sqlite storage requires a path")
		}
	case "postgres", "mysql":
		if c.Storage.Host == "" || c.Storage.DBName == "" {
			return fmt.Errorf("%s storage requires host and db name", c.Storage.Provider)
		}
	case "chromem":
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
