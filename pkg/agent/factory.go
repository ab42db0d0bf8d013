package agent

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sentio-ai/sentio-go/pkg/embedder"
	embmock "github.com/sentio-ai/sentio-go/pkg/embedder/mock"
	embopenai "github.com/sentio-ai/sentio-go/pkg/embedder/openai"
	"github.com/sentio-ai/sentio-go/pkg/llm"
	llmanthropic "github.com/sentio-ai/sentio-go/pkg/llm/anthropic"
	llmollama "github.com/sentio-ai/sentio-go/pkg/llm/ollama"
	llmopenai "github.com/sentio-ai/sentio-go/pkg/llm/openai"
	"github.com/sentio-ai/sentio-go/pkg/memory"
	"github.com/sentio-ai/sentio-go/pkg/planner"
	"github.com/sentio-ai/sentio-go/pkg/storage"
	storagechromem "github.com/sentio-ai/sentio-go/pkg/storage/chromem"
	storagemysql "github.com/sentio-ai/sentio-go/pkg/storage/mysql"
	storagepostgres "github.com/sentio-ai/sentio-go/pkg/storage/postgres"
	storagesqlite "github.com/sentio-ai/sentio-go/pkg/storage/sqlite"
)

// New builds a fully wired agent core from a Config: storage backend,
// embedding provider, LLM provider, memory hub, planner, and defaults for
// the remaining collaborators.
//
// Example:
//
//	cfg, err := agent.LoadConfigFromEnv()
//	core, err := agent.New(cfg, logger)
//	envelope, err := core.Process(ctx, "hello", "user-1")
func New(cfg *Config, logger zerolog.Logger) (*Core, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &AgentError{Op: "new", Err: err}
	}

	store, err := newStore(&cfg.Storage)
	if err != nil {
		return nil, &AgentError{Op: "new", Err: err}
	}
	emb, err := newEmbedder(&cfg.Embedder)
	if err != nil {
		return nil, &AgentError{Op: "new", Err: err}
	}
	provider, err := newLLM(&cfg.LLM)
	if err != nil {
		return nil, &AgentError{Op: "new", Err: err}
	}

	hub, err := memory.NewHub(&memory.HubConfig{
		Store:    store,
		Embedder: emb,
		Logger:   logger,
	})
	if err != nil {
		return nil, &AgentError{Op: "new", Err: err}
	}

	return NewCore(&CoreConfig{
		Hub:      hub,
		Planner:  planner.New(&planner.Config{Logger: logger}),
		LLM:      provider,
		Logger:   logger,
		Pipeline: cfg.Pipeline,
	})
}

// newStore creates the configured storage backend.
func newStore(cfg *StorageConfig) (storage.Store, error) {
	table := cfg.Table
	if table == "" {
		table = "memories"
	}

	switch cfg.Provider {
	case "sqlite":
		return storagesqlite.NewClient(&storagesqlite.Config{
			DBPath:    cfg.Path,
			TableName: table,
		})
	case "postgres":
		return storagepostgres.NewClient(&storagepostgres.Config{
			Host:               cfg.Host,
			Port:               cfg.Port,
			User:               cfg.User,
			Password:           cfg.Password,
			DBName:             cfg.DBName,
			TableName:          table,
			EmbeddingModelDims: cfg.Dimensions,
		})
	case "mysql":
		return storagemysql.NewClient(&storagemysql.Config{
			Host:      cfg.Host,
			Port:      cfg.Port,
			User:      cfg.User,
			Password:  cfg.Password,
			DBName:    cfg.DBName,
			TableName: table,
		})
	case "chromem":
		return storagechromem.NewClient()
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}

// newEmbedder creates the configured embedding provider.
func newEmbedder(cfg *ProviderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return embopenai.NewClient(&embopenai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "mock":
		return embmock.New(cfg.Dimensions), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// newLLM creates the configured language model provider.
func newLLM(cfg *ProviderConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return llmopenai.NewClient(&llmopenai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "anthropic":
		return llmanthropic.NewClient(&llmanthropic.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		return llmollama.NewClient(&llmollama.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
