package agent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/agent"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := agent.DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "chromem", cfg.Storage.Provider)
	assert.Equal(t, "mock", cfg.Embedder.Provider)
	assert.Equal(t, 5, cfg.Pipeline.RetrievalTopK)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("STORAGE_PROVIDER", "chromem")
	t.Setenv("SENTIO_LLM_TIMEOUT_SECONDS", "45")
	t.Setenv("SENTIO_RETRIEVAL_TOP_K", "7")

	cfg, err := agent.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.LLMTimeout)
	assert.Equal(t, 7, cfg.Pipeline.RetrievalTopK)
}

func TestValidateRejectsIncompleteStorage(t *testing.T) {
	cfg := agent.DefaultConfig()
	cfg.Storage = agent.StorageConfig{Provider: "sqlite"}
	assert.Error(t, cfg.Validate(), "sqlite needs a path")

	cfg.Storage = agent.StorageConfig{Provider: "postgres", Host: "localhost"}
	assert.Error(t, cfg.Validate(), "postgres needs a db name")

	cfg.Storage = agent.StorageConfig{Provider: "leveldb"}
	assert.Error(t, cfg.Validate(), "unknown providers are rejected")

	cfg.Storage = agent.StorageConfig{
		Provider: "postgres",
		Host:     "localhost",
		Port:     5432,
		DBName:   "sentio",
	}
	assert.NoError(t, cfg.Validate())
}
