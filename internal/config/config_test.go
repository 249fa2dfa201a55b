package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresWorkspace(t *testing.T) {
	t.Setenv("WORKSPACE", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKSPACE")
}

func TestLoadAppliesTestProfile(t *testing.T) {
	t.Setenv("WORKSPACE", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mock://dspace.edu/rest/", cfg.DSpaceAPIURL)
	assert.Equal(t, "test_queue_with_messages", cfg.InputQueue)
	assert.Equal(t, []string{"empty_result_queue"}, cfg.OutputQueues)
	assert.False(t, cfg.SkipProcessing)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("WORKSPACE", "prod")
	t.Setenv("DSPACE_API_URL", "https://dspace.example.edu/rest/")
	t.Setenv("OUTPUT_QUEUES", "result-a, result-b")
	t.Setenv("SKIP_PROCESSING", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://dspace.example.edu/rest/", cfg.DSpaceAPIURL)
	assert.Equal(t, []string{"result-a", "result-b"}, cfg.OutputQueues)
	assert.True(t, cfg.SkipProcessing)
}

func TestRepositoryCredentialsFor(t *testing.T) {
	cfg := &Config{
		DSpaceAPIURL:   "https://dspace.example.edu/rest/",
		DSpaceUser:     "user",
		DSpacePassword: "pass",
		DSpaceTimeout:  120.0,
	}

	creds, ok := cfg.RepositoryCredentialsFor("DSpace@MIT")
	require.True(t, ok)
	assert.Equal(t, "https://dspace.example.edu/rest/", creds.URL)

	_, ok = cfg.RepositoryCredentialsFor("unknown")
	assert.False(t, ok)
}

func TestOutputQueueAllowed(t *testing.T) {
	cfg := &Config{OutputQueues: []string{"a", "b"}}
	assert.True(t, cfg.OutputQueueAllowed("a"))
	assert.False(t, cfg.OutputQueueAllowed("c"))
}

func TestResolveSecretsNoopWithoutSSMPath(t *testing.T) {
	cfg := &Config{DSpacePassword: "env-password"}
	require.NoError(t, cfg.ResolveSecrets(context.Background()))
	assert.Equal(t, "env-password", cfg.DSpacePassword)
}
