package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/credwatch/internal/config"
	cwerrors "github.com/systmms/credwatch/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 1
store:
  type: aws.secretsmanager
  region: eu-west-1
watch:
  enabled: true
  interval: 30s
secrets:
  - name: broker
    store_key: streaming/broker/credentials
  - name: schema-registry
    store_key: streaming/schema-registry/credentials
    override:
      keyring:
        service: credwatch
        user: schema-registry
`)

	cfg := &config.Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "aws.secretsmanager", def.Store.Type)
	assert.Equal(t, "eu-west-1", def.Store.Config["region"])
	assert.True(t, def.WatchEnabled())
	assert.Equal(t, 30*time.Second, def.PollInterval())

	require.Len(t, def.Secrets, 2)
	assert.Equal(t, "broker", def.Secrets[0].Name)
	assert.Equal(t, config.DefaultBrokerStoreKey, def.Secrets[0].StoreKey)
	require.NotNil(t, def.Secrets[1].Override)
	assert.Equal(t, "credwatch", def.Secrets[1].Override.Keyring.Service)
}

func TestLoadDefaultsSecretsAndInterval(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 1
store:
  type: static
`)

	cfg := &config.Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.True(t, def.WatchEnabled())
	assert.Equal(t, config.DefaultPollInterval, def.PollInterval())

	require.Len(t, def.Secrets, 2)
	assert.Equal(t, config.DefaultBrokerStoreKey, def.Secrets[0].StoreKey)
	assert.Equal(t, config.DefaultSchemaRegistryStoreKey, def.Secrets[1].StoreKey)
}

func TestWatchDisabled(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 1
store:
  type: static
watch:
  enabled: false
`)

	cfg := &config.Config{Path: path}
	require.NoError(t, cfg.Load())
	assert.False(t, cfg.Definition.WatchEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr cwerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			name:    "bad_version",
			content: "version: 2\nstore:\n  type: static\n",
			wantIn:  "version",
		},
		{
			name:    "missing_store_type",
			content: "version: 1\nstore: {}\n",
			wantIn:  "store.type",
		},
		{
			name:    "bad_interval",
			content: "version: 1\nstore:\n  type: static\nwatch:\n  interval: soon\n",
			wantIn:  "duration",
		},
		{
			name: "duplicate_secret_name",
			content: `version: 1
store:
  type: static
secrets:
  - name: broker
    store_key: a
  - name: broker
    store_key: b
`,
			wantIn: "duplicate",
		},
		{
			name: "missing_store_key",
			content: `version: 1
store:
  type: static
secrets:
  - name: broker
`,
			wantIn: "store_key",
		},
		{
			name: "ambiguous_override",
			content: `version: 1
store:
  type: static
secrets:
  - name: broker
    store_key: a
    override:
      literal: '{"key":"A","secret":"B"}'
      keyring:
        service: credwatch
        user: broker
`,
			wantIn: "not both",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{Path: writeConfig(t, tt.content)}
			err := cfg.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantIn)
		})
	}
}
