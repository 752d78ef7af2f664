package stores_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/credwatch/internal/stores"
)

func newVaultTestServer(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token/lookup-self", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"id": "test-token"}})
	})
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": data},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newVaultStore(t *testing.T, address, token string) *stores.VaultStore {
	t.Helper()
	s, err := stores.NewVaultStore("vault", map[string]interface{}{
		"address": address,
		"token":   token,
	})
	require.NoError(t, err)
	return s
}

func TestVaultFetchPayloadField(t *testing.T) {
	t.Parallel()

	server := newVaultTestServer(t, map[string]map[string]interface{}{
		"/v1/secret/data/streaming/broker/credentials": {
			"payload": `{"key":"ABCDEF","secret":"s1"}`,
		},
	})
	s := newVaultStore(t, server.URL, "test-token")

	value, err := s.Fetch(context.Background(), "streaming/broker/credentials")
	require.NoError(t, err)
	assert.Equal(t, `{"key":"ABCDEF","secret":"s1"}`, value)
}

func TestVaultFetchStructuredFields(t *testing.T) {
	t.Parallel()

	server := newVaultTestServer(t, map[string]map[string]interface{}{
		"/v1/secret/data/streaming/broker/credentials": {
			"key":    "ABCDEF",
			"secret": "s1",
		},
	})
	s := newVaultStore(t, server.URL, "test-token")

	value, err := s.Fetch(context.Background(), "streaming/broker/credentials")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(value), &decoded))
	assert.Equal(t, "ABCDEF", decoded["key"])
	assert.Equal(t, "s1", decoded["secret"])
}

func TestVaultFetchNotFound(t *testing.T) {
	t.Parallel()

	server := newVaultTestServer(t, nil)
	s := newVaultStore(t, server.URL, "test-token")

	_, err := s.Fetch(context.Background(), "missing")
	require.Error(t, err)

	var notFound *stores.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestVaultFetchPermissionDenied(t *testing.T) {
	t.Parallel()

	server := newVaultTestServer(t, nil)
	s := newVaultStore(t, server.URL, "wrong-token")

	_, err := s.Fetch(context.Background(), "anything")
	require.Error(t, err)

	var authErr *stores.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestVaultValidate(t *testing.T) {
	t.Parallel()

	server := newVaultTestServer(t, nil)

	assert.NoError(t, newVaultStore(t, server.URL, "test-token").Validate(context.Background()))
	assert.Error(t, newVaultStore(t, server.URL, "wrong-token").Validate(context.Background()))
}

func TestVaultRequiresAddress(t *testing.T) {
	// No t.Parallel: depends on ambient VAULT_ADDR being unset.
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")

	_, err := stores.NewVaultStore("vault", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address")
}
