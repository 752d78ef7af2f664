package stores_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/credwatch/internal/stores"
)

// mockKeyVaultClient implements stores.AzureKeyVaultClientAPI
type mockKeyVaultClient struct {
	values map[string]string
	calls  []string
}

func (m *mockKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	m.calls = append(m.calls, name)
	value, ok := m.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "SecretNotFound"}
	}
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{Value: &value},
	}, nil
}

func newAzureStore(t *testing.T, client stores.AzureKeyVaultClientAPI) *stores.AzureKeyVaultStore {
	t.Helper()
	s, err := stores.NewAzureKeyVaultStore("azure.keyvault",
		map[string]interface{}{"vault_url": "https://test.vault.azure.net/"},
		stores.WithAzureKeyVaultClient(client),
	)
	require.NoError(t, err)
	return s
}

func TestAzureKeyVaultFetchFlattensKey(t *testing.T) {
	t.Parallel()

	client := &mockKeyVaultClient{values: map[string]string{
		"streaming-broker-credentials": `{"key":"ABCDEF","secret":"s1"}`,
	}}
	s := newAzureStore(t, client)

	value, err := s.Fetch(context.Background(), "streaming/broker/credentials")
	require.NoError(t, err)
	assert.Equal(t, `{"key":"ABCDEF","secret":"s1"}`, value)
	assert.Equal(t, []string{"streaming-broker-credentials"}, client.calls)
}

func TestAzureKeyVaultFetchNotFound(t *testing.T) {
	t.Parallel()

	s := newAzureStore(t, &mockKeyVaultClient{values: map[string]string{}})

	_, err := s.Fetch(context.Background(), "missing")
	require.Error(t, err)

	var notFound *stores.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestAzureKeyVaultRequiresVaultURL(t *testing.T) {
	t.Parallel()

	_, err := stores.NewAzureKeyVaultStore("azure.keyvault", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault_url")
}

func TestAzureKeyVaultValidateTreatsNotFoundAsHealthy(t *testing.T) {
	t.Parallel()

	s := newAzureStore(t, &mockKeyVaultClient{values: map[string]string{}})
	assert.NoError(t, s.Validate(context.Background()))
}
