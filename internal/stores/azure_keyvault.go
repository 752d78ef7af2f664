package stores

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	cwerrors "github.com/systmms/credwatch/internal/errors"
)

// AzureKeyVaultClientAPI defines the Azure Key Vault operations used by this
// store. Narrow on purpose so tests can mock it.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultStore fetches credential payloads from Azure Key Vault
type AzureKeyVaultStore struct {
	name     string
	client   AzureKeyVaultClientAPI
	vaultURL string
}

// AzureKeyVaultConfig holds Azure Key Vault-specific configuration
type AzureKeyVaultConfig struct {
	VaultURL           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

// AzureStoreOption is a functional option for configuring the Azure store
type AzureStoreOption func(*AzureKeyVaultStore)

// WithAzureKeyVaultClient sets a custom Key Vault client (for testing)
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureStoreOption {
	return func(s *AzureKeyVaultStore) {
		s.client = client
	}
}

// NewAzureKeyVaultStore creates a new Azure Key Vault store
func NewAzureKeyVaultStore(name string, configMap map[string]interface{}, opts ...AzureStoreOption) (*AzureKeyVaultStore, error) {
	cfg := AzureKeyVaultConfig{}

	if vaultURL, ok := configMap["vault_url"].(string); ok {
		cfg.VaultURL = vaultURL
	}
	if tenantID, ok := configMap["tenant_id"].(string); ok {
		cfg.TenantID = tenantID
	}
	if clientID, ok := configMap["client_id"].(string); ok {
		cfg.ClientID = clientID
	}
	if clientSecret, ok := configMap["client_secret"].(string); ok {
		cfg.ClientSecret = clientSecret
	}
	if useMI, ok := configMap["use_managed_identity"].(bool); ok {
		cfg.UseManagedIdentity = useMI
	}
	if userAssignedID, ok := configMap["user_assigned_identity_id"].(string); ok {
		cfg.UserAssignedID = userAssignedID
	}

	if cfg.VaultURL == "" {
		return nil, cwerrors.ConfigError{
			Field:      "vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if _, err := url.Parse(cfg.VaultURL); err != nil {
		return nil, cwerrors.ConfigError{
			Field:      "vault_url",
			Message:    "Invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	s := &AzureKeyVaultStore{
		name:     name,
		vaultURL: cfg.VaultURL,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createAzureKeyVaultClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// NewAzureKeyVaultStoreFactory adapts the constructor to the registry signature
func NewAzureKeyVaultStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewAzureKeyVaultStore(name, cfg)
}

func createAzureKeyVaultClient(cfg AzureKeyVaultConfig) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		cred, err = azidentity.NewManagedIdentityCredential(nil)
	case cfg.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	return azsecrets.NewClient(cfg.VaultURL, cred, nil)
}

// Name returns the store name
func (s *AzureKeyVaultStore) Name() string {
	return s.name
}

// Fetch retrieves the current value of the secret stored under key.
// Key Vault secret names cannot contain slashes; the same dash-flattening
// mapping as the provisioning side is applied.
func (s *AzureKeyVaultStore) Fetch(ctx context.Context, key string) (string, error) {
	secretName := azureSecretName(key)

	resp, err := s.client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		return "", s.handleError(err, secretName)
	}

	if resp.Value == nil || *resp.Value == "" {
		return "", fmt.Errorf("secret '%s' has no value", secretName)
	}

	return *resp.Value, nil
}

// Validate probes a marker secret; a not-found answer still proves the vault
// is reachable and the caller is authenticated.
func (s *AzureKeyVaultStore) Validate(ctx context.Context) error {
	_, err := s.client.GetSecret(ctx, "credwatch-validate", "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil
		}
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("Azure Key Vault validation failed: %v", err),
		}
	}
	return nil
}

func (s *AzureKeyVaultStore) handleError(err error, secretName string) error {
	if isAzureNotFound(err) {
		return &NotFoundError{Store: s.name, Key: secretName}
	}
	if isAzureAuthError(err) {
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("Azure authentication/authorization failed: %v", err),
		}
	}
	return fmt.Errorf("Azure Key Vault error: %w", err)
}

func azureSecretName(key string) string {
	return strings.ReplaceAll(strings.Trim(key, "/"), "/", "-")
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return strings.Contains(err.Error(), "SecretNotFound")
}

func isAzureAuthError(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 401 || respErr.StatusCode == 403
	}
	errStr := err.Error()
	return strings.Contains(errStr, "AADSTS") || strings.Contains(errStr, "Unauthorized")
}
