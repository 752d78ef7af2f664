package stores

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const vaultDefaultTimeout = 30 * time.Second

// VaultConfig holds HashiCorp Vault-specific configuration
type VaultConfig struct {
	Address   string // Vault server address
	Token     string // Vault token (discouraged, prefer VAULT_TOKEN)
	Namespace string // Vault namespace (Vault Enterprise)
	Mount     string // KV v2 mount point, default "secret"
	TLSSkip   bool   // Skip TLS verification (not recommended)
}

// VaultStore fetches credential payloads from a HashiCorp Vault KV v2 mount.
// Store keys map to KV paths: key "streaming/broker/credentials" reads
// "<mount>/data/streaming/broker/credentials" and expects the secret's data
// to hold the payload under the "payload" field, or to be the two-field
// credential document itself.
type VaultStore struct {
	name       string
	config     VaultConfig
	httpClient *http.Client
}

// VaultStoreOption is a functional option for configuring the Vault store
type VaultStoreOption func(*VaultStore)

// WithVaultHTTPClient sets a custom HTTP client (for testing)
func WithVaultHTTPClient(client *http.Client) VaultStoreOption {
	return func(s *VaultStore) {
		s.httpClient = client
	}
}

// NewVaultStore creates a new Vault store
func NewVaultStore(name string, configMap map[string]interface{}, opts ...VaultStoreOption) (*VaultStore, error) {
	cfg := VaultConfig{Mount: "secret"}

	if addr, ok := configMap["address"].(string); ok {
		cfg.Address = addr
	}
	if cfg.Address == "" {
		cfg.Address = os.Getenv("VAULT_ADDR")
	}
	if token, ok := configMap["token"].(string); ok {
		cfg.Token = token
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("VAULT_TOKEN")
	}
	if ns, ok := configMap["namespace"].(string); ok {
		cfg.Namespace = ns
	}
	if mount, ok := configMap["mount"].(string); ok && mount != "" {
		cfg.Mount = mount
	}
	if skip, ok := configMap["tls_skip"].(bool); ok {
		cfg.TLSSkip = skip
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address is required (set 'address' or VAULT_ADDR)")
	}

	s := &VaultStore{
		name:   name,
		config: cfg,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		transport := &http.Transport{}
		if cfg.TLSSkip {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		s.httpClient = &http.Client{
			Timeout:   vaultDefaultTimeout,
			Transport: transport,
		}
	}

	return s, nil
}

// NewVaultStoreFactory adapts the constructor to the registry signature
func NewVaultStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewVaultStore(name, cfg)
}

// Name returns the store name
func (s *VaultStore) Name() string {
	return s.name
}

// Fetch retrieves the current value stored under key
func (s *VaultStore) Fetch(ctx context.Context, key string) (string, error) {
	path := s.config.Mount + "/data/" + strings.Trim(key, "/")

	body, statusCode, err := s.request(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault request failed: %w", err)
	}

	switch {
	case statusCode == http.StatusNotFound:
		return "", &NotFoundError{Store: s.name, Key: key}
	case statusCode == http.StatusForbidden:
		return "", &AuthError{Store: s.name, Message: "permission denied for " + path}
	case statusCode != http.StatusOK:
		return "", fmt.Errorf("vault returned status %d: %s", statusCode, string(body))
	}

	// KV v2 wraps the stored fields one level deeper than KV v1.
	var response struct {
		Data struct {
			Data map[string]interface{} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode vault response: %w", err)
	}
	if len(response.Data.Data) == 0 {
		return "", fmt.Errorf("secret '%s' has no data", key)
	}

	if payload, ok := response.Data.Data["payload"].(string); ok {
		return payload, nil
	}

	// No payload field: re-encode the stored fields as the document itself.
	raw, err := json.Marshal(response.Data.Data)
	if err != nil {
		return "", fmt.Errorf("failed to encode vault secret data: %w", err)
	}
	return string(raw), nil
}

// Validate checks connectivity and token validity via token self-lookup
func (s *VaultStore) Validate(ctx context.Context) error {
	body, statusCode, err := s.request(ctx, "auth/token/lookup-self")
	if err != nil {
		return fmt.Errorf("vault unreachable: %w", err)
	}
	if statusCode != http.StatusOK {
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("token lookup returned status %d: %s", statusCode, string(body)),
		}
	}
	return nil
}

func (s *VaultStore) request(ctx context.Context, path string) ([]byte, int, error) {
	if s.config.Token == "" {
		return nil, 0, fmt.Errorf("not authenticated: no vault token configured")
	}

	url := strings.TrimSuffix(s.config.Address, "/") + "/v1/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Vault-Token", s.config.Token)
	if s.config.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", s.config.Namespace)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}
