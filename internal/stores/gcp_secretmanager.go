package stores

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	cwerrors "github.com/systmms/credwatch/internal/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerStore fetches credential payloads from Google Cloud
// Secret Manager.
type GCPSecretManagerStore struct {
	name      string
	client    gcpAccessor
	projectID string
}

// gcpAccessor narrows the real client to the single call we make, so a mock
// can stand in without pulling gax option types into the interface.
type gcpAccessor func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)

// GCPStoreOption is a functional option for configuring the GCP store
type GCPStoreOption func(*GCPSecretManagerStore)

// WithGCPAccessor sets a custom secret accessor (for testing)
func WithGCPAccessor(accessor func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)) GCPStoreOption {
	return func(s *GCPSecretManagerStore) {
		s.client = accessor
	}
}

// NewGCPSecretManagerStore creates a new GCP Secret Manager store
func NewGCPSecretManagerStore(name string, configMap map[string]interface{}, opts ...GCPStoreOption) (*GCPSecretManagerStore, error) {
	projectID := ""
	if p, ok := configMap["project_id"].(string); ok {
		projectID = p
	}
	if projectID == "" {
		projectID = gcpProjectIDFromEnv()
	}
	if projectID == "" {
		return nil, cwerrors.ConfigError{
			Field:      "project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set project_id in config or the GOOGLE_CLOUD_PROJECT environment variable",
		}
	}

	s := &GCPSecretManagerStore{
		name:      name,
		projectID: projectID,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createGCPClient(configMap)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		s.client = func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return client.AccessSecretVersion(ctx, req)
		}
	}

	return s, nil
}

// NewGCPSecretManagerStoreFactory adapts the constructor to the registry signature
func NewGCPSecretManagerStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewGCPSecretManagerStore(name, cfg)
}

func createGCPClient(configMap map[string]interface{}) (*secretmanager.Client, error) {
	ctx := context.Background()

	var clientOptions []option.ClientOption
	if keyPath, ok := configMap["service_account_key_path"].(string); ok && keyPath != "" {
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
	}

	return secretmanager.NewClient(ctx, clientOptions...)
}

func gcpProjectIDFromEnv() string {
	for _, env := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if projectID := os.Getenv(env); projectID != "" {
			return projectID
		}
	}
	return ""
}

// Name returns the store name
func (s *GCPSecretManagerStore) Name() string {
	return s.name
}

// Fetch retrieves the latest version of the secret stored under key.
// Slashes in the key are flattened to dashes: GCP secret IDs cannot contain
// path separators, and the provisioning side applies the same mapping.
func (s *GCPSecretManagerStore) Fetch(ctx context.Context, key string) (string, error) {
	resourceName := s.resourceName(key)

	result, err := s.client(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", s.handleError(err, key)
	}

	if result.Payload == nil || len(result.Payload.Data) == 0 {
		return "", fmt.Errorf("secret '%s' has no data", key)
	}

	return string(result.Payload.Data), nil
}

// Validate checks connectivity by probing a marker secret. A NotFound answer
// still proves the project is reachable and the caller is authenticated.
func (s *GCPSecretManagerStore) Validate(ctx context.Context) error {
	_, err := s.client(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.resourceName("credwatch-validate"),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("GCP Secret Manager validation failed: %v", err),
		}
	}
	return nil
}

func (s *GCPSecretManagerStore) resourceName(key string) string {
	secretID := strings.ReplaceAll(strings.Trim(key, "/"), "/", "-")
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, secretID)
}

func (s *GCPSecretManagerStore) handleError(err error, key string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return &NotFoundError{Store: s.name, Key: key}
	case codes.PermissionDenied, codes.Unauthenticated:
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("GCP authentication/authorization failed: %v", err),
		}
	default:
		return fmt.Errorf("GCP Secret Manager error: %w", err)
	}
}
