package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SecretsManagerClientAPI defines the AWS Secrets Manager operations used by
// this store. Narrow on purpose so tests can mock it.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// STSClientAPI defines the STS operations used for credential validation
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSSecretsManagerStore fetches credential payloads from AWS Secrets Manager
type AWSSecretsManagerStore struct {
	name      string
	client    SecretsManagerClientAPI
	stsClient STSClientAPI
	region    string
	endpoint  string // Optional custom endpoint for LocalStack or testing
}

// AWSStoreOption is a functional option for configuring the AWS store
type AWSStoreOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSStoreOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing)
func WithSTSClient(client STSClientAPI) AWSStoreOption {
	return func(s *AWSSecretsManagerStore) {
		s.stsClient = client
	}
}

// NewAWSSecretsManagerStore creates a new AWS Secrets Manager store
func NewAWSSecretsManagerStore(name string, storeConfig map[string]interface{}, opts ...AWSStoreOption) (*AWSSecretsManagerStore, error) {
	region := "us-east-1"
	if r, ok := storeConfig["region"].(string); ok && r != "" {
		region = r
	}

	var endpoint string
	if e, ok := storeConfig["endpoint"].(string); ok && e != "" {
		endpoint = e
	}

	// Optional static credentials for LocalStack/testing
	var accessKeyID, secretAccessKey string
	if ak, ok := storeConfig["access_key_id"].(string); ok && ak != "" {
		accessKeyID = ak
	}
	if sk, ok := storeConfig["secret_access_key"].(string); ok && sk != "" {
		secretAccessKey = sk
	}

	s := &AWSSecretsManagerStore{
		name:     name,
		region:   region,
		endpoint: endpoint,
	}

	for _, opt := range opts {
		opt(s)
	}

	// If no client was injected, create the real one
	if s.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(region))

		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
		s.stsClient = sts.NewFromConfig(cfg)
	}

	return s, nil
}

// NewAWSSecretsManagerStoreFactory adapts the constructor to the registry signature
func NewAWSSecretsManagerStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewAWSSecretsManagerStore(name, cfg)
}

// Name returns the store name
func (s *AWSSecretsManagerStore) Name() string {
	return s.name
}

// Fetch retrieves the current value stored under key
func (s *AWSSecretsManagerStore) Fetch(ctx context.Context, key string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: &key,
	}

	result, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		return "", s.handleError(err, key)
	}

	var payload string
	if result.SecretString != nil {
		payload = *result.SecretString
	} else if result.SecretBinary != nil {
		payload = string(result.SecretBinary)
	}
	if payload == "" {
		return "", fmt.Errorf("secret '%s' has no value", key)
	}

	return payload, nil
}

// Validate checks that AWS credentials are configured and usable
func (s *AWSSecretsManagerStore) Validate(ctx context.Context) error {
	if s.stsClient == nil {
		return nil
	}

	if _, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("AWS authentication failed: %v", err),
		}
	}
	return nil
}

// handleError converts AWS errors to store errors
func (s *AWSSecretsManagerStore) handleError(err error, key string) error {
	if isAWSNotFoundError(err) {
		return &NotFoundError{
			Store: s.name,
			Key:   key,
		}
	}

	if isAWSAuthError(err) {
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("AWS authentication/authorization failed: %v", err),
		}
	}

	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

func isAWSNotFoundError(err error) bool {
	var resourceNotFound *smtypes.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}

func isAWSAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "UnauthorizedOperation") ||
		strings.Contains(errStr, "InvalidUserID") ||
		strings.Contains(errStr, "Forbidden")
}
