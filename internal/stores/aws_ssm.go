package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMClientAPI defines the AWS SSM Parameter Store operations used by this
// store. Narrow on purpose so tests can mock it.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSSSMStore fetches credential payloads from AWS SSM Parameter Store
type AWSSSMStore struct {
	name   string
	client SSMClientAPI
	config SSMConfig
}

// SSMConfig holds AWS SSM-specific configuration
type SSMConfig struct {
	Region          string
	Profile         string
	WithDecryption  bool
	ParameterPrefix string
}

// SSMStoreOption is a functional option for configuring the SSM store
type SSMStoreOption func(*AWSSSMStore)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) SSMStoreOption {
	return func(s *AWSSSMStore) {
		s.client = client
	}
}

// NewAWSSSMStore creates a new AWS SSM Parameter Store store
func NewAWSSSMStore(name string, configMap map[string]interface{}, opts ...SSMStoreOption) (*AWSSSMStore, error) {
	cfg := SSMConfig{
		WithDecryption: true, // SecureString parameters are the normal case
	}

	if region, ok := configMap["region"].(string); ok {
		cfg.Region = region
	}
	if profile, ok := configMap["profile"].(string); ok {
		cfg.Profile = profile
	}
	if decrypt, ok := configMap["with_decryption"].(bool); ok {
		cfg.WithDecryption = decrypt
	}
	if prefix, ok := configMap["parameter_prefix"].(string); ok {
		cfg.ParameterPrefix = prefix
	}

	s := &AWSSSMStore{
		name:   name,
		config: cfg,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createSSMClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSM client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// NewAWSSSMStoreFactory adapts the constructor to the registry signature
func NewAWSSSMStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewAWSSSMStore(name, cfg)
}

func createSSMClient(cfg SSMConfig) (*ssm.Client, error) {
	var configOpts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return ssm.NewFromConfig(awsCfg), nil
}

// Name returns the store name
func (s *AWSSSMStore) Name() string {
	return s.name
}

// Fetch retrieves the current parameter value stored under key
func (s *AWSSSMStore) Fetch(ctx context.Context, key string) (string, error) {
	parameterName := s.parameterName(key)

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(parameterName),
		WithDecryption: aws.Bool(s.config.WithDecryption),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", &NotFoundError{Store: s.name, Key: parameterName}
		}
		if isAWSAuthError(err) {
			return "", &AuthError{
				Store:   s.name,
				Message: fmt.Sprintf("AWS authentication/authorization failed: %v", err),
			}
		}
		return "", fmt.Errorf("AWS SSM error: %w", err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("parameter '%s' has no value", parameterName)
	}

	return *result.Parameter.Value, nil
}

// Validate checks connectivity by fetching a well-known path prefix marker.
// SSM has no cheap identity call, so a not-found answer still proves auth.
func (s *AWSSSMStore) Validate(ctx context.Context) error {
	_, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.parameterName("credwatch-validate")),
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return &AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("AWS SSM validation failed: %v", err),
		}
	}
	return nil
}

func (s *AWSSSMStore) parameterName(key string) string {
	if s.config.ParameterPrefix == "" {
		return key
	}
	return strings.TrimSuffix(s.config.ParameterPrefix, "/") + "/" + strings.TrimPrefix(key, "/")
}
