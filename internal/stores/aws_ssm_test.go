package stores_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/credwatch/internal/stores"
)

// mockSSMClient implements stores.SSMClientAPI
type mockSSMClient struct {
	values map[string]string
	calls  []string
}

func (m *mockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.calls = append(m.calls, *params.Name)
	value, ok := m.values[*params.Name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(value)},
	}, nil
}

func TestSSMFetchWithPrefix(t *testing.T) {
	t.Parallel()

	client := &mockSSMClient{values: map[string]string{
		"/credwatch/streaming/broker/credentials": `{"key":"ABCDEF","secret":"s1"}`,
	}}
	s, err := stores.NewAWSSSMStore("aws.ssm",
		map[string]interface{}{"parameter_prefix": "/credwatch"},
		stores.WithSSMClient(client),
	)
	require.NoError(t, err)

	value, err := s.Fetch(context.Background(), "streaming/broker/credentials")
	require.NoError(t, err)
	assert.Equal(t, `{"key":"ABCDEF","secret":"s1"}`, value)
}

func TestSSMFetchNotFound(t *testing.T) {
	t.Parallel()

	s, err := stores.NewAWSSSMStore("aws.ssm", map[string]interface{}{},
		stores.WithSSMClient(&mockSSMClient{values: map[string]string{}}))
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), "missing")
	require.Error(t, err)

	var notFound *stores.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSSMValidateTreatsNotFoundAsHealthy(t *testing.T) {
	t.Parallel()

	s, err := stores.NewAWSSSMStore("aws.ssm", map[string]interface{}{},
		stores.WithSSMClient(&mockSSMClient{values: map[string]string{}}))
	require.NoError(t, err)

	assert.NoError(t, s.Validate(context.Background()))
}
