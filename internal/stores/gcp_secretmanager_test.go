package stores_test

import (
	"context"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/credwatch/internal/stores"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newGCPStore(t *testing.T, values map[string]string, calls *[]string) *stores.GCPSecretManagerStore {
	t.Helper()

	accessor := func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		if calls != nil {
			*calls = append(*calls, req.Name)
		}
		value, ok := values[req.Name]
		if !ok {
			return nil, status.Error(codes.NotFound, "secret version not found")
		}
		return &secretmanagerpb.AccessSecretVersionResponse{
			Name:    req.Name,
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}

	s, err := stores.NewGCPSecretManagerStore("gcp.secretmanager",
		map[string]interface{}{"project_id": "test-project"},
		stores.WithGCPAccessor(accessor),
	)
	require.NoError(t, err)
	return s
}

func TestGCPFetchBuildsResourceName(t *testing.T) {
	t.Parallel()

	var calls []string
	s := newGCPStore(t, map[string]string{
		"projects/test-project/secrets/streaming-broker-credentials/versions/latest": `{"key":"ABCDEF","secret":"s1"}`,
	}, &calls)

	value, err := s.Fetch(context.Background(), "streaming/broker/credentials")
	require.NoError(t, err)
	assert.Equal(t, `{"key":"ABCDEF","secret":"s1"}`, value)
	require.Len(t, calls, 1)
	assert.Equal(t, "projects/test-project/secrets/streaming-broker-credentials/versions/latest", calls[0])
}

func TestGCPFetchNotFound(t *testing.T) {
	t.Parallel()

	s := newGCPStore(t, map[string]string{}, nil)

	_, err := s.Fetch(context.Background(), "missing")
	require.Error(t, err)

	var notFound *stores.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGCPRequiresProjectID(t *testing.T) {
	// No t.Parallel: depends on ambient GOOGLE_CLOUD_PROJECT being unset.
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	_, err := stores.NewGCPSecretManagerStore("gcp.secretmanager", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id")
}

func TestGCPValidateTreatsNotFoundAsHealthy(t *testing.T) {
	t.Parallel()

	s := newGCPStore(t, map[string]string{}, nil)
	assert.NoError(t, s.Validate(context.Background()))
}
