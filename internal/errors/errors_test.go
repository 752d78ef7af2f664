package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	cwerrors "github.com/systmms/credwatch/internal/errors"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := cwerrors.UserError{
		Message:    "Failed to load credentials",
		Details:    "connection refused",
		Suggestion: "Check your network and store configuration",
	}

	msg := err.Error()
	assert.Contains(t, msg, "Failed to load credentials")
	assert.Contains(t, msg, "Details: connection refused")
	assert.Contains(t, msg, "Try: Check your network")
}

func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := stderrors.New("boom")
	err := cwerrors.UserError{Message: "outer", Err: inner}

	assert.True(t, stderrors.Is(err, inner))
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := cwerrors.ConfigError{
		Field:      "watch.interval",
		Value:      "-5s",
		Message:    "interval must be positive",
		Suggestion: "Use a duration like '30s' or '5m'",
	}

	msg := err.Error()
	assert.Contains(t, msg, "watch.interval")
	assert.Contains(t, msg, "-5s")
	assert.Contains(t, msg, "interval must be positive")
}

func TestStoreErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		store    string
		err      error
		wantHint string
	}{
		{
			name:     "aws_access_denied",
			store:    "aws.secretsmanager",
			err:      stderrors.New("AccessDenied: not authorized"),
			wantHint: "IAM permissions",
		},
		{
			name:     "gcp_not_found",
			store:    "gcp.secretmanager",
			err:      stderrors.New("rpc error: code = NotFound"),
			wantHint: "gcloud secrets list",
		},
		{
			name:     "azure_auth",
			store:    "azure.keyvault",
			err:      stderrors.New("AADSTS700016: application not found"),
			wantHint: "az login",
		},
		{
			name:     "vault_permission",
			store:    "vault",
			err:      stderrors.New("vault returned status 403: permission denied"),
			wantHint: "Vault token",
		},
		{
			name:     "generic_timeout",
			store:    "unknown",
			err:      stderrors.New("request timeout"),
			wantHint: "timed out",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := cwerrors.StoreError(tt.store, "fetch", tt.err)
			assert.Contains(t, wrapped.Error(), tt.wantHint)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, cwerrors.IsRetryable(nil))
	assert.True(t, cwerrors.IsRetryable(stderrors.New("ThrottlingException: slow down")))
	assert.True(t, cwerrors.IsRetryable(stderrors.New("i/o timeout")))
	assert.False(t, cwerrors.IsRetryable(stderrors.New("malformed payload")))
}
