package logging_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/credwatch/internal/logging"
)

func TestSecretIsAlwaysRedacted(t *testing.T) {
	t.Parallel()

	s := logging.Secret("hunter2-password")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", s.GoString())
	assert.Equal(t, "value=[REDACTED]", fmt.Sprintf("value=%s", s))
	assert.Equal(t, "value=[REDACTED]", fmt.Sprintf("value=%#v", s))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		secrets []string
		want    string
	}{
		{
			name:    "single_secret",
			input:   "connecting with password=supersecret",
			secrets: []string{"supersecret"},
			want:    "connecting with password=[REDACTED]",
		},
		{
			name:    "multiple_secrets",
			input:   "key=ABCDEF secret=s1value",
			secrets: []string{"ABCDEF", "s1value"},
			want:    "key=[REDACTED] secret=[REDACTED]",
		},
		{
			name:    "short_secrets_left_alone",
			input:   "api key is abc",
			secrets: []string{"abc"},
			want:    "api key is abc",
		},
		{
			name:    "empty_secret_ignored",
			input:   "nothing to hide",
			secrets: []string{""},
			want:    "nothing to hide",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logging.Redact(tt.input, tt.secrets))
		})
	}
}
