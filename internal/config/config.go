package config

import (
	"fmt"
	"os"
	"time"

	cwerrors "github.com/systmms/credwatch/internal/errors"
	"github.com/systmms/credwatch/internal/logging"
	"gopkg.in/yaml.v3"
)

// Fixed store keys for the two tracked credential entries. These are part of
// the wire contract with the provisioning side and must be used verbatim
// unless overridden in credwatch.yaml.
const (
	DefaultBrokerStoreKey         = "streaming/broker/credentials"
	DefaultSchemaRegistryStoreKey = "streaming/schema-registry/credentials"
)

// DefaultPollInterval is the recurring poll interval when none is configured.
const DefaultPollInterval = time.Minute

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the credwatch.yaml structure
type Definition struct {
	Version int            `yaml:"version"`
	Store   StoreConfig    `yaml:"store"`
	Watch   WatchConfig    `yaml:"watch"`
	Secrets []SecretConfig `yaml:"secrets"`
}

// StoreConfig holds secret store-specific configuration
type StoreConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// WatchConfig controls the rotation watch behavior
type WatchConfig struct {
	// Enabled is the feature flag the bootstrap evaluates to decide whether
	// the rotation watcher is constructed at all. Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Interval between poll cycles. Defaults to DefaultPollInterval.
	Interval Duration `yaml:"interval,omitempty"`
}

// SecretConfig declares one tracked secret entry. Order in the YAML list is
// the order secrets are checked each poll cycle.
type SecretConfig struct {
	Name     string          `yaml:"name"`
	StoreKey string          `yaml:"store_key"`
	Override *OverrideConfig `yaml:"override,omitempty"`
}

// OverrideConfig supplies a local-development credential for a tracked
// secret. When present, no store fetch is ever made for that secret.
type OverrideConfig struct {
	// Literal is a raw credential payload embedded in the config file.
	// Development only.
	Literal string `yaml:"literal,omitempty"`

	// Keyring references an OS keychain entry holding the payload.
	Keyring *KeyringRef `yaml:"keyring,omitempty"`
}

// KeyringRef addresses an entry in the OS keychain
type KeyringRef struct {
	Service string `yaml:"service"`
	User    string `yaml:"user"`
}

// Duration wraps time.Duration so intervals can be written as "30s" or "5m"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return cwerrors.ConfigError{
			Field:      "interval",
			Value:      value.Value,
			Message:    "not a valid duration",
			Suggestion: "Use a Go duration like '30s', '1m', or '5m'",
		}
	}
	*d = Duration(parsed)
	return nil
}

// WatchEnabled reports the feature flag, defaulting to enabled.
func (d *Definition) WatchEnabled() bool {
	if d.Watch.Enabled == nil {
		return true
	}
	return *d.Watch.Enabled
}

// PollInterval returns the configured poll interval or the default.
func (d *Definition) PollInterval() time.Duration {
	if d.Watch.Interval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(d.Watch.Interval)
}

// DefaultSecrets returns the fixed broker + schema-registry entries used
// when the config file declares none.
func DefaultSecrets() []SecretConfig {
	return []SecretConfig{
		{Name: "broker", StoreKey: DefaultBrokerStoreKey},
		{Name: "schema-registry", StoreKey: DefaultSchemaRegistryStoreKey},
	}
}

// Load reads and parses the credwatch.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return cwerrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a credwatch.yaml declaring the secret store and tracked secrets",
			}
		}
		return cwerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return cwerrors.ConfigError{
			Field:      "yaml",
			Message:    fmt.Sprintf("failed to parse configuration: %v", err),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if len(def.Secrets) == 0 {
		def.Secrets = DefaultSecrets()
	}

	if err := def.Validate(); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

// Validate checks the definition for structural problems
func (d *Definition) Validate() error {
	if d.Version != 1 {
		return cwerrors.ConfigError{
			Field:      "version",
			Value:      d.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1'",
		}
	}

	if d.Store.Type == "" {
		return cwerrors.ConfigError{
			Field:      "store.type",
			Message:    "secret store type is required",
			Suggestion: "Set store.type to one of: aws.secretsmanager, aws.ssm, gcp.secretmanager, azure.keyvault, vault, keyring, static",
		}
	}

	if d.Watch.Interval < 0 {
		return cwerrors.ConfigError{
			Field:      "watch.interval",
			Value:      time.Duration(d.Watch.Interval).String(),
			Message:    "interval must be positive",
			Suggestion: "Use a duration like '30s' or '5m'",
		}
	}

	seen := make(map[string]bool, len(d.Secrets))
	for i, secret := range d.Secrets {
		if secret.Name == "" {
			return cwerrors.ConfigError{
				Field:   fmt.Sprintf("secrets[%d].name", i),
				Message: "tracked secret name is required",
			}
		}
		if seen[secret.Name] {
			return cwerrors.ConfigError{
				Field:   fmt.Sprintf("secrets[%d].name", i),
				Value:   secret.Name,
				Message: "duplicate tracked secret name",
			}
		}
		seen[secret.Name] = true

		if secret.StoreKey == "" {
			return cwerrors.ConfigError{
				Field:      fmt.Sprintf("secrets[%d].store_key", i),
				Message:    "store key is required",
				Suggestion: fmt.Sprintf("For the broker entry use '%s'", DefaultBrokerStoreKey),
			}
		}

		if secret.Override != nil && secret.Override.Literal != "" && secret.Override.Keyring != nil {
			return cwerrors.ConfigError{
				Field:   fmt.Sprintf("secrets[%d].override", i),
				Message: "override must be either literal or keyring, not both",
			}
		}
		if secret.Override != nil && secret.Override.Keyring != nil {
			if secret.Override.Keyring.Service == "" || secret.Override.Keyring.User == "" {
				return cwerrors.ConfigError{
					Field:   fmt.Sprintf("secrets[%d].override.keyring", i),
					Message: "keyring override requires both service and user",
				}
			}
		}
	}

	return nil
}
