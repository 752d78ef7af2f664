package commands

import (
	"fmt"

	"github.com/systmms/credwatch/internal/config"
	cwerrors "github.com/systmms/credwatch/internal/errors"
	"github.com/systmms/credwatch/internal/secure"
	"github.com/systmms/credwatch/internal/stores"
	"github.com/systmms/credwatch/pkg/credential"
	"github.com/systmms/credwatch/pkg/watcher"
)

// buildStore creates the configured secret store instance.
func buildStore(cfg *config.Config) (stores.Store, error) {
	registry := stores.NewRegistry()
	store, err := registry.Create(cfg.Definition.Store)
	if err != nil {
		return nil, cwerrors.ConfigError{
			Field:      "store.type",
			Value:      cfg.Definition.Store.Type,
			Message:    err.Error(),
			Suggestion: fmt.Sprintf("Supported store types: %v", registry.Types()),
		}
	}
	return store, nil
}

// trackedSecrets builds the watcher's secret list from the config, resolving
// any local-development overrides into preloaded values. Override payloads
// pass through a secure buffer so the plaintext is wiped after parsing.
func trackedSecrets(cfg *config.Config) ([]watcher.TrackedSecret, error) {
	declared := cfg.Definition.Secrets
	tracked := make([]watcher.TrackedSecret, 0, len(declared))
	for _, sc := range declared {
		ts := watcher.TrackedSecret{
			Name:     sc.Name,
			StoreKey: sc.StoreKey,
		}
		if sc.Override != nil {
			value, err := resolveOverride(sc)
			if err != nil {
				return nil, err
			}
			ts.Preloaded = &value
			cfg.Logger.Debug("Using local override for %s", sc.Name)
		}
		tracked = append(tracked, ts)
	}
	return tracked, nil
}

func resolveOverride(sc config.SecretConfig) (credential.Value, error) {
	raw := sc.Override.Literal
	if ref := sc.Override.Keyring; ref != nil {
		entry, err := stores.FetchKeyringEntry(ref.Service, ref.User)
		if err != nil {
			return credential.Value{}, cwerrors.UserError{
				Message:    fmt.Sprintf("Failed to read keyring override for secret '%s'", sc.Name),
				Suggestion: fmt.Sprintf("Check that keyring entry service=%q user=%q exists", ref.Service, ref.User),
				Err:        err,
			}
		}
		raw = entry
	}

	buf := secure.NewBufferFromString(raw)
	defer buf.Destroy()

	var value credential.Value
	err := buf.WithString(func(plaintext string) error {
		parsed, parseErr := credential.Parse(plaintext)
		if parseErr != nil {
			return parseErr
		}
		value = parsed
		return nil
	})
	if err != nil {
		return credential.Value{}, cwerrors.UserError{
			Message:    fmt.Sprintf("Override payload for secret '%s' is not a valid credential", sc.Name),
			Suggestion: `The payload must be a JSON object with non-empty "key" and "secret" fields`,
			Err:        err,
		}
	}
	return value, nil
}
