package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringStore reads credential payloads from the OS keychain (macOS
// Keychain, Linux Secret Service, Windows Credential Manager). This is the
// local-development source: entries are seeded by hand and never rotate.
type KeyringStore struct {
	name    string
	service string
}

// NewKeyringStore creates a new OS keychain store
func NewKeyringStore(name string, configMap map[string]interface{}) *KeyringStore {
	service := "credwatch"
	if s, ok := configMap["service"].(string); ok && s != "" {
		service = s
	}
	return &KeyringStore{
		name:    name,
		service: service,
	}
}

// NewKeyringStoreFactory adapts the constructor to the registry signature
func NewKeyringStoreFactory(name string, cfg map[string]interface{}) (Store, error) {
	return NewKeyringStore(name, cfg), nil
}

// Name returns the store name
func (s *KeyringStore) Name() string {
	return s.name
}

// Fetch retrieves the payload stored under key. Slashes in store keys are
// flattened to dashes, matching how entries are seeded.
func (s *KeyringStore) Fetch(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	user := strings.ReplaceAll(strings.Trim(key, "/"), "/", "-")
	value, err := keyring.Get(s.service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", &NotFoundError{Store: s.name, Key: user}
		}
		return "", fmt.Errorf("keychain error: %w", err)
	}
	if value == "" {
		return "", fmt.Errorf("keychain entry '%s' is empty", user)
	}

	return value, nil
}

// Validate checks the keychain backend is reachable. A not-found probe still
// proves the backend responds.
func (s *KeyringStore) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := keyring.Get(s.service, "credwatch-validate")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain backend unavailable: %w", err)
	}
	return nil
}

// FetchKeyringEntry reads a single OS keychain entry. Used to load
// local-development override payloads referenced from the config file.
func FetchKeyringEntry(service, user string) (string, error) {
	value, err := keyring.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", &NotFoundError{Store: "keyring", Key: service + "/" + user}
		}
		return "", fmt.Errorf("keychain error: %w", err)
	}
	return value, nil
}
