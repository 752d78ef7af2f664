// Package stores implements the secret store client boundary: fetching the
// current raw payload held under a named key in a remote (or local) secret
// store. Each backend wraps one storage system behind the same small Store
// interface so the rotation watcher never knows which vault it is talking to.
package stores

import (
	"context"
	"fmt"
	"sort"

	"github.com/systmms/credwatch/internal/config"
)

// Store is the secret store client consumed by the rotation watcher.
//
// Fetch returns the raw text payload currently stored under key. An empty
// payload is reported as an error by the backend where the underlying SDK
// distinguishes it; callers treat empty strings as failures regardless.
// Implementations must be safe for repeated concurrent calls and honor
// context cancellation.
type Store interface {
	// Name returns the store's configured instance name.
	Name() string

	// Fetch retrieves the current value stored under key.
	Fetch(ctx context.Context, key string) (string, error)

	// Validate checks connectivity and authentication to the backend.
	Validate(ctx context.Context) error
}

// NotFoundError indicates the key does not exist in the store.
type NotFoundError struct {
	Store string
	Key   string
}

func (e *NotFoundError) Error() string {
	return "secret not found: " + e.Key + " in " + e.Store
}

// AuthError indicates authentication to the store failed.
type AuthError struct {
	Store   string
	Message string
}

func (e *AuthError) Error() string {
	return "authentication failed for " + e.Store + ": " + e.Message
}

// Factory creates a store instance from configuration
type Factory func(name string, cfg map[string]interface{}) (Store, error)

// Registry manages store creation and registration
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in store backends
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.RegisterFactory("aws.secretsmanager", NewAWSSecretsManagerStoreFactory)
	r.RegisterFactory("aws.ssm", NewAWSSSMStoreFactory)
	r.RegisterFactory("gcp.secretmanager", NewGCPSecretManagerStoreFactory)
	r.RegisterFactory("azure.keyvault", NewAzureKeyVaultStoreFactory)
	r.RegisterFactory("vault", NewVaultStoreFactory)
	r.RegisterFactory("keyring", NewKeyringStoreFactory)
	r.RegisterFactory("static", NewStaticStoreFactory)

	return r
}

// RegisterFactory registers a store factory for a given type
func (r *Registry) RegisterFactory(storeType string, factory Factory) {
	r.factories[storeType] = factory
}

// Create builds a store instance from configuration
func (r *Registry) Create(cfg config.StoreConfig) (Store, error) {
	factory, exists := r.factories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
	return factory(cfg.Type, cfg.Config)
}

// Types returns the registered store types in sorted order
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
