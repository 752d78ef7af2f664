package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/credwatch/internal/config"
	"github.com/systmms/credwatch/internal/stores"
	"github.com/systmms/credwatch/pkg/credential"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var checkSecrets bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check store connectivity and configuration",
		Long: `Verify that the configuration is valid and the secret store is reachable.

This command checks:
- Configuration file validity
- Store authentication and connectivity
- With --secrets, that every tracked store key holds a parsable payload

Running with --secrets performs real fetches against the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking credwatch configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Logger.Info("✓ Configuration loaded successfully")

			store, err := buildStore(cfg)
			if err != nil {
				cfg.Logger.Error("Store configuration error: %v", err)
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := store.Validate(ctx); err != nil {
				cfg.Logger.Error("✗ Store %q is not reachable: %v", store.Name(), err)
				return fmt.Errorf("store validation failed: %w", err)
			}
			cfg.Logger.Info("✓ Store %q is reachable", store.Name())

			if !checkSecrets {
				cfg.Logger.Info("All checks passed")
				return nil
			}

			declared := cfg.Definition.Secrets
			failures := 0
			for _, sc := range declared {
				if sc.Override != nil {
					cfg.Logger.Info("✓ %s: local override, store not queried", sc.Name)
					continue
				}
				if err := checkSecret(ctx, store, sc); err != nil {
					failures++
					cfg.Logger.Error("✗ %s (%s): %v", sc.Name, sc.StoreKey, err)
					continue
				}
				cfg.Logger.Info("✓ %s: payload is a valid credential", sc.Name)
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d tracked secret(s) failed the check", failures, len(declared))
			}
			cfg.Logger.Info("All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkSecrets, "secrets", false, "Also fetch and validate every tracked secret payload")

	return cmd
}

func checkSecret(ctx context.Context, store stores.Store, sc config.SecretConfig) error {
	raw, err := store.Fetch(ctx, sc.StoreKey)
	if err != nil {
		var notFound *stores.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("store key does not exist")
		}
		return err
	}
	if _, err := credential.Parse(raw); err != nil {
		return err
	}
	return nil
}
