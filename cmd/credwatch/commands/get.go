package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/credwatch/internal/config"
	cwerrors "github.com/systmms/credwatch/internal/errors"
	"github.com/systmms/credwatch/internal/logging"
	"github.com/systmms/credwatch/internal/secure"
	"github.com/systmms/credwatch/pkg/credential"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		secretName string
		reveal     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch and validate a single tracked credential",
		Long: `Fetch one tracked secret from the configured store, validate its payload,
and print the parsed credential.

The secret portion is redacted unless --reveal is given.

Examples:
  # Show the broker credential (secret redacted)
  credwatch get --secret broker

  # Print the full credential as JSON for scripting
  credwatch get --secret broker --reveal --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secretName == "" {
				return cwerrors.UserError{
					Message:    "Secret name is required",
					Suggestion: "Use --secret <name> to pick a tracked secret, e.g. --secret broker",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}

			declared := cfg.Definition.Secrets
			var entry *config.SecretConfig
			for i := range declared {
				if declared[i].Name == secretName {
					entry = &declared[i]
					break
				}
			}
			if entry == nil {
				names := make([]string, 0, len(declared))
				for _, sc := range declared {
					names = append(names, sc.Name)
				}
				return cwerrors.ConfigError{
					Field:      "secret",
					Value:      secretName,
					Message:    "not a tracked secret",
					Suggestion: fmt.Sprintf("Tracked secrets: %v", names),
				}
			}

			value, err := fetchOne(cfg, *entry)
			if err != nil {
				return err
			}

			secret := value.Secret
			if !reveal {
				secret = logging.Secret(value.Secret).String()
			}

			if jsonOutput {
				out := map[string]string{"name": entry.Name, "key": value.Key, "secret": secret}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("name:   %s\n", entry.Name)
			fmt.Printf("key:    %s\n", value.Key)
			fmt.Printf("secret: %s\n", secret)
			return nil
		},
	}

	cmd.Flags().StringVar(&secretName, "secret", "", "Tracked secret name")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the secret portion in clear text")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// fetchOne resolves a single secret the same way the watcher's initial load
// does: overrides win, otherwise the store is queried once.
func fetchOne(cfg *config.Config, entry config.SecretConfig) (credential.Value, error) {
	if entry.Override != nil {
		return resolveOverride(entry)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return credential.Value{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw, err := store.Fetch(ctx, entry.StoreKey)
	if err != nil {
		return credential.Value{}, cwerrors.StoreError(store.Name(), "fetch", err)
	}

	buf := secure.NewBufferFromString(raw)
	defer buf.Destroy()

	var value credential.Value
	err = buf.WithString(func(plaintext string) error {
		parsed, parseErr := credential.Parse(plaintext)
		if parseErr != nil {
			return parseErr
		}
		value = parsed
		return nil
	})
	if err != nil {
		return credential.Value{}, cwerrors.UserError{
			Message:    fmt.Sprintf("Payload under %q is not a valid credential", entry.StoreKey),
			Suggestion: `The stored value must be a JSON object with non-empty "key" and "secret" fields`,
			Err:        err,
		}
	}
	return value, nil
}
