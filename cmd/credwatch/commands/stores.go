package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/credwatch/internal/config"
	"github.com/systmms/credwatch/internal/stores"
)

func NewStoresCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List available secret store types",
		Long: `Display the secret store backends this build supports, plus the store
configured in the config file if one is present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := stores.NewRegistry()

			fmt.Println("Supported Store Types:")
			fmt.Println("======================")

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TYPE\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "----\t-----------\n")
			for _, storeType := range registry.Types() {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", storeType, storeDescription(storeType))
			}
			_ = w.Flush()

			// Show the configured store if a config file is readable
			if err := cfg.Load(); err == nil && cfg.Definition != nil {
				fmt.Println("\nConfigured Store:")
				fmt.Println("=================")
				fmt.Printf("type: %s\n", cfg.Definition.Store.Type)
			}

			return nil
		},
	}

	return cmd
}

func storeDescription(storeType string) string {
	switch storeType {
	case "aws.secretsmanager":
		return "AWS Secrets Manager"
	case "aws.ssm":
		return "AWS Systems Manager Parameter Store"
	case "gcp.secretmanager":
		return "Google Cloud Secret Manager"
	case "azure.keyvault":
		return "Azure Key Vault"
	case "vault":
		return "HashiCorp Vault (KV v2)"
	case "keyring":
		return "OS keychain (development)"
	case "static":
		return "In-memory values from config (testing)"
	default:
		return "Unknown store type"
	}
}
