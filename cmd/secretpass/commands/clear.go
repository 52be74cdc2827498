package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
)

func NewClearCommand(cfg *config.Config, connect Connector) *cobra.Command {
	var schemaName string

	cmd := &cobra.Command{
		Use:   "clear --schema NAME attribute=value...",
		Short: "Delete every password matching the attributes",
		Long: `Delete all items that match the attributes. Locked items are unlocked
first, which may show a prompt.

Examples:
  secretpass clear --schema network user=alice server=imap.example.org`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAttributes(args)
			if err != nil {
				return err
			}
			client, s, err := open(cmd, cfg, connect, schemaName)
			if err != nil {
				return err
			}
			defer client.Close()

			n, err := client.Clear(cmd.Context(), s, attrs)
			if err != nil {
				return apperrors.SecretServiceError("clear", err)
			}
			switch n {
			case 0:
				fmt.Fprintln(cmd.OutOrStdout(), "No matching items")
			case 1:
				fmt.Fprintln(cmd.OutOrStdout(), "Removed 1 item")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items\n", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "generic", "Schema the attributes belong to")
	registerSchemaCompletion(cmd, cfg)

	return cmd
}
