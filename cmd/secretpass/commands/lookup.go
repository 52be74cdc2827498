package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
)

func NewLookupCommand(cfg *config.Config, connect Connector) *cobra.Command {
	var (
		schemaName string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "lookup --schema NAME attribute=value...",
		Short: "Print the password matching the attributes",
		Long: `Look up a password by its attributes and print it to stdout.

The attributes are checked against the schema first. If several items
match, the first one the secret service reports is printed. Locked items
are unlocked, which may show a prompt.

Examples:
  # Print a password
  secretpass lookup --schema network user=alice server=imap.example.org protocol=imap

  # Use in scripts
  export MAIL_PASSWORD=$(secretpass lookup --schema org.example.Mail user=alice)`,
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

			value, err := client.LookupValue(cmd.Context(), s, attrs)
			if err != nil {
				return apperrors.SecretServiceError("lookup", err)
			}
			if value == nil {
				return apperrors.UserError{
					Message:    "No matching password found",
					Suggestion: fmt.Sprintf("Use 'secretpass search --schema %s' to list stored items", s.Name()),
				}
			}
			defer value.Wipe()

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]interface{}{
					"schema":       s.Name(),
					"attributes":   attrs,
					"content_type": value.ContentType(),
					"password":     value.Text(),
				})
			}
			fmt.Fprint(out, value.Text())
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "generic", "Schema the attributes belong to")
	registerSchemaCompletion(cmd, cfg)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}
