package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/pkg/secret"
)

func NewStoreCommand(cfg *config.Config, connect Connector) *cobra.Command {
	var (
		schemaName  string
		label       string
		collection  string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "store --schema NAME --label LABEL attribute=value...",
		Short: "Store a password read from stdin",
		Long: `Store a password under the given attributes. The password is read from
the first line of stdin so it never appears in the process list or shell
history. An item with exactly the same attributes is replaced.

Examples:
  # Prompted on the terminal
  secretpass store --schema network --label "Mail" user=alice server=imap.example.org

  # From another program
  pass show mail | secretpass store --schema org.example.Mail --label Mail user=alice

  # Into the session collection, gone after logout
  secretpass store --collection session --label Temp --schema generic id=42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if label == "" {
				return apperrors.UserError{
					Message:    "Label is required",
					Suggestion: "Use --label to name the item as keyring managers will show it",
				}
			}
			attrs, err := parseAttributes(args)
			if err != nil {
				return err
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			client, s, err := open(cmd, cfg, connect, schemaName)
			if err != nil {
				return err
			}
			defer client.Close()

			if collection == "" {
				collection = cfg.Definition.Collection
			}
			cfg.Logger.Debug("storing %s as %q", logging.Secret(password), label)

			value := secret.NewValue([]byte(password), contentType)
			defer value.Wipe()
			stored, err := client.StoreValue(cmd.Context(), s, attrs, collection, label, value)
			if err != nil {
				return apperrors.SecretServiceError("store", err)
			}
			if !stored {
				return apperrors.UserError{
					Message:    "The secret service did not create the item",
					Suggestion: "Check that the collection is unlocked and writable",
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Stored %q\n", label)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "generic", "Schema the attributes belong to")
	registerSchemaCompletion(cmd, cfg)
	cmd.Flags().StringVar(&label, "label", "", "Item label (required)")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection alias or path (default: configured collection, else 'default')")
	cmd.Flags().StringVar(&contentType, "content-type", secret.DefaultContentType, "Content type of the secret")

	return cmd
}

func readPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", apperrors.UserError{
			Message:    "No password given on stdin",
			Suggestion: "Pipe the password in, e.g. 'echo -n pw | secretpass store ...'",
		}
	}
	return password, nil
}
