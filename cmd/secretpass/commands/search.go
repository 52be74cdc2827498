package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
	"github.com/offsoc/libsecret/pkg/secret"
)

type searchResult struct {
	Path       string            `json:"path"`
	Label      string            `json:"label"`
	Schema     string            `json:"schema,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Locked     bool              `json:"locked"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
	Password   *string           `json:"password,omitempty"`
}

func NewSearchCommand(cfg *config.Config, connect Connector) *cobra.Command {
	var (
		schemaName string
		all        bool
		unlock     bool
		secrets    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search --schema NAME [attribute=value...]",
		Short: "List items matching the attributes",
		Long: `List stored items whose attributes match. Without attributes every item
of the schema matches. Passwords are only shown with --secrets.

Examples:
  # Everything stored under a schema
  secretpass search --schema org.example.Mail --all

  # Unlock locked items and show passwords
  secretpass search --schema network --all --unlock --secrets server=example.org`,
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

			var flags secret.SearchFlags
			if all {
				flags |= secret.SearchAll
			}
			if unlock {
				flags |= secret.SearchUnlock
			}
			if secrets {
				flags |= secret.SearchLoadSecrets
			}

			items, err := client.Search(cmd.Context(), s, attrs, flags)
			if err != nil {
				return apperrors.SecretServiceError("search", err)
			}

			if jsonOutput {
				return writeSearchJSON(cmd.OutOrStdout(), items)
			}
			writeSearchText(cmd.OutOrStdout(), items)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "generic", "Schema the attributes belong to")
	registerSchemaCompletion(cmd, cfg)
	cmd.Flags().BoolVar(&all, "all", false, "List every match, not just the first")
	cmd.Flags().BoolVar(&unlock, "unlock", false, "Unlock locked items (may prompt)")
	cmd.Flags().BoolVar(&secrets, "secrets", false, "Show passwords of unlocked items")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func writeSearchJSON(w io.Writer, items []secret.Item) error {
	results := make([]searchResult, 0, len(items))
	for _, it := range items {
		r := searchResult{
			Path:       it.Path,
			Label:      it.Label,
			Schema:     it.Schema,
			Attributes: it.Attributes,
			Locked:     it.Locked,
			Created:    it.Created.UTC(),
			Modified:   it.Modified.UTC(),
		}
		if it.Value != nil {
			password := it.Value.Text()
			r.Password = &password
		}
		results = append(results, r)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func writeSearchText(w io.Writer, items []secret.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No matching items")
		return
	}
	for i, it := range items {
		if i > 0 {
			fmt.Fprintln(w)
		}
		labelColor.Fprintf(w, "%s", it.Label)
		if it.Locked {
			lockColor.Fprint(w, " (locked)")
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  path     = %s\n", it.Path)
		if it.Schema != "" {
			fmt.Fprintf(w, "  schema   = %s\n", it.Schema)
		}
		for _, k := range sortedKeys(it.Attributes) {
			fmt.Fprintf(w, "  %s = %s\n", keyColor.Sprintf("%-8s", k), it.Attributes[k])
		}
		if !it.Modified.IsZero() {
			fmt.Fprintf(w, "  modified = %s\n", it.Modified.Format(time.RFC3339))
		}
		if it.Value != nil {
			fmt.Fprintf(w, "  secret   = %s\n", it.Value.Text())
		}
	}
}
