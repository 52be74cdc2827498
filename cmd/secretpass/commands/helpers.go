package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
	"github.com/offsoc/libsecret/internal/metrics"
	"github.com/offsoc/libsecret/pkg/schema"
	"github.com/offsoc/libsecret/pkg/secret"
)

// Connector opens a client for a loaded configuration.
type Connector func(ctx context.Context, cfg *config.Config) (*secret.Client, error)

// DefaultConnector dials the bus named in the configuration.
func DefaultConnector(ctx context.Context, cfg *config.Config) (*secret.Client, error) {
	return secret.Connect(ctx, cfg.Definition.BusAddress, ClientOptions(cfg)...)
}

// ClientOptions translates the configuration into client options.
func ClientOptions(cfg *config.Config) []secret.Option {
	def := cfg.Definition
	opts := []secret.Option{
		secret.WithLogger(cfg.Logger),
		secret.WithTimeout(def.Timeout()),
		secret.WithWindowID(def.WindowID),
		secret.WithServiceName(def.ServiceName),
	}
	if def.Algorithm != "" {
		opts = append(opts, secret.WithSessionAlgorithm(def.Algorithm))
	}
	if def.Metrics.Enabled {
		metrics.InitMetrics()
		opts = append(opts, secret.WithMetrics(metrics.NewCallMetrics()))
	}
	return opts
}

// DefaultConfigPath is $XDG_CONFIG_HOME/secretpass/secretpass.yaml.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "secretpass.yaml"
	}
	return filepath.Join(dir, "secretpass", "secretpass.yaml")
}

// open loads the configuration, resolves the schema and connects.
func open(cmd *cobra.Command, cfg *config.Config, connect Connector, schemaName string) (*secret.Client, *schema.Schema, error) {
	if err := cfg.Load(); err != nil {
		return nil, nil, err
	}
	s, err := cfg.Definition.Schema(schemaName)
	if err != nil {
		return nil, nil, err
	}
	client, err := connect(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, apperrors.SecretServiceError("connect", err)
	}
	return client, s, nil
}

// registerSchemaCompletion completes --schema from the configuration.
func registerSchemaCompletion(cmd *cobra.Command, cfg *config.Config) {
	_ = cmd.RegisterFlagCompletionFunc("schema", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		def := config.Defaults()
		if cfg.Path != "" {
			if err := cfg.Load(); err == nil {
				def = cfg.Definition
			}
		}
		names := append([]string{"generic", "network", "note"}, def.SchemaNames()...)
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// parseAttributes turns name=value arguments into attributes.
func parseAttributes(args []string) (schema.Attributes, error) {
	attrs := make(schema.Attributes, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, apperrors.UserError{
				Message:    fmt.Sprintf("invalid attribute %q", arg),
				Suggestion: "Pass attributes as name=value, e.g. user=alice server=example.org",
			}
		}
		if _, dup := attrs[name]; dup {
			return nil, apperrors.UserError{
				Message:    fmt.Sprintf("attribute %q given twice", name),
				Suggestion: "Pass each attribute once",
			}
		}
		attrs[name] = value
	}
	return attrs, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	keyColor   = color.New(color.FgYellow)
	lockColor  = color.New(color.FgRed)
)
