package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/cmd/secretpass/commands"
	"github.com/offsoc/libsecret/internal/config"
	"github.com/offsoc/libsecret/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "secretpass",
		Short: "Look up and store passwords in the desktop secret service",
		Long: `secretpass reads and writes passwords held by a freedesktop Secret Service
(gnome-keyring, KWallet, KeePassXC). Passwords are addressed by attributes
that are checked against a schema before anything is sent to the service.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", commands.DefaultConfigPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	connect := commands.DefaultConnector

	rootCmd.AddCommand(
		commands.NewLookupCommand(cfg, connect),
		commands.NewStoreCommand(cfg, connect),
		commands.NewClearCommand(cfg, connect),
		commands.NewSearchCommand(cfg, connect),
		commands.NewDoctorCommand(cfg, connect),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
