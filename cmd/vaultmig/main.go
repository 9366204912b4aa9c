package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/homelab-ops/vaultmig/cmd/vaultmig/commands"
	"github.com/homelab-ops/vaultmig/internal/config"
	"github.com/homelab-ops/vaultmig/internal/logging"
	"github.com/homelab-ops/vaultmig/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer secure.Purge()

	// Global flags
	var (
		configFile     string
		noColor        bool
		verbose        bool
		nonInteractive bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "vaultmig",
		Short: "Migrate ansible-vault secrets to Bitwarden Secrets Manager",
		Long: `vaultmig discovers ansible-vault encrypted files, decrypts them in memory,
and migrates every secret to Bitwarden Secrets Manager, producing an
auditable mapping between old variable names and new secret ids.

Decrypted material never touches the filesystem.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(verbose, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional vaultmig.yaml path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable per-step debug trace (never includes secret values)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting for input")

	rootCmd.AddCommand(
		commands.NewMigrateCommand(cfg),
		commands.NewDiscoverCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewTokenCommand(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, commands.ErrPartialFailure) {
			return 1
		}
		// Everything else is an abort: missing tool, bad credentials,
		// unusable scan roots, usage errors.
		return 2
	}
	return 0
}
