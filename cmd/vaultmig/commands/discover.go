package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/homelab-ops/vaultmig/internal/config"
	"github.com/homelab-ops/vaultmig/internal/discovery"
	"github.com/homelab-ops/vaultmig/internal/naming"
)

func NewDiscoverCommand(cfg *config.Config) *cobra.Command {
	var (
		ansibleDir  string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List vault files that a migration would process (no decryption)",
		Long: `Discover walks --ansible-dir and prints every ansible-vault encrypted
file together with the service name and environment prefix the naming
policy would use for its secrets. Nothing is decrypted and the secret
store is never contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			if cmd.Flags().Changed("ansible-dir") {
				cfg.Settings.AnsibleDir = ansibleDir
			}
			if cmd.Flags().Changed("environment") {
				cfg.Settings.Environment = environment
			}

			scanner := discovery.NewScanner(cfg.Logger, cfg.Settings.NamePatterns)
			files, skipped, err := scanner.Discover([]string{cfg.Settings.AnsibleDir})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "FILE\tSERVICE\tNAME PREFIX\n")
			_, _ = fmt.Fprintf(w, "----\t-------\t-----------\n")
			for _, f := range files {
				prefix := naming.Derive(cfg.Settings.Environment, f.Service, "")
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s-*\n", f.Path, f.Service, prefix)
			}
			_ = w.Flush()

			for _, sk := range skipped {
				cfg.Logger.Warn("Skipped %s: %s", sk.Path, sk.Reason)
			}
			cfg.Logger.Info("Found %d vault file(s), skipped %d", len(files), len(skipped))
			return nil
		},
	}

	cmd.Flags().StringVar(&ansibleDir, "ansible-dir", config.Defaults().AnsibleDir, "Root directory to scan for vault files")
	cmd.Flags().StringVar(&environment, "environment", config.Defaults().Environment, "Naming-policy environment tag")

	return cmd
}
