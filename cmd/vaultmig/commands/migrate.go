package commands

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/homelab-ops/vaultmig/internal/config"
	"github.com/homelab-ops/vaultmig/internal/decrypt"
	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/migrate"
	"github.com/homelab-ops/vaultmig/internal/report"
	"github.com/homelab-ops/vaultmig/internal/store"
)

// ErrPartialFailure signals that the run completed but one or more secrets
// failed to migrate. The process exits 1 in that case, 2 on aborts.
var ErrPartialFailure = errors.New("migration completed with failures")

func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	var (
		ansibleDir        string
		projectID         string
		environment       string
		dryRun            bool
		vaultPasswordFile string
		outputDir         string
		timeoutSeconds    int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate vault secrets to the secret store",
		Long: `Migrate discovers ansible-vault files under --ansible-dir, decrypts each
one in memory, flattens the contained variables, derives a target name per
secret, and creates the secrets in Bitwarden Secrets Manager.

Every discovered secret is attempted regardless of earlier failures. The
run writes a prose report and a CSV mapping under --output-dir; neither
ever contains a secret value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			applyFlagOverrides(cmd, &cfg.Settings, flagOverrides{
				"ansible-dir":         func(s *config.Settings) { s.AnsibleDir = ansibleDir },
				"project-id":          func(s *config.Settings) { s.ProjectID = projectID },
				"environment":         func(s *config.Settings) { s.Environment = environment },
				"vault-password-file": func(s *config.Settings) { s.VaultPasswordFile = vaultPasswordFile },
				"output-dir":          func(s *config.Settings) { s.OutputDir = outputDir },
				"timeout":             func(s *config.Settings) { s.TimeoutSeconds = timeoutSeconds },
			})
			// Stop issuing new store calls on interrupt but still flush
			// the artifacts for work completed so far.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			token, err := store.LoadToken()
			if err != nil {
				return err
			}
			defer token.Destroy()

			source, err := passphraseSource(cfg)
			if err != nil {
				return err
			}
			defer source.Destroy()

			timeout := time.Duration(cfg.Settings.TimeoutSeconds) * time.Second
			decryptor := decrypt.New(cfg.Logger, source, timeout)
			secretStore := store.New(cfg.Logger, token, timeout)

			orchestrator := migrate.New(cfg.Settings, cfg.Logger, decryptor, secretStore, dryRun)
			run, err := orchestrator.Run(ctx)
			if err != nil {
				return err
			}

			writer := report.NewWriter(cfg.Settings.OutputDir, cfg.Logger)
			if _, _, err := writer.Write(run); err != nil {
				return vmerrors.Fatal(err)
			}

			cfg.Logger.Info("Files: %d  Discovered: %d  Created: %d  Errors: %d",
				run.FilesProcessed, run.SecretsDiscovered, run.SecretsCreated, run.Errors)
			if run.Interrupted {
				cfg.Logger.Warn("Run was interrupted; artifacts cover completed work only")
			}
			if run.Failed() {
				return ErrPartialFailure
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ansibleDir, "ansible-dir", config.Defaults().AnsibleDir, "Root directory to scan for vault files")
	cmd.Flags().StringVar(&projectID, "project-id", "", "Secret-store project to scope creation")
	cmd.Flags().StringVar(&environment, "environment", config.Defaults().Environment, "Naming-policy environment tag")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Skip all mutating secret-store calls; still produce the full report")
	cmd.Flags().StringVar(&vaultPasswordFile, "vault-password-file", "", "File holding the vault passphrase (prompts once when omitted)")
	cmd.Flags().StringVar(&outputDir, "output-dir", config.Defaults().OutputDir, "Directory for report and mapping artifacts")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", config.Defaults().TimeoutSeconds, "Per-subprocess timeout in seconds")

	return cmd
}

// passphraseSource picks the vault passphrase variant: an operator-managed
// password file when configured, otherwise a single interactive prompt.
func passphraseSource(cfg *config.Config) (decrypt.PassphraseSource, error) {
	if cfg.Settings.VaultPasswordFile != "" {
		return decrypt.FromFile(cfg.Settings.VaultPasswordFile), nil
	}
	if cfg.NonInteractive {
		return nil, vmerrors.Fatal(vmerrors.UserError{
			Message:    "No vault password file configured in non-interactive mode",
			Suggestion: "Pass --vault-password-file or drop --non-interactive",
		})
	}
	return decrypt.Interactive(), nil
}

type flagOverrides map[string]func(*config.Settings)

// applyFlagOverrides lets explicitly set flags win over vaultmig.yaml values
// while leaving file-configured settings alone for untouched flags.
func applyFlagOverrides(cmd *cobra.Command, settings *config.Settings, overrides flagOverrides) {
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply(settings)
		}
	}
}
