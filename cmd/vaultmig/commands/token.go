package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/homelab-ops/vaultmig/internal/config"
	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/secure"
	"github.com/homelab-ops/vaultmig/internal/store"
)

func NewTokenCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored secret-store access token",
	}

	cmd.AddCommand(newTokenStoreCommand(cfg))
	cmd.AddCommand(newTokenDeleteCommand(cfg))

	return cmd
}

func newTokenStoreCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "store",
		Short: "Save the access token in the OS keyring",
		Long: `Store prompts for a Bitwarden Secrets Manager machine-account token and
saves it in the operating system keyring. Later runs load it from there
when BWS_ACCESS_TOKEN is not set. The token is never echoed or logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readTokenInput(cfg)
			if err != nil {
				return err
			}
			defer secure.Wipe(raw)

			if len(raw) == 0 {
				return vmerrors.UserError{
					Message:    "Empty token",
					Suggestion: "Paste the machine-account token when prompted",
				}
			}
			if err := store.StoreTokenInKeyring(string(raw)); err != nil {
				return vmerrors.UserError{
					Message:    "Failed to write token to the OS keyring",
					Suggestion: "Check that a keyring daemon is available, or export " + store.TokenEnvVar + " instead",
					Err:        err,
				}
			}
			cfg.Logger.Info("Access token stored in the OS keyring")
			return nil
		},
	}
}

func newTokenDeleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the access token from the OS keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.DeleteTokenFromKeyring(); err != nil {
				return vmerrors.UserError{
					Message: "Failed to remove token from the OS keyring",
					Err:     err,
				}
			}
			cfg.Logger.Info("Access token removed from the OS keyring")
			return nil
		},
	}
}

// readTokenInput takes the token without echo on a terminal, or from stdin
// when piped so the command scripts cleanly.
func readTokenInput(cfg *config.Config) ([]byte, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Access token: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, vmerrors.UserError{Message: "Failed to read token", Err: err}
		}
		return raw, nil
	}
	if cfg.NonInteractive {
		cfg.Logger.Debug("Reading token from piped stdin")
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, vmerrors.UserError{Message: "Failed to read token from stdin", Err: err}
	}
	return []byte(strings.TrimSpace(line)), nil
}
