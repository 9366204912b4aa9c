package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/homelab-ops/vaultmig/internal/config"
	"github.com/homelab-ops/vaultmig/internal/decrypt"
	"github.com/homelab-ops/vaultmig/internal/store"
	"github.com/homelab-ops/vaultmig/pkg/cliexec"
)

// checkResult is one row of doctor output.
type checkResult struct {
	Name       string
	Status     string // ok, error
	Message    string
	Suggestion string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check tools, credentials, and configuration before migrating",
		Long: `Doctor verifies everything a migration run needs up front:

- Configuration file validity
- ansible-vault and bws on PATH
- Access token availability and secret-store authentication
- Output directory writability

No vault file is decrypted and no secret is created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []checkResult

			configCheck := checkResult{Name: "configuration", Status: "ok", Message: "loaded"}
			if err := cfg.Load(); err != nil {
				configCheck.Status = "error"
				configCheck.Message = err.Error()
			}
			results = append(results, configCheck)
			if cmd.Flags().Changed("output-dir") {
				cfg.Settings.OutputDir = outputDir
			}

			results = append(results, checkTool(decrypt.ToolName, "Install Ansible: pipx install ansible-core"))
			results = append(results, checkTool(store.ToolName, "Install the Bitwarden Secrets Manager CLI"))
			results = append(results, checkAuth(cmd, cfg))
			results = append(results, checkOutputDir(cfg.Settings.OutputDir))

			displayResults(results)

			failed := 0
			for _, r := range results {
				if r.Status != "ok" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			cfg.Logger.Info("All checks passed. Ready to migrate")
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", config.Defaults().OutputDir, "Directory the migration will write artifacts to")

	return cmd
}

func checkTool(tool, installHint string) checkResult {
	r := checkResult{Name: tool, Status: "ok", Message: "found on PATH"}
	if err := cliexec.LookPath(tool); err != nil {
		r.Status = "error"
		r.Message = "not found on PATH"
		r.Suggestion = installHint
	}
	return r
}

// checkAuth confirms a token is available and that the store accepts it.
// Skips the live call when the token itself is missing.
func checkAuth(cmd *cobra.Command, cfg *config.Config) checkResult {
	r := checkResult{Name: "secret-store auth", Status: "ok", Message: "token accepted"}

	token, err := store.LoadToken()
	if err != nil {
		r.Status = "error"
		r.Message = "no access token available"
		r.Suggestion = "Export " + store.TokenEnvVar + " or run: vaultmig token store"
		return r
	}
	defer token.Destroy()

	if err := cliexec.LookPath(store.ToolName); err != nil {
		r.Message = "token present (auth not verified, bws missing)"
		return r
	}

	timeout := time.Duration(cfg.Settings.TimeoutSeconds) * time.Second
	bws := store.New(cfg.Logger, token, timeout)
	if err := bws.Authenticate(cmd.Context()); err != nil {
		r.Status = "error"
		r.Message = "authentication failed"
		r.Suggestion = "Generate a new machine-account token in Bitwarden Secrets Manager"
	}
	return r
}

func checkOutputDir(dir string) checkResult {
	r := checkResult{Name: "output directory", Status: "ok", Message: dir + " is writable"}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		r.Status = "error"
		r.Message = err.Error()
		return r
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		r.Status = "error"
		r.Message = err.Error()
		return r
	}
	_ = os.Remove(probe)
	return r
}

func displayResults(results []checkResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")
	for _, r := range results {
		status := "✓ " + r.Status
		if r.Status != "ok" {
			status = "✗ " + r.Status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Message)
	}
	_ = w.Flush()

	for _, r := range results {
		if r.Suggestion != "" {
			fmt.Printf("\n%s: 💡 %s\n", r.Name, r.Suggestion)
		}
	}
}
