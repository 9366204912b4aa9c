// Package report renders the per-run artifacts: a prose summary for humans
// and a mapping table operators feed back into downstream configuration.
// Neither artifact ever contains a secret value.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/homelab-ops/vaultmig/internal/logging"
	"github.com/homelab-ops/vaultmig/internal/migrate"
)

// Writer emits run artifacts under a fixed output directory. File names
// carry the run's start timestamp so repeated invocations never overwrite
// prior artifacts.
type Writer struct {
	outputDir string
	logger    *logging.Logger
}

// NewWriter creates a report writer.
func NewWriter(outputDir string, logger *logging.Logger) *Writer {
	return &Writer{outputDir: outputDir, logger: logger}
}

// Write renders both artifacts and returns their paths.
func (w *Writer) Write(run *migrate.Run) (reportPath, mappingPath string, err error) {
	if err := os.MkdirAll(w.outputDir, 0o700); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp := run.StartedAt.Format("20060102-150405")
	reportPath = filepath.Join(w.outputDir, "migration-report-"+stamp+".txt")
	mappingPath = filepath.Join(w.outputDir, "migration-mapping-"+stamp+".csv")

	if err := w.writeReport(reportPath, run); err != nil {
		return "", "", err
	}
	if err := w.writeMapping(mappingPath, run); err != nil {
		return "", "", err
	}

	w.logger.Info("Report written to %s", reportPath)
	w.logger.Info("Mapping written to %s", mappingPath)
	return reportPath, mappingPath, nil
}

func (w *Writer) writeReport(path string, run *migrate.Run) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Vault to Bitwarden Secrets migration report\n")
	fmt.Fprintf(&b, "===========================================\n\n")
	fmt.Fprintf(&b, "Started:      %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Environment:  %s\n", run.Environment)
	if run.ProjectID != "" {
		fmt.Fprintf(&b, "Project:      %s\n", run.ProjectID)
	}
	if run.DryRun {
		fmt.Fprintf(&b, "Mode:         dry-run (no secrets were created)\n")
	}
	if run.Interrupted {
		fmt.Fprintf(&b, "NOTE:         run was interrupted; artifacts cover completed work only\n")
	}

	fmt.Fprintf(&b, "\nCounts\n------\n")
	fmt.Fprintf(&b, "Files processed:    %d\n", run.FilesProcessed)
	fmt.Fprintf(&b, "Secrets discovered: %d\n", run.SecretsDiscovered)
	fmt.Fprintf(&b, "Secrets created:    %d\n", run.SecretsCreated)
	fmt.Fprintf(&b, "Errors:             %d\n", run.Errors)

	if conflicts := run.Conflicts(); len(conflicts) > 0 {
		fmt.Fprintf(&b, "\nName conflicts (manual resolution required)\n-------------------------------------------\n")
		for _, c := range conflicts {
			fmt.Fprintf(&b, "  %s\n    from %s key %s\n    %s\n",
				c.Entry.TargetName, c.Entry.SourceFile, c.Entry.OriginalKey, c.Result.ErrorDetail)
		}
	}

	if len(run.FileErrors) > 0 {
		fmt.Fprintf(&b, "\nFile errors\n-----------\n")
		for _, fe := range run.FileErrors {
			fmt.Fprintf(&b, "  %s: %s\n", fe.Path, fe.Detail)
		}
	}

	var failed []migrate.Outcome
	for _, o := range run.Outcomes {
		if o.Result.Status == migrate.StatusFailed {
			failed = append(failed, o)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nFailed entries\n--------------\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "  %s (%s): %s\n", o.Entry.OriginalKey, o.Entry.SourceFile, o.Result.ErrorDetail)
		}
	}

	if len(run.SkippedFiles) > 0 {
		fmt.Fprintf(&b, "\nSkipped files\n-------------\n")
		for _, s := range run.SkippedFiles {
			fmt.Fprintf(&b, "  %s (%s)\n", s.Path, s.Reason)
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// writeMapping emits the canonical machine-readable artifact: one row per
// entry in discovery order.
func (w *Writer) writeMapping(path string, run *migrate.Run) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create mapping file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"source_file", "original_key", "target_name", "secret_id", "status"}); err != nil {
		return err
	}
	for _, o := range run.Outcomes {
		row := []string{
			o.Entry.SourceFile,
			o.Entry.OriginalKey,
			o.Entry.TargetName,
			o.Result.SecretID,
			string(o.Result.Status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
