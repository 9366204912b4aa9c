// Package store wraps the Bitwarden Secrets Manager CLI (bws). Secrets are
// created and listed through the tool's documented JSON contract; the access
// token travels to the subprocess via its environment, never argv.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/logging"
	"github.com/homelab-ops/vaultmig/pkg/cliexec"
)

// ToolName is the external secret-store executable.
const ToolName = "bws"

// Sentinel errors classifying create failures. The orchestrator retries
// ErrTransient only; everything else is terminal for the entry.
var (
	ErrDuplicateName    = errors.New("secret name already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidValue     = errors.New("invalid secret value")
	ErrTransient        = errors.New("transient secret-store failure")
)

// BWS invokes the bws CLI as a subprocess. The orchestrator consumes it
// through a narrow interface so tests can substitute a fake that never
// spawns the real tool.
type BWS struct {
	executor cliexec.Executor
	logger   *logging.Logger
	token    *AccessToken
	timeout  time.Duration
}

// New creates the production adapter.
func New(logger *logging.Logger, token *AccessToken, timeout time.Duration) *BWS {
	return &BWS{
		executor: cliexec.Default(),
		logger:   logger,
		token:    token,
		timeout:  timeout,
	}
}

// NewWithExecutor creates an adapter with a custom executor, for tests.
func NewWithExecutor(logger *logging.Logger, token *AccessToken, timeout time.Duration, executor cliexec.Executor) *BWS {
	return &BWS{
		executor: executor,
		logger:   logger,
		token:    token,
		timeout:  timeout,
	}
}

// secretRecord is the subset of the bws JSON output we consume.
type secretRecord struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	ProjectID string `json:"projectId"`
}

// CheckTool verifies the executable is on PATH. Called before any work
// begins; failure aborts the run.
func (b *BWS) CheckTool() error {
	if err := cliexec.LookPath(ToolName); err != nil {
		return vmerrors.WrapToolNotFound(ToolName, err)
	}
	return nil
}

// Authenticate performs a cheap read call to prove the token works.
// Dry-run mode still authenticates: dry-run exempts mutation, not validation.
func (b *BWS) Authenticate(ctx context.Context) error {
	_, stderr, err := b.run(ctx, "project", "list")
	if err != nil {
		return vmerrors.Fatal(vmerrors.UserError{
			Message:    "Secret-store authentication failed",
			Details:    vmerrors.TruncateOutput(string(stderr), 200),
			Suggestion: vmerrors.ToolSuggestion(ToolName, errors.New(string(stderr))),
			Err:        err,
		})
	}
	return nil
}

// ListExisting fetches the names of secrets already present in the store.
// Only ids and keys are retained from the reply.
func (b *BWS) ListExisting(ctx context.Context, projectID string) (map[string]string, error) {
	args := []string{"secret", "list"}
	if projectID != "" {
		args = append(args, projectID)
	}

	stdout, stderr, err := b.run(ctx, args...)
	if err != nil {
		return nil, vmerrors.UserError{
			Message:    "Failed to list existing secrets",
			Details:    vmerrors.TruncateOutput(string(stderr), 200),
			Suggestion: vmerrors.ToolSuggestion(ToolName, errors.New(string(stderr))),
			Err:        err,
		}
	}

	var records []secretRecord
	if len(strings.TrimSpace(string(stdout))) > 0 {
		if err := json.Unmarshal(stdout, &records); err != nil {
			return nil, fmt.Errorf("failed to parse bws secret list output: %w", err)
		}
	}

	existing := make(map[string]string, len(records))
	for _, rec := range records {
		existing[rec.Key] = rec.ID
	}
	return existing, nil
}

// Create writes one secret and returns its id. The value is handed to the
// tool as a positional argument per the bws contract.
func (b *BWS) Create(ctx context.Context, name, value, projectID string) (string, error) {
	args := []string{"secret", "create", name, value}
	if projectID != "" {
		args = append(args, projectID)
	}

	b.logger.Debug("Creating secret %s", name)
	stdout, stderr, err := b.run(ctx, args...)
	if err != nil {
		return "", b.classifyCreate(name, stderr, err)
	}

	var rec secretRecord
	if err := json.Unmarshal(stdout, &rec); err != nil {
		return "", fmt.Errorf("failed to parse bws secret create output: %w", err)
	}
	if rec.ID == "" {
		return "", fmt.Errorf("bws returned no secret id for %s", name)
	}
	return rec.ID, nil
}

func (b *BWS) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	env, err := b.token.Env()
	if err != nil {
		return nil, nil, err
	}

	stdout, stderr, err := b.executor.Run(ctx, cliexec.Request{
		Name: ToolName,
		Args: args,
		Env:  env,
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout, stderr, fmt.Errorf("%w: %s timed out after %s", ErrTransient, ToolName, b.timeout)
	}
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return stdout, stderr, vmerrors.WrapToolNotFound(ToolName, err)
	}
	return stdout, stderr, err
}

// classifyCreate maps a failed create call onto the error variants. The
// secret value never appears in these messages; bws echoes request metadata,
// not payloads, and stderr is truncated regardless.
func (b *BWS) classifyCreate(name string, stderr []byte, err error) error {
	if errors.Is(err, ErrTransient) || vmerrors.IsFatal(err) {
		return err
	}

	stderrStr := string(stderr)
	detail := vmerrors.TruncateOutput(stderrStr, 200)

	switch {
	case strings.Contains(stderrStr, "already exists"):
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	case strings.Contains(stderrStr, "401"), strings.Contains(stderrStr, "403"),
		strings.Contains(stderrStr, "Unauthorized"), strings.Contains(stderrStr, "Forbidden"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
	case strings.Contains(stderrStr, "400"), strings.Contains(stderrStr, "Bad Request"):
		return fmt.Errorf("%w: %s", ErrInvalidValue, detail)
	case vmerrors.IsRetryable(errors.New(stderrStr)), vmerrors.IsRetryable(err):
		return fmt.Errorf("%w: %s", ErrTransient, detail)
	}

	return vmerrors.CommandError{
		Command:  ToolName,
		ExitCode: cliexec.ExitCode(err),
		Message:  detail,
	}
}
