// Package decrypt wraps the ansible-vault CLI. Decrypted bytes are captured
// from the tool's stdout and held in protected memory only; no temporary
// file ever contains cleartext.
package decrypt

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/homelab-ops/vaultmig/internal/discovery"
	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/logging"
	"github.com/homelab-ops/vaultmig/internal/secure"
	"github.com/homelab-ops/vaultmig/pkg/cliexec"
)

// ToolName is the external decryption executable.
const ToolName = "ansible-vault"

// ErrWrongPassphrase marks a decryption failure caused by a bad passphrase.
var ErrWrongPassphrase = errors.New("vault decryption failed")

// AnsibleVault invokes ansible-vault as a subprocess. The orchestrator
// consumes it through a narrow interface so tests can substitute a fake
// that never spawns the real tool.
type AnsibleVault struct {
	executor cliexec.Executor
	logger   *logging.Logger
	source   PassphraseSource
	timeout  time.Duration
}

// New creates the production adapter.
func New(logger *logging.Logger, source PassphraseSource, timeout time.Duration) *AnsibleVault {
	return &AnsibleVault{
		executor: cliexec.Default(),
		logger:   logger,
		source:   source,
		timeout:  timeout,
	}
}

// NewWithExecutor creates an adapter with a custom executor, for tests.
func NewWithExecutor(logger *logging.Logger, source PassphraseSource, timeout time.Duration, executor cliexec.Executor) *AnsibleVault {
	return &AnsibleVault{
		executor: executor,
		logger:   logger,
		source:   source,
		timeout:  timeout,
	}
}

// CheckTool verifies the executable is on PATH and the passphrase source is
// usable. Called before any work begins; failure aborts the run.
func (a *AnsibleVault) CheckTool() error {
	if err := cliexec.LookPath(ToolName); err != nil {
		return vmerrors.WrapToolNotFound(ToolName, err)
	}
	return a.source.Prepare()
}

// Decrypt returns the decrypted content of one vault file in a protected
// buffer. The subprocess writes cleartext to stdout only; --output=- keeps
// the source file untouched.
func (a *AnsibleVault) Decrypt(ctx context.Context, file discovery.VaultFile) (*secure.Buffer, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := cliexec.Request{
		Name: ToolName,
		Args: []string{"decrypt", "--output=-", file.Path},
	}
	if err := a.source.Apply(&req); err != nil {
		return nil, err
	}

	a.logger.Debug("Decrypting %s", file.Path)
	stdout, stderr, err := a.executor.Run(ctx, req)
	if err != nil {
		secure.Wipe(stdout)
		return nil, a.classify(file, stderr, ctx.Err(), err)
	}

	buf := secure.NewBuffer(stdout)
	secure.Wipe(stdout)
	return buf, nil
}

// classify maps a subprocess failure onto the error taxonomy. Stderr is
// truncated and never contains decrypted material; ansible-vault only echoes
// diagnostics there.
func (a *AnsibleVault) classify(file discovery.VaultFile, stderr []byte, ctxErr, err error) error {
	stderrStr := string(stderr)

	if errors.Is(err, exec.ErrNotFound) {
		return vmerrors.WrapToolNotFound(ToolName, err)
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return vmerrors.CommandError{
			Command:    ToolName,
			Message:    "timed out decrypting " + file.Path,
			Suggestion: "Increase --timeout if the host is slow",
		}
	}
	if strings.Contains(stderrStr, "Decryption failed") {
		return vmerrors.UserError{
			Message:    "Wrong vault passphrase for " + file.Path,
			Suggestion: vmerrors.ToolSuggestion(ToolName, errors.New(stderrStr)),
			Err:        ErrWrongPassphrase,
		}
	}

	return vmerrors.CommandError{
		Command:  ToolName,
		ExitCode: cliexec.ExitCode(err),
		Message:  vmerrors.TruncateOutput(stderrStr, 200),
	}
}
