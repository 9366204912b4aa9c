// Package migrate drives the discovery → decryption → extraction → naming →
// store-creation pipeline for one invocation.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homelab-ops/vaultmig/internal/config"
	"github.com/homelab-ops/vaultmig/internal/discovery"
	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/extract"
	"github.com/homelab-ops/vaultmig/internal/logging"
	"github.com/homelab-ops/vaultmig/internal/naming"
	"github.com/homelab-ops/vaultmig/internal/secure"
	"github.com/homelab-ops/vaultmig/internal/store"
)

// Decryptor is the decryption dependency; see decrypt.AnsibleVault.
type Decryptor interface {
	CheckTool() error
	Decrypt(ctx context.Context, file discovery.VaultFile) (*secure.Buffer, error)
}

// SecretStore is the store dependency; see store.BWS.
type SecretStore interface {
	CheckTool() error
	Authenticate(ctx context.Context) error
	ListExisting(ctx context.Context, projectID string) (map[string]string, error)
	Create(ctx context.Context, name, value, projectID string) (string, error)
}

// state names the orchestrator's phases, for trace logging.
type state string

const (
	stateInit           state = "init"
	stateAuthenticating state = "authenticating"
	stateDiscovering    state = "discovering"
	stateProcessing     state = "processing"
	stateFinalizing     state = "finalizing"
)

// Orchestrator runs one migration. It is strictly sequential: decryption and
// creation calls happen one at a time in discovery order, so duplicate
// detection and error attribution stay deterministic.
type Orchestrator struct {
	settings  config.Settings
	logger    *logging.Logger
	scanner   *discovery.Scanner
	decryptor Decryptor
	store     SecretStore
	extractor *extract.Extractor
	dryRun    bool

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

// New wires an orchestrator from its collaborators.
func New(settings config.Settings, logger *logging.Logger, decryptor Decryptor, secretStore SecretStore, dryRun bool) *Orchestrator {
	return &Orchestrator{
		settings:  settings,
		logger:    logger,
		scanner:   discovery.NewScanner(logger, settings.NamePatterns),
		decryptor: decryptor,
		store:     secretStore,
		extractor: extract.NewExtractor(settings.FlattenPrefix),
		dryRun:    dryRun,
		sleep:     time.Sleep,
	}
}

// Run executes the pipeline. The returned Run is always non-nil once
// processing has begun, even when err is set or the context was canceled, so
// the caller can still write artifacts for completed work. A fatal error
// before processing returns a nil Run.
func (o *Orchestrator) Run(ctx context.Context) (*Run, error) {
	o.trace(stateInit)

	// Fail fast on missing tools and bad credentials before any secret is
	// touched. Dry-run still validates; it only exempts mutation.
	o.trace(stateAuthenticating)
	if err := o.decryptor.CheckTool(); err != nil {
		return nil, err
	}
	if err := o.store.CheckTool(); err != nil {
		return nil, err
	}
	if err := o.store.Authenticate(ctx); err != nil {
		return nil, err
	}

	o.trace(stateDiscovering)
	files, skipped, err := o.scanner.Discover([]string{o.settings.AnsibleDir})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		o.logger.Warn("No vault files found under %s", o.settings.AnsibleDir)
	}

	// The existing-name cache is populated once per run and read-only
	// afterwards, trading a small staleness risk for determinism.
	existing, err := o.store.ListExisting(ctx, o.settings.ProjectID)
	if err != nil {
		return nil, vmerrors.Fatal(err)
	}

	run := NewRun(o.settings.Environment, o.settings.ProjectID, o.dryRun)
	run.SkippedFiles = skipped

	// seen maps target names claimed earlier in this run to their origin,
	// for collision reporting.
	seen := make(map[string]SecretEntry)

	o.trace(stateProcessing)
	for _, file := range files {
		if ctx.Err() != nil {
			// Interrupted: stop issuing new work but keep everything
			// recorded so far for the report.
			run.Interrupted = true
			break
		}
		o.processFile(ctx, run, file, existing, seen)
	}

	o.trace(stateFinalizing)
	run.Finalize()
	return run, nil
}

func (o *Orchestrator) processFile(ctx context.Context, run *Run, file discovery.VaultFile, existing map[string]string, seen map[string]SecretEntry) {
	o.logger.Debug("Processing %s (service %s)", file.Path, file.Service)
	run.FilesProcessed++

	buf, err := o.decryptor.Decrypt(ctx, file)
	if err != nil {
		// One undecryptable file skips that file's secrets only.
		o.logger.Error("Failed to decrypt %s: %v", file.Path, err)
		run.recordFileError(file.Path, err.Error())
		return
	}
	defer buf.Destroy()

	var secrets []extract.Secret
	extractErr := buf.With(func(plaintext []byte) error {
		var err error
		secrets, err = o.extractor.Extract(plaintext)
		return err
	})
	if extractErr != nil {
		o.logger.Error("Failed to parse decrypted YAML from %s: %v", file.Path, extractErr)
		run.recordFileError(file.Path, extractErr.Error())
		return
	}

	run.SecretsDiscovered += len(secrets)
	for _, sec := range secrets {
		if ctx.Err() != nil {
			run.Interrupted = true
			return
		}
		entry := SecretEntry{
			SourceFile:  file.Path,
			OriginalKey: sec.Key,
			Value:       sec.Value,
			TargetName:  naming.Derive(o.settings.Environment, file.Service, sec.Key),
		}
		o.processEntry(ctx, run, entry, existing, seen)
	}
}

// processEntry migrates one secret. A failed entry never stops processing of
// the remaining entries: every discovered secret is attempted exactly once.
func (o *Orchestrator) processEntry(ctx context.Context, run *Run, entry SecretEntry, existing map[string]string, seen map[string]SecretEntry) {
	if prior, taken := seen[entry.TargetName]; taken {
		o.logger.Error("Naming collision: %s (from %s %s) already derived from %s %s",
			entry.TargetName, entry.SourceFile, entry.OriginalKey, prior.SourceFile, prior.OriginalKey)
		run.record(entry, NewConflictResult(fmt.Sprintf(
			"naming collision: %q also derived from %s key %s; resolve manually",
			entry.TargetName, prior.SourceFile, prior.OriginalKey)))
		return
	}
	seen[entry.TargetName] = entry

	if id, exists := existing[entry.TargetName]; exists {
		o.logger.Warn("Secret %s already exists in store (id %s)", entry.TargetName, id)
		run.record(entry, NewConflictResult(fmt.Sprintf(
			"already exists in store (secret id: %s); delete or rename before re-running", id)))
		return
	}

	if o.dryRun {
		o.logger.Debug("Dry-run: would create %s", entry.TargetName)
		run.record(entry, Result{Status: StatusSkippedDryRun})
		return
	}

	id, err := o.createWithRetry(ctx, entry)
	if err != nil {
		o.logger.Error("Failed to create %s: %v", entry.TargetName, err)
		run.record(entry, Result{Status: StatusFailed, ErrorDetail: err.Error()})
		return
	}

	o.logger.Info("Created %s (id %s)", entry.TargetName, id)
	run.record(entry, Result{SecretID: id, Status: StatusCreated})
}

// createWithRetry retries transient store failures with linear backoff.
// Every other error category is terminal for the entry.
func (o *Orchestrator) createWithRetry(ctx context.Context, entry SecretEntry) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.settings.RetryAttempts; attempt++ {
		id, err := o.store.Create(ctx, entry.TargetName, entry.Value, o.settings.ProjectID)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			return "", err
		}
		if attempt < o.settings.RetryAttempts {
			backoff := time.Duration(attempt) * time.Second
			o.logger.Debug("Transient failure creating %s (attempt %d/%d), retrying in %s",
				entry.TargetName, attempt, o.settings.RetryAttempts, backoff)
			o.sleep(backoff)
		}
	}
	return "", lastErr
}

func isTransient(err error) bool {
	return errors.Is(err, store.ErrTransient)
}

func (o *Orchestrator) trace(s state) {
	o.logger.Debug("State: %s", s)
}
