package migrate

import (
	"time"

	"github.com/homelab-ops/vaultmig/internal/discovery"
)

// Status is the outcome of one secret entry.
type Status string

const (
	StatusCreated       Status = "created"
	StatusSkippedDryRun Status = "skipped-dry-run"
	StatusFailed        Status = "failed"
)

// SecretEntry is one extracted key/value pair pending migration. Value must
// never be logged, printed, or written to any artifact; only TargetName,
// OriginalKey and the store-assigned id may appear in persisted output.
type SecretEntry struct {
	SourceFile  string
	OriginalKey string
	Value       string
	TargetName  string
}

// Result is the outcome record for one SecretEntry.
type Result struct {
	SecretID string // empty unless Status == StatusCreated
	Status   Status
	// ErrorDetail is present only for failed entries and never contains
	// the secret value.
	ErrorDetail string

	// conflict marks duplicate-name failures for the report's conflict
	// section.
	conflict bool
}

// NewConflictResult builds a failed result flagged as a name conflict, for
// the report's dedicated conflict section.
func NewConflictResult(detail string) Result {
	return Result{Status: StatusFailed, ErrorDetail: detail, conflict: true}
}

// Outcome pairs an entry with its result.
type Outcome struct {
	Entry  SecretEntry
	Result Result
}

// FileError records a file-level failure (unreadable or undecryptable file).
type FileError struct {
	Path   string
	Detail string
}

// Run is the aggregate state of one invocation. The orchestrator owns it
// exclusively; after Finalize the counts are frozen and it is handed to the
// report writer read-only.
type Run struct {
	StartedAt   time.Time
	Environment string
	ProjectID   string
	DryRun      bool

	FilesProcessed    int
	SecretsDiscovered int
	SecretsCreated    int
	Errors            int

	// Outcomes preserves discovery order for reproducible reports.
	Outcomes     []Outcome
	FileErrors   []FileError
	SkippedFiles []discovery.Skipped

	// Interrupted is set when the run stopped early on a signal; the
	// artifacts then cover the work completed so far.
	Interrupted bool

	finalized bool
}

// NewRun creates the state for one invocation.
func NewRun(environment, projectID string, dryRun bool) *Run {
	return &Run{
		StartedAt:   time.Now(),
		Environment: environment,
		ProjectID:   projectID,
		DryRun:      dryRun,
	}
}

func (r *Run) record(entry SecretEntry, result Result) {
	if r.finalized {
		panic("migrate: record after finalize")
	}
	r.Outcomes = append(r.Outcomes, Outcome{Entry: entry, Result: result})
	switch result.Status {
	case StatusCreated:
		r.SecretsCreated++
	case StatusFailed:
		r.Errors++
	}
}

func (r *Run) recordFileError(path string, detail string) {
	if r.finalized {
		panic("migrate: record after finalize")
	}
	r.FileErrors = append(r.FileErrors, FileError{Path: path, Detail: detail})
	r.Errors++
}

// Finalize freezes the run. Further mutation panics.
func (r *Run) Finalize() {
	r.finalized = true
}

// Failed reports whether any file- or entry-level failure occurred.
func (r *Run) Failed() bool {
	return r.Errors > 0
}

// Conflicts returns the failed outcomes caused by naming collisions or
// pre-existing store names, for prominent listing in the report.
func (r *Run) Conflicts() []Outcome {
	var conflicts []Outcome
	for _, o := range r.Outcomes {
		if o.Result.Status == StatusFailed && o.Result.conflict {
			conflicts = append(conflicts, o)
		}
	}
	return conflicts
}
