package decrypt

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"

	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/secure"
	"github.com/homelab-ops/vaultmig/pkg/cliexec"
)

// PassphraseSource supplies the vault passphrase to each ansible-vault
// invocation. Implementations must never persist the passphrase to disk.
type PassphraseSource interface {
	// Prepare is called once before any decryption happens. Interactive
	// sources prompt here so the operator is asked once per run, not once
	// per file.
	Prepare() error
	// Apply configures a single subprocess request with the passphrase.
	Apply(req *cliexec.Request) error
	// Destroy releases any held passphrase material. Idempotent.
	Destroy()
}

// fileSource passes an operator-managed password file straight through to
// the tool. The file is the operator's responsibility; vaultmig never reads
// its contents.
type fileSource struct {
	path string
}

// FromFile returns a source backed by an existing vault password file.
func FromFile(path string) PassphraseSource {
	return &fileSource{path: path}
}

func (f *fileSource) Prepare() error {
	info, err := os.Stat(f.path)
	if err != nil {
		return vmerrors.Fatal(vmerrors.UserError{
			Message:    "Vault password file not accessible",
			Details:    err.Error(),
			Suggestion: "Check the --vault-password-file path",
			Err:        err,
		})
	}
	if info.IsDir() {
		return vmerrors.Fatal(vmerrors.UserError{
			Message:    fmt.Sprintf("Vault password file %s is a directory", f.path),
			Suggestion: "Point --vault-password-file at a file containing the passphrase",
		})
	}
	return nil
}

func (f *fileSource) Apply(req *cliexec.Request) error {
	req.Args = append(req.Args, "--vault-password-file", f.path)
	return nil
}

func (f *fileSource) Destroy() {}

// interactiveSource prompts for the passphrase once and replays it to every
// invocation over stdin, so a run across many files asks exactly once.
type interactiveSource struct {
	once       sync.Once
	promptErr  error
	passphrase *secure.Buffer
	prompt     func() ([]byte, error)
}

// Interactive returns a source that prompts on the terminal.
func Interactive() PassphraseSource {
	return &interactiveSource{prompt: promptTerminal}
}

// InteractiveWithPrompt allows tests to substitute the terminal read.
func InteractiveWithPrompt(prompt func() ([]byte, error)) PassphraseSource {
	return &interactiveSource{prompt: prompt}
}

func promptTerminal() ([]byte, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, vmerrors.UserError{
			Message:    "No vault password file given and stdin is not a terminal",
			Suggestion: "Pass --vault-password-file, or run from an interactive shell",
		}
	}
	fmt.Fprint(os.Stderr, "Vault password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	return pw, err
}

func (i *interactiveSource) Prepare() error {
	i.once.Do(func() {
		pw, err := i.prompt()
		if err != nil {
			i.promptErr = vmerrors.Fatal(err)
			return
		}
		i.passphrase = secure.NewBuffer(pw)
		secure.Wipe(pw)
	})
	return i.promptErr
}

func (i *interactiveSource) Apply(req *cliexec.Request) error {
	if err := i.Prepare(); err != nil {
		return err
	}
	pw, err := i.passphrase.String()
	if err != nil {
		return err
	}
	// ansible-vault reads the passphrase from the "file" /dev/stdin; the
	// bytes only ever travel over the pipe, never through the filesystem.
	req.Args = append(req.Args, "--vault-password-file", "/dev/stdin")
	req.Stdin = strings.NewReader(pw + "\n")
	return nil
}

func (i *interactiveSource) Destroy() {
	if i.passphrase != nil {
		i.passphrase.Destroy()
	}
}
