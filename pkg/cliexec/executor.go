// Package cliexec provides abstractions for invoking external CLI tools.
// This package enables testable code by allowing subprocess behavior to be mocked.
package cliexec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// Request describes one subprocess invocation.
type Request struct {
	Name  string   // Executable name, resolved via PATH
	Args  []string // Arguments, never containing secret values unless contractually required by the tool
	Stdin io.Reader
	Env   []string // Extra environment entries (KEY=VALUE) appended to the inherited environment; nil inherits as-is
}

// Executor defines an interface for running external commands.
// This abstraction allows CLI tool behavior to be mocked in tests.
type Executor interface {
	// Run executes the request under the given context.
	// Returns captured stdout, captured stderr, and any error that occurred.
	Run(ctx context.Context, req Request) (stdout []byte, stderr []byte, err error)
}

// RealExecutor executes actual commands using os/exec.
// This is the production implementation.
type RealExecutor struct{}

// Run executes an actual command with stdout and stderr captured in memory.
// No output is ever written to a file by the executor itself.
func (r *RealExecutor) Run(ctx context.Context, req Request) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, req.Name, req.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = req.Stdin
	if req.Env != nil {
		cmd.Env = append(cmd.Environ(), req.Env...)
	}
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Default returns the standard production executor.
func Default() Executor {
	return &RealExecutor{}
}

// LookPath reports whether an executable is resolvable via PATH.
func LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}

// ExitCode extracts the exit code from a command error.
// Returns -1 when the error is not an exit error (e.g. the tool was not found
// or the context was canceled before the process exited).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
