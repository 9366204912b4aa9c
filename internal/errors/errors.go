package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents an external tool invocation error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// FatalError marks an error that must abort the whole run before any secret
// is touched (missing tool, bad credentials, zero readable scan roots).
// The process exits with code 2 when one of these surfaces.
type FatalError struct {
	Err error
}

func (e FatalError) Error() string {
	return e.Err.Error()
}

func (e FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps an error as fatal. Returns nil for a nil error.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return FatalError{Err: err}
}

// IsFatal reports whether any error in the chain is a FatalError.
func IsFatal(err error) bool {
	var fe FatalError
	return errors.As(err, &fe)
}

// WrapToolNotFound wraps missing-executable errors with install hints for the
// external CLIs the migration depends on.
func WrapToolNotFound(tool string, err error) error {
	suggestions := map[string]string{
		"ansible-vault": "Install Ansible: pipx install ansible-core (or apt install ansible)",
		"bws":           "Install the Bitwarden Secrets Manager CLI: https://bitwarden.com/help/secrets-manager-cli/",
	}

	suggestion := suggestions[tool]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", tool)
	}

	return Fatal(CommandError{
		Command:    tool,
		Message:    "command not found",
		Suggestion: suggestion,
	})
}

// ToolSuggestion returns a helpful hint for a failed external tool call.
func ToolSuggestion(tool string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch tool {
	case "ansible-vault":
		if strings.Contains(errStr, "Decryption failed") {
			return "Check the vault passphrase. The same password must decrypt every vault file in the run"
		}
		if strings.Contains(errStr, "input is not vault encrypted data") {
			return "The file is not ansible-vault ciphertext. Plaintext files are skipped automatically during discovery"
		}

	case "bws":
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
			return "The access token was rejected. Generate a new machine-account token in Bitwarden Secrets Manager"
		}
		if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
			return "The machine account lacks write access to the target project"
		}
		if strings.Contains(errStr, "404") {
			return "Verify the project id. List projects with: bws project list"
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and try again"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// TruncateOutput trims captured tool output for inclusion in error details.
// Output beyond the limit rarely adds signal and bloats reports.
func TruncateOutput(output string, limit int) string {
	output = strings.TrimSpace(output)
	if len(output) <= limit {
		return output
	}
	return output[:limit] + "... (truncated)"
}
