package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "secret is redacted", input: "my-secret-password"},
		{name: "empty secret is still redacted", input: ""},
		{name: "complex secret is redacted", input: "password123!@#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, "[REDACTED]", Secret(tt.input).String())
			assert.Equal(t, "[REDACTED]", Secret(tt.input).GoString())
		})
	}
}

func TestLoggerNeverPrintsSecretType(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(true, true, &buf)

	secretValue := "super-secret-password-12345"
	logger.Info("retrieved secret: %s", Secret(secretValue))
	logger.Debug("processing secret: %s", Secret(secretValue))

	out := buf.String()
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, secretValue)
}

func TestDebugSuppressedWithoutVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(false, true, &buf)

	logger.Debug("hidden trace")
	assert.Empty(t, buf.String())

	logger.Warn("visible warning")
	assert.Contains(t, buf.String(), "visible warning")
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{
			name:     "single secret redacted",
			input:    "The password is secret123",
			secrets:  []string{"secret123"},
			expected: "The password is [REDACTED]",
		},
		{
			name:     "multiple secrets redacted",
			input:    "password secret123 and token abc123xyz",
			secrets:  []string{"secret123", "abc123xyz"},
			expected: "password [REDACTED] and token [REDACTED]",
		},
		{
			name:     "short values left alone",
			input:    "port 443 is fine",
			secrets:  []string{"443"},
			expected: "port 443 is fine",
		},
		{
			name:     "no secrets to redact",
			input:    "This has no secrets",
			secrets:  nil,
			expected: "This has no secrets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Redact(tt.input, tt.secrets))
		})
	}
}
