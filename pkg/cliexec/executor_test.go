package cliexec

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		req         Request
		wantSuccess bool
		wantStdout  string
	}{
		{
			name:        "echo command",
			req:         Request{Name: "echo", Args: []string{"hello"}},
			wantSuccess: true,
			wantStdout:  "hello\n",
		},
		{
			name:        "stdin is forwarded",
			req:         Request{Name: "cat", Stdin: strings.NewReader("piped")},
			wantSuccess: true,
			wantStdout:  "piped",
		},
		{
			name:        "missing executable",
			req:         Request{Name: "nonexistent_command_xyz123"},
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			executor := &RealExecutor{}
			stdout, stderr, err := executor.Run(context.Background(), tt.req)

			if tt.wantSuccess {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStdout, string(stdout))
				assert.Empty(t, stderr)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRealExecutor_StderrCapture(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}
	stdout, stderr, err := executor.Run(context.Background(), Request{
		Name: "sh",
		Args: []string{"-c", "echo out && echo err >&2"},
	})

	require.NoError(t, err)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
}

func TestRealExecutor_ContextCancellation(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := executor.Run(ctx, Request{Name: "sleep", Args: []string{"10"}})
	assert.Error(t, err)
}

func TestRealExecutor_ExtraEnv(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}
	stdout, _, err := executor.Run(context.Background(), Request{
		Name: "sh",
		Args: []string{"-c", "printf '%s' \"$CLIEXEC_TEST_VAR\""},
		Env:  []string{"CLIEXEC_TEST_VAR=injected"},
	})

	require.NoError(t, err)
	assert.Equal(t, "injected", string(stdout))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}
	_, _, err := executor.Run(context.Background(), Request{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))

	assert.Equal(t, 0, ExitCode(nil))

	_, _, err = executor.Run(context.Background(), Request{Name: "nonexistent_command_xyz123"})
	require.Error(t, err)
	assert.Equal(t, -1, ExitCode(err))
}

func TestMockExecutor_Responses(t *testing.T) {
	t.Parallel()

	mock := NewMockExecutor()
	mock.AddJSONResponse("bws secret list", `[{"id":"1"}]`)
	mock.AddErrorResponse("bws secret create bad", "400: invalid value", 1)

	stdout, _, err := mock.Run(context.Background(), Request{Name: "bws", Args: []string{"secret", "list"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(stdout))

	_, stderr, err := mock.Run(context.Background(), Request{Name: "bws", Args: []string{"secret", "create", "bad", "v"}})
	assert.Error(t, err)
	assert.Contains(t, string(stderr), "invalid value")

	assert.Equal(t, 2, mock.CallCount())
	assert.Len(t, mock.CallsTo("bws"), 2)
}

func TestMockExecutor_StrictMode(t *testing.T) {
	t.Parallel()

	mock := NewMockExecutor()
	mock.StrictMode = true

	_, _, err := mock.Run(context.Background(), Request{Name: "unconfigured"})
	assert.Error(t, err)
}

func TestMockExecutor_RecordsStdin(t *testing.T) {
	t.Parallel()

	mock := NewMockExecutor()
	_, _, err := mock.Run(context.Background(), Request{Name: "cat", Stdin: strings.NewReader("secret-passphrase")})
	require.NoError(t, err)

	calls := mock.CallsTo("cat")
	require.Len(t, calls, 1)
	assert.Equal(t, "secret-passphrase", calls[0].Stdin)
}
