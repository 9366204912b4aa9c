package cliexec

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MockExecutor provides a configurable mock for testing CLI-based adapters.
type MockExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args).
	// A pattern matches as a prefix; "*" acts as a wildcard.
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// Calls stores every invocation for verification.
	Calls []RecordedCall

	// StrictMode causes Run to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// RecordedCall stores information about one command invocation.
type RecordedCall struct {
	Name  string
	Args  []string
	Stdin string
	Env   []string
}

// NewMockExecutor creates a new mock executor with empty responses.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Responses: make(map[string]MockResponse),
	}
}

// Run returns the mocked response for the given request.
func (m *MockExecutor) Run(_ context.Context, req Request) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := RecordedCall{Name: req.Name, Args: req.Args, Env: req.Env}
	if req.Stdin != nil {
		data, _ := io.ReadAll(req.Stdin)
		call.Stdin = string(data)
	}
	m.Calls = append(m.Calls, call)

	key := buildKey(req.Name, req.Args)
	if resp, ok := m.Responses[key]; ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}
	for pattern, resp := range m.Responses {
		if matchesPattern(key, pattern) {
			return resp.Stdout, resp.Stderr, resp.Err
		}
	}
	if m.DefaultResponse != nil {
		return m.DefaultResponse.Stdout, m.DefaultResponse.Stderr, m.DefaultResponse.Err
	}
	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}
	return []byte{}, []byte{}, nil
}

// AddResponse registers a mock response for a command pattern.
func (m *MockExecutor) AddResponse(pattern string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = resp
}

// AddJSONResponse is a convenience method to add a successful JSON response.
func (m *MockExecutor) AddJSONResponse(pattern, jsonData string) {
	m.AddResponse(pattern, MockResponse{Stdout: []byte(jsonData)})
}

// AddErrorResponse adds a non-zero-exit response for a command pattern.
func (m *MockExecutor) AddErrorResponse(pattern, stderrMsg string, exitCode int) {
	m.AddResponse(pattern, MockResponse{
		Stderr: []byte(stderrMsg),
		Err:    fmt.Errorf("exit status %d", exitCode),
	})
}

// CallsTo returns all recorded calls for the given executable name.
func (m *MockExecutor) CallsTo(name string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []RecordedCall
	for _, call := range m.Calls {
		if call.Name == name {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of times Run was invoked.
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func matchesPattern(key, pattern string) bool {
	if strings.Contains(pattern, "*") {
		return strings.HasPrefix(key, strings.SplitN(pattern, "*", 2)[0])
	}
	return strings.HasPrefix(key, pattern)
}
