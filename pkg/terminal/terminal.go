// Package terminal dispatches raw command strings to a named terminal
// session with fire-and-show semantics: the core never captures output or
// exit codes, it only hands the command off for visible execution.
package terminal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Terminal dispatches a raw command string for execution.
type Terminal interface {
	// Dispatch hands the command string to the terminal session verbatim.
	// It returns once the command has been started, not when it finishes.
	Dispatch(ctx context.Context, command string) error
	// Name identifies the terminal session.
	Name() string
}

// ShellTerminal runs dispatched commands through the user's shell in a
// fixed working directory. Output goes to the terminal log file, never back
// to the caller.
type ShellTerminal struct {
	name    string
	workDir string
	mu      sync.Mutex
	logFile *os.File
}

// NewShellTerminal creates a terminal session. logPath may be empty, in
// which case command output is discarded.
func NewShellTerminal(name, workDir, logPath string) (*ShellTerminal, error) {
	t := &ShellTerminal{name: name, workDir: workDir}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open terminal log: %w", err)
		}
		t.logFile = f
	}
	return t, nil
}

// Name returns the terminal session name.
func (t *ShellTerminal) Name() string {
	return t.name
}

// Dispatch starts the command and returns without waiting for it.
func (t *ShellTerminal) Dispatch(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if t.workDir != "" {
		cmd.Dir = t.workDir
	}

	t.mu.Lock()
	if t.logFile != nil {
		fmt.Fprintf(t.logFile, "$ %s\n", command)
		cmd.Stdout = t.logFile
		cmd.Stderr = t.logFile
	}
	t.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	// Reap in the background; exit codes are intentionally not surfaced.
	go func() { _ = cmd.Wait() }()

	return nil
}

// Close releases the terminal log file.
func (t *ShellTerminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile != nil {
		return t.logFile.Close()
	}
	return nil
}

// RecordingTerminal captures dispatched commands without running them.
// Used in tests and dry runs.
type RecordingTerminal struct {
	name string
	mu   sync.Mutex
	cmds []string
}

// NewRecordingTerminal creates a terminal that only records.
func NewRecordingTerminal(name string) *RecordingTerminal {
	return &RecordingTerminal{name: name}
}

// Name returns the terminal session name.
func (t *RecordingTerminal) Name() string { return t.name }

// Dispatch records the command.
func (t *RecordingTerminal) Dispatch(_ context.Context, command string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmds = append(t.cmds, command)
	return nil
}

// Commands returns a copy of every dispatched command in order.
func (t *RecordingTerminal) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.cmds...)
}
