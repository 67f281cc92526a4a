package terminal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingTerminalKeepsOrder(t *testing.T) {
	term := NewRecordingTerminal("test")
	require.NoError(t, term.Dispatch(context.Background(), "first"))
	require.NoError(t, term.Dispatch(context.Background(), "second"))

	assert.Equal(t, "test", term.Name())
	assert.Equal(t, []string{"first", "second"}, term.Commands())
}

func TestShellTerminalRejectsEmptyCommand(t *testing.T) {
	term, err := NewShellTerminal("test", t.TempDir(), "")
	require.NoError(t, err)
	defer term.Close()

	assert.Error(t, term.Dispatch(context.Background(), "   "))
}

func TestShellTerminalLogsDispatchedCommands(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "terminal.log")

	term, err := NewShellTerminal("test", dir, logPath)
	require.NoError(t, err)
	defer term.Close()

	require.NoError(t, term.Dispatch(context.Background(), "true"))

	// Dispatch returns before the command finishes; the log header is
	// written synchronously.
	var data []byte
	require.Eventually(t, func() bool {
		data, err = os.ReadFile(logPath)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(data), "$ true")
}
