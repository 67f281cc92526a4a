package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/command"
	"warden/pkg/logging"
	"warden/pkg/permission"
	"warden/pkg/terminal"
	"warden/pkg/workspace"
)

type recordingNotifier struct {
	operator []string
	warnings []string
}

func (n *recordingNotifier) Info(_ context.Context, _, _ string)  {}
func (n *recordingNotifier) Error(_ context.Context, _, _ string) {}

func (n *recordingNotifier) Warn(_ context.Context, _, message string) {
	n.warnings = append(n.warnings, message)
}

func (n *recordingNotifier) Operator(_ context.Context, _, message string) {
	n.operator = append(n.operator, message)
}

type fixture struct {
	exec     *Executor
	ws       *workspace.Workspace
	term     *terminal.RecordingTerminal
	notifier *recordingNotifier
	root     string
}

func newFixture(t *testing.T, taskCap int) *fixture {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.New(root)
	require.NoError(t, err)

	term := terminal.NewRecordingTerminal("test")
	notifier := &recordingNotifier{}
	exec := New(ws, permission.NewGuard(), term, notifier, logging.NewNopLogger(), taskCap)
	return &fixture{exec: exec, ws: ws, term: term, notifier: notifier, root: root}
}

func allWrite() permission.Set {
	return permission.Allow(permission.CapWriteFiles, permission.CapReadFiles)
}

func scan(text string) []command.Invocation {
	return command.NewScanner(true).Scan(text).Invocations
}

func TestCreateThenEditScenario(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	records := f.exec.Execute(ctx, "a1", allWrite(), scan("[CREATE_FILE: test.txt]\nHello World\n[/CREATE_FILE]"))
	require.Len(t, records, 1)
	assert.Equal(t, "Created file: test.txt", records[0].Result)
	assert.False(t, records[0].Failed)

	content, err := f.ws.Read("test.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", content)

	records = f.exec.Execute(ctx, "a1", allWrite(), scan("[EDIT_FILE: test.txt]\n[FIND]Hello World[/FIND]\n[REPLACE]second try[/REPLACE]\n[/EDIT_FILE]"))
	require.Len(t, records, 1)
	assert.Equal(t, "Edited file: test.txt", records[0].Result)

	content, err = f.ws.Read("test.txt")
	require.NoError(t, err)
	assert.Equal(t, "second try", content)
}

func TestCreatesExecuteBeforeEditsRegardlessOfInterleaving(t *testing.T) {
	f := newFixture(t, 10)

	// Edits textually precede the creates that produce their targets.
	text := "[EDIT_FILE: a.txt]\n[FIND]one[/FIND]\n[REPLACE]two[/REPLACE]\n[/EDIT_FILE]\n" +
		"[CREATE_FILE: a.txt]\none\n[/CREATE_FILE]\n" +
		"[EDIT_FILE: b.txt]\n[FIND]x[/FIND]\n[REPLACE]y[/REPLACE]\n[/EDIT_FILE]\n" +
		"[CREATE_FILE: b.txt]\nx\n[/CREATE_FILE]\n"

	records := f.exec.Execute(context.Background(), "a1", allWrite(), scan(text))
	require.Len(t, records, 4)
	assert.Equal(t, command.KindCreateFile, records[0].Kind)
	assert.Equal(t, command.KindCreateFile, records[1].Kind)
	assert.Equal(t, command.KindEditFile, records[2].Kind)
	assert.Equal(t, command.KindEditFile, records[3].Kind)

	a, _ := f.ws.Read("a.txt")
	b, _ := f.ws.Read("b.txt")
	assert.Equal(t, "two", a)
	assert.Equal(t, "y", b)
}

func TestEditReplacesAllOccurrences(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("multi.txt", "foo bar foo baz foo"))

	records := f.exec.Execute(context.Background(), "a1", allWrite(),
		scan("[EDIT_FILE: multi.txt]\n[FIND]foo[/FIND]\n[REPLACE]qux[/REPLACE]\n[/EDIT_FILE]"))
	require.Len(t, records, 1)
	assert.False(t, records[0].Failed)

	content, _ := f.ws.Read("multi.txt")
	assert.Equal(t, "qux bar qux baz qux", content)
	// The edit diff goes to the operator log.
	require.NotEmpty(t, f.notifier.operator)
	assert.Contains(t, f.notifier.operator[0], "multi.txt")
}

func TestEditFindTextAbsentLeavesFileUntouched(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("keep.txt", "original content"))

	records := f.exec.Execute(context.Background(), "a1", allWrite(),
		scan("[EDIT_FILE: keep.txt]\n[FIND]missing text[/FIND]\n[REPLACE]anything[/REPLACE]\n[/EDIT_FILE]"))
	require.Len(t, records, 1)
	assert.True(t, records[0].Warning)
	assert.False(t, records[0].Failed)
	assert.Contains(t, records[0].Result, "Text not found in keep.txt")

	content, _ := f.ws.Read("keep.txt")
	assert.Equal(t, "original content", content)
}

func TestContentMismatchDistinctFromFatalError(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("keep.txt", "original content"))

	// 70 runes of mostly multibyte text: byte 60 lands inside a rune.
	findText := "ab" + strings.Repeat("界", 68)
	records := f.exec.Execute(context.Background(), "a1", allWrite(), scan(
		"[EDIT_FILE: keep.txt]\n[FIND]"+findText+"[/FIND]\n[REPLACE]x[/REPLACE]\n[/EDIT_FILE]"+
			"[EDIT_FILE: gone.txt]\n[FIND]a[/FIND]\n[REPLACE]b[/REPLACE]\n[/EDIT_FILE]"))
	require.Len(t, records, 2)

	// Multibyte find text must excerpt cleanly, never mid-rune.
	assert.True(t, records[0].Warning)
	assert.False(t, records[0].Failed)
	assert.True(t, utf8.ValidString(records[0].Result))

	assert.True(t, records[1].Failed)
	assert.False(t, records[1].Warning)
	assert.Contains(t, records[1].Result, "File not found: gone.txt")
}

func TestEditMissingFileFails(t *testing.T) {
	f := newFixture(t, 10)
	records := f.exec.Execute(context.Background(), "a1", allWrite(),
		scan("[EDIT_FILE: ghost.txt]\n[FIND]a[/FIND]\n[REPLACE]b[/REPLACE]\n[/EDIT_FILE]"))
	require.Len(t, records, 1)
	assert.True(t, records[0].Failed)
	assert.Equal(t, "File not found: ghost.txt", records[0].Result)
}

func TestDeleteFile(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("doomed.txt", "bye"))

	records := f.exec.Execute(context.Background(), "a1", allWrite(), scan("[DELETE_FILE: doomed.txt]"))
	require.Len(t, records, 1)
	assert.Equal(t, "Deleted file: doomed.txt", records[0].Result)
	assert.False(t, f.ws.Exists("doomed.txt"))

	records = f.exec.Execute(context.Background(), "a1", allWrite(), scan("[DELETE_FILE: doomed.txt]"))
	assert.True(t, records[0].Failed)
}

func TestPermissionDeniedLeavesFilesystemUntouched(t *testing.T) {
	f := newFixture(t, 10)

	before, err := os.ReadDir(f.root)
	require.NoError(t, err)

	records := f.exec.Execute(context.Background(), "a1", permission.Set{},
		scan("[CREATE_FILE: blocked.txt]\ncontent\n[/CREATE_FILE]"))
	require.Len(t, records, 1)
	assert.True(t, records[0].Failed)
	assert.Contains(t, records[0].Result, "Permission denied")
	assert.Contains(t, records[0].Result, string(permission.ReasonMissingCapability))

	after, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestScopeViolationDeniedDistinctly(t *testing.T) {
	f := newFixture(t, 10)
	perms := permission.Allow(permission.CapWriteFiles).WithScope(permission.CapWriteFiles, "*.txt")

	records := f.exec.Execute(context.Background(), "a1", perms,
		scan("[CREATE_FILE: notes.js]\nx\n[/CREATE_FILE][CREATE_FILE: notes.txt]\nok\n[/CREATE_FILE]"))
	require.Len(t, records, 2)

	byTarget := map[string]Record{}
	for _, r := range records {
		byTarget[r.Target] = r
	}
	assert.Contains(t, byTarget["notes.js"].Result, string(permission.ReasonScopeViolation))
	assert.Equal(t, "Created file: notes.txt", byTarget["notes.txt"].Result)
}

func TestTaskCapHaltsExecution(t *testing.T) {
	f := newFixture(t, 3)

	text := ""
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		text += "[CREATE_FILE: " + name + ".txt]\ncontent\n[/CREATE_FILE]\n"
	}
	records := f.exec.Execute(context.Background(), "a1", allWrite(), scan(text))

	assert.Len(t, records, 3)
	assert.True(t, f.ws.Exists("c.txt"))
	assert.False(t, f.ws.Exists("d.txt"))
	require.NotEmpty(t, f.notifier.warnings)
	assert.Contains(t, f.notifier.warnings[0], "Task limit reached")
}

func TestInsertCodeSplicesBeforeLine(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("code.go", "line1\nline2\nline3"))

	records := f.exec.Execute(context.Background(), "a1", allWrite(),
		scan("[INSERT_CODE: code.go:2]\ninserted\n[/INSERT_CODE]"))
	require.Len(t, records, 1)
	assert.False(t, records[0].Failed)

	content, _ := f.ws.Read("code.go")
	assert.Equal(t, "line1\ninserted\nline2\nline3", content)
}

func TestGrepReportsThroughOperatorLog(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("x.go", "package main\nfunc Main() {}\n"))
	require.NoError(t, f.ws.Write("y.go", "package main\n// nothing\n"))

	records := f.exec.Execute(context.Background(), "a1", allWrite(), scan("[GREP: FUNC, *.go]"))
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Result, "1 matches")

	require.Len(t, f.notifier.operator, 1)
	assert.Contains(t, f.notifier.operator[0], "x.go:2")
}

func TestFindFiles(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.ws.Write("one.md", "a"))
	require.NoError(t, f.ws.Write("sub/two.md", "b"))
	require.NoError(t, f.ws.Write("three.txt", "c"))

	records := f.exec.Execute(context.Background(), "a1", allWrite(), scan("[FIND_FILES: *.md]"))
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Result, "2 files")
	assert.Len(t, f.notifier.operator, 2)
}

func TestGitAndRunCommandsDispatchVerbatim(t *testing.T) {
	f := newFixture(t, 10)
	perms := permission.Allow(permission.CapGitOperations, permission.CapExecuteCommands)

	text := "[GIT_COMMAND: status --short]\n[GIT_COMMIT: initial layout]\n[RUN_COMMAND: ls -la]"
	records := f.exec.Execute(context.Background(), "a1", perms, scan(text))
	require.Len(t, records, 3)
	for _, r := range records {
		assert.False(t, r.Failed)
	}

	cmds := f.term.Commands()
	require.Len(t, cmds, 3)
	assert.Contains(t, cmds, "git status --short")
	assert.Contains(t, cmds, `git commit -m "initial layout"`)
	assert.Contains(t, cmds, "ls -la")
}

func TestEmptyCreateBodyWritesPlaceholder(t *testing.T) {
	f := newFixture(t, 10)

	records := f.exec.Execute(context.Background(), "a1", allWrite(),
		scan("[CREATE_FILE: empty.txt]\n\n[/CREATE_FILE]"))
	require.Len(t, records, 1)
	assert.False(t, records[0].Failed)

	content, err := f.ws.Read("empty.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, content)
	assert.Contains(t, content, "empty.txt")
	// The substitution is surfaced on the operator log.
	require.NotEmpty(t, f.notifier.operator)
	assert.Contains(t, f.notifier.operator[0], "Placeholder")
}

func TestRoundTripCreateThenRead(t *testing.T) {
	f := newFixture(t, 10)
	body := "alpha\nbeta\ngamma"

	f.exec.Execute(context.Background(), "a1", allWrite(),
		scan("[CREATE_FILE: rt.txt]\n"+body+"\n[/CREATE_FILE]"))

	raw, err := os.ReadFile(filepath.Join(f.root, "rt.txt"))
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
}
