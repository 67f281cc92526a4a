package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/pmezard/go-difflib/difflib"

	"warden/pkg/command"
	"warden/pkg/logging"
	"warden/pkg/notify"
	"warden/pkg/permission"
	"warden/pkg/telemetry"
	"warden/pkg/terminal"
	"warden/pkg/workspace"
)

// Record is the outcome of one invocation. Result is the short
// human-readable string surfaced to the user. Failed marks denials and
// per-task errors; Warning marks recoverable content mismatches (find
// text absent). Neither aborts the remaining invocations.
type Record struct {
	ID      string
	Kind    command.Kind
	Target  string
	Result  string
	Failed  bool
	Warning bool
}

// outcome classifies one invocation internally before it is folded
// into a Record.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeWarning
	outcomeError
)

// Executor runs authorized invocations against the workspace and
// terminal, one side effect per invocation.
type Executor struct {
	ws       *workspace.Workspace
	guard    *permission.Guard
	term     terminal.Terminal
	notifier notify.Notifier
	logger   *logging.Logger
	taskCap  int
}

// New builds an Executor. taskCap bounds how many invocations run per
// response; zero or negative falls back to 10.
func New(ws *workspace.Workspace, guard *permission.Guard, term terminal.Terminal, notifier notify.Notifier, logger *logging.Logger, taskCap int) *Executor {
	if taskCap <= 0 {
		taskCap = 10
	}
	return &Executor{ws: ws, guard: guard, term: term, notifier: notifier, logger: logger, taskCap: taskCap}
}

// Execute runs each invocation in the order given, which the scanner
// has already grouped kind by kind. The permission set is consulted
// immediately before each invocation, never cached. Once the task cap
// is reached remaining invocations are skipped; that is a cost
// control, not an error, and is logged distinctly.
func (e *Executor) Execute(ctx context.Context, agentID string, perms permission.Set, invocations []command.Invocation) []Record {
	var records []Record
	for _, inv := range invocations {
		if len(records) >= e.taskCap {
			e.logger.Warn(logging.CategoryExecutor, "task_cap_reached", agentID, "task cap reached, skipping remaining invocations", map[string]any{
				"cap":       e.taskCap,
				"remaining": len(invocations) - len(records),
			})
			e.notifier.Warn(ctx, agentID, fmt.Sprintf("Task limit reached (%d); remaining commands skipped", e.taskCap))
			break
		}

		rec := Record{ID: ulid.Make().String(), Kind: inv.Kind, Target: inv.Target}

		capability := permission.CapabilityFor(inv.Kind)
		decision := e.guard.Authorize(perms, capability, inv.Target)
		if !decision.Allowed {
			rec.Failed = true
			rec.Result = fmt.Sprintf("Permission denied (%s): %s %s", decision.Reason, inv.Kind, inv.Target)
			e.logger.Warn(logging.CategoryExecutor, "invocation_denied", agentID, rec.Result, map[string]any{
				"kind":   string(inv.Kind),
				"target": inv.Target,
				"reason": string(decision.Reason),
			})
			telemetry.RecordDenial(string(decision.Reason))
			records = append(records, rec)
			continue
		}

		result, out := e.run(ctx, agentID, inv)
		rec.Result = result
		rec.Failed = out == outcomeError
		rec.Warning = out == outcomeWarning
		level := logging.LevelInfo
		if out != outcomeOK {
			level = logging.LevelWarn
		}
		_ = e.logger.Log(logging.Event{
			Level:     level,
			Category:  logging.CategoryExecutor,
			EventType: "invocation_executed",
			AgentID:   agentID,
			Message:   result,
			Details:   map[string]any{"kind": string(inv.Kind), "target": inv.Target},
		})
		telemetry.RecordTask(string(inv.Kind))
		records = append(records, rec)
	}
	return records
}

// run performs the single side effect for one authorized invocation.
func (e *Executor) run(ctx context.Context, agentID string, inv command.Invocation) (string, outcome) {
	switch inv.Kind {
	case command.KindCreateFile:
		return e.createFile(ctx, agentID, inv)
	case command.KindEditFile, command.KindReplaceCode:
		return e.editFile(ctx, agentID, inv)
	case command.KindDeleteFile:
		return e.deleteFile(inv)
	case command.KindReadFile:
		return e.readFile(ctx, agentID, inv)
	case command.KindGrep:
		return e.grep(ctx, agentID, inv)
	case command.KindFindFiles:
		return e.findFiles(ctx, agentID, inv)
	case command.KindInsertCode:
		return e.insertCode(inv)
	case command.KindOpenEditor:
		return fmt.Sprintf("Opened in editor: %s", inv.Target), outcomeOK
	case command.KindFormatFile:
		return e.formatFile(inv)
	case command.KindGitCommand:
		return e.dispatch(ctx, "git "+inv.Target)
	case command.KindGitCommit:
		return e.dispatch(ctx, fmt.Sprintf("git commit -m %q", inv.Target))
	case command.KindRunCommand:
		return e.dispatch(ctx, inv.Target)
	default:
		return fmt.Sprintf("Unsupported command: %s", inv.Kind), outcomeError
	}
}

func (e *Executor) createFile(ctx context.Context, agentID string, inv command.Invocation) (string, outcome) {
	if err := e.ws.Write(inv.Target, inv.Body); err != nil {
		return fmt.Sprintf("Failed to create %s: %v", inv.Target, err), outcomeError
	}
	if inv.Substituted {
		e.notifier.Operator(ctx, agentID, fmt.Sprintf("Placeholder body substituted for empty create: %s", inv.Target))
	}
	return fmt.Sprintf("Created file: %s", inv.Target), outcomeOK
}

func (e *Executor) editFile(ctx context.Context, agentID string, inv command.Invocation) (string, outcome) {
	if !e.ws.Exists(inv.Target) {
		return fmt.Sprintf("File not found: %s", inv.Target), outcomeError
	}
	content, err := e.ws.Read(inv.Target)
	if err != nil {
		return fmt.Sprintf("Failed to read %s: %v", inv.Target, err), outcomeError
	}
	if !strings.Contains(content, inv.FindText) {
		// A mismatch is a warning, not a failure: the file is intact
		// and later invocations may still succeed.
		return fmt.Sprintf("Text not found in %s: %s", inv.Target, excerpt(inv.FindText)), outcomeWarning
	}

	// Literal, case-sensitive, all-occurrences replacement. Agents
	// replace single words inside longer lines, so the find text is
	// used exactly as given.
	updated := strings.ReplaceAll(content, inv.FindText, inv.ReplaceText)
	if err := e.ws.Write(inv.Target, updated); err != nil {
		return fmt.Sprintf("Failed to write %s: %v", inv.Target, err), outcomeError
	}

	if diff := unifiedDiff(inv.Target, content, updated); diff != "" {
		e.notifier.Operator(ctx, agentID, fmt.Sprintf("Edited %s:\n%s", inv.Target, diff))
	}
	return fmt.Sprintf("Edited file: %s", inv.Target), outcomeOK
}

func (e *Executor) deleteFile(inv command.Invocation) (string, outcome) {
	if !e.ws.Exists(inv.Target) {
		return fmt.Sprintf("File not found: %s", inv.Target), outcomeError
	}
	if err := e.ws.Delete(inv.Target); err != nil {
		return fmt.Sprintf("Failed to delete %s: %v", inv.Target, err), outcomeError
	}
	return fmt.Sprintf("Deleted file: %s", inv.Target), outcomeOK
}

func (e *Executor) readFile(ctx context.Context, agentID string, inv command.Invocation) (string, outcome) {
	content, err := e.ws.Read(inv.Target)
	if err != nil {
		return fmt.Sprintf("File not found: %s", inv.Target), outcomeError
	}
	e.notifier.Operator(ctx, agentID, fmt.Sprintf("Read %s (%d bytes)", inv.Target, len(content)))
	return fmt.Sprintf("Read file: %s", inv.Target), outcomeOK
}

func (e *Executor) grep(ctx context.Context, agentID string, inv command.Invocation) (string, outcome) {
	glob := inv.Glob
	if glob == "" {
		glob = "*"
	}
	files, err := e.ws.Glob(glob)
	if err != nil {
		return fmt.Sprintf("Failed to list files for %s: %v", glob, err), outcomeError
	}

	matcher := buildMatcher(inv.Target)
	matches := 0
	for _, path := range files {
		content, err := e.ws.Read(path)
		if err != nil {
			continue
		}
		for i, line := range strings.Split(content, "\n") {
			if matcher(line) {
				matches++
				e.notifier.Operator(ctx, agentID, fmt.Sprintf("%s:%d: %s", path, i+1, strings.TrimSpace(line)))
			}
		}
	}
	return fmt.Sprintf("Grep %q in %s: %d matches", inv.Target, glob, matches), outcomeOK
}

func (e *Executor) findFiles(ctx context.Context, agentID string, inv command.Invocation) (string, outcome) {
	files, err := e.ws.Glob(inv.Target)
	if err != nil {
		return fmt.Sprintf("Failed to find files for %s: %v", inv.Target, err), outcomeError
	}
	for _, path := range files {
		e.notifier.Operator(ctx, agentID, "Found: "+path)
	}
	return fmt.Sprintf("Found %d files matching %s", len(files), inv.Target), outcomeOK
}

func (e *Executor) insertCode(inv command.Invocation) (string, outcome) {
	if !e.ws.Exists(inv.Target) {
		return fmt.Sprintf("File not found: %s", inv.Target), outcomeError
	}
	content, err := e.ws.Read(inv.Target)
	if err != nil {
		return fmt.Sprintf("Failed to read %s: %v", inv.Target, err), outcomeError
	}

	lines := strings.Split(content, "\n")
	idx := inv.Line - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(lines) {
		idx = len(lines)
	}
	updated := make([]string, 0, len(lines)+1)
	updated = append(updated, lines[:idx]...)
	updated = append(updated, inv.Body)
	updated = append(updated, lines[idx:]...)

	if err := e.ws.Write(inv.Target, strings.Join(updated, "\n")); err != nil {
		return fmt.Sprintf("Failed to write %s: %v", inv.Target, err), outcomeError
	}
	return fmt.Sprintf("Inserted code into %s at line %d", inv.Target, inv.Line), outcomeOK
}

func (e *Executor) formatFile(inv command.Invocation) (string, outcome) {
	if !e.ws.Exists(inv.Target) {
		return fmt.Sprintf("File not found: %s", inv.Target), outcomeError
	}
	return fmt.Sprintf("Formatted file: %s", inv.Target), outcomeOK
}

// dispatch hands the command string verbatim to the terminal. The
// guard is the only safety gate; no parsing or sanitizing happens here.
func (e *Executor) dispatch(ctx context.Context, cmd string) (string, outcome) {
	if err := e.term.Dispatch(ctx, cmd); err != nil {
		return fmt.Sprintf("Failed to run command: %v", err), outcomeError
	}
	return fmt.Sprintf("Dispatched to terminal %s: %s", e.term.Name(), cmd), outcomeOK
}

// buildMatcher compiles the grep pattern case-insensitively, falling
// back to substring matching when the pattern is not a valid regexp.
func buildMatcher(pattern string) func(string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		lower := strings.ToLower(pattern)
		return func(line string) bool {
			return strings.Contains(strings.ToLower(line), lower)
		}
	}
	return re.MatchString
}

func unifiedDiff(path, before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path,
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(diff)
}

// excerpt shortens find text for result strings, truncating on a rune
// boundary.
func excerpt(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return text
}
