package memory

import (
	"warden/pkg/logging"
	"warden/pkg/model"
	"warden/pkg/telemetry"
)

const (
	// retainedTurns is how many recent turns survive compression
	// verbatim.
	retainedTurns = 5

	maxSharedFiles = 3
	maxSnippets    = 5
)

// FileReader supplies shared file contents for budget accounting.
// *workspace.Workspace satisfies it.
type FileReader interface {
	Read(path string) (string, error)
}

// Manager enforces the token budget over an agent's memory record and
// builds the bounded history slice sent to the model.
type Manager struct {
	reader    FileReader
	maxTokens int
	logger    *logging.Logger
}

// NewManager builds a Manager for the given model token limit. reader
// may be nil when shared file costs should be ignored.
func NewManager(reader FileReader, maxTokens int, logger *logging.Logger) *Manager {
	return &Manager{reader: reader, maxTokens: maxTokens, logger: logger}
}

// memoryBudget is the ceiling for the whole record.
func (m *Manager) memoryBudget() int {
	return m.maxTokens * 7 / 10
}

// historyBudget is the smaller ceiling for the prompt history slice.
func (m *Manager) historyBudget() int {
	return m.maxTokens * 3 / 10
}

// Cost computes the record's approximate token footprint: turns,
// shared file contents re-read from disk, snippets, and any existing
// summary.
func (m *Manager) Cost(r *Record) int {
	total := EstimateTokens(r.ContextSummary)
	for _, turn := range r.Turns {
		total += EstimateTokens(turn.Content)
	}
	for _, snippet := range r.Snippets {
		total += EstimateTokens(snippet.Content)
	}
	if m.reader != nil {
		for _, path := range r.SharedFiles {
			content, err := m.reader.Read(path)
			if err != nil {
				continue
			}
			total += EstimateTokens(content)
		}
	}
	return total
}

// EnsureBudget compresses the record in place when its cost exceeds
// the memory budget. Compression keeps the last retainedTurns turns,
// folds everything older into a fresh digest that overwrites the
// previous summary, and increments the session counter. If the record
// is still over budget afterwards, shared files and snippets are
// trimmed to their most recent few. Returns true when compression ran.
func (m *Manager) EnsureBudget(agentID string, r *Record) bool {
	budget := m.memoryBudget()
	if m.Cost(r) <= budget {
		return false
	}

	compressed := false
	if len(r.Turns) > retainedTurns {
		older := r.Turns[:len(r.Turns)-retainedTurns]
		recent := r.Turns[len(r.Turns)-retainedTurns:]
		r.ContextSummary = buildDigest(older)
		r.Turns = append([]Turn(nil), recent...)
		r.SessionCount++
		compressed = true
		telemetry.RecordMemoryCompression()
		m.logger.Info(logging.CategoryMemory, "memory_compressed", agentID, "compressed agent memory", map[string]any{
			"folded_turns":   len(older),
			"retained_turns": len(recent),
			"session_count":  r.SessionCount,
		})
	}

	if m.Cost(r) > budget {
		if len(r.SharedFiles) > maxSharedFiles {
			r.SharedFiles = append([]string(nil), r.SharedFiles[len(r.SharedFiles)-maxSharedFiles:]...)
		}
		if len(r.Snippets) > maxSnippets {
			r.Snippets = append([]Snippet(nil), r.Snippets[len(r.Snippets)-maxSnippets:]...)
		}
		m.logger.Warn(logging.CategoryMemory, "context_trimmed", agentID, "trimmed shared context", map[string]any{
			"shared_files": len(r.SharedFiles),
			"snippets":     len(r.Snippets),
		})
	}

	return compressed
}

// BuildHistory selects the most recent turns that fit the history
// budget, newest first, then restores chronological order. The summary,
// when present, is always prepended as a system message and never
// counted against the trimming loop.
func (m *Manager) BuildHistory(r *Record) []model.Message {
	budget := m.historyBudget()

	var selected []Turn
	used := 0
	for i := len(r.Turns) - 1; i >= 0; i-- {
		cost := EstimateTokens(r.Turns[i].Content)
		if used+cost > budget {
			break
		}
		selected = append(selected, r.Turns[i])
		used += cost
	}

	messages := make([]model.Message, 0, len(selected)+1)
	if r.ContextSummary != "" {
		messages = append(messages, model.Message{
			Role:    model.RoleSystem,
			Content: "Previous conversation context: " + r.ContextSummary,
		})
	}
	for i := len(selected) - 1; i >= 0; i-- {
		messages = append(messages, model.Message{
			Role:    selected[i].Role,
			Content: selected[i].Content,
		})
	}
	return messages
}
