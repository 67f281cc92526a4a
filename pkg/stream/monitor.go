package stream

import (
	"strings"

	"warden/pkg/command"
	"warden/pkg/config"
	"warden/pkg/logging"
	"warden/pkg/telemetry"
)

// Status is the lifecycle state of one in-flight model response.
type Status string

const (
	StatusStreaming    Status = "streaming"
	StatusCompleted    Status = "completed"
	StatusForceStopped Status = "force_stopped"
)

// Trigger names the condition that caused a force-stop.
type Trigger string

const (
	TriggerChunkCount Trigger = "count"
	TriggerLength     Trigger = "length"
	TriggerRepetition Trigger = "repetition"
)

// promisePhrases are ongoing-behavior markers. A model that keeps
// promising further work in a tight loop is treated the same as one
// repeating command blocks.
var promisePhrases = []string{
	"I'll continue",
	"I will continue",
	"Let me continue",
	"Continuing with",
	"I'll keep going",
	"Moving on to the next",
}

// State accumulates one response. It is created per call, owned by a
// single goroutine, and discarded when the call finishes.
type State struct {
	buffer     strings.Builder
	chunkCount int
	status     Status
	trigger    Trigger

	// TruncatedMidTag is set on completion when the text ends inside
	// an unclosed file-mutation tag.
	TruncatedMidTag bool
}

// Text returns everything accumulated so far. On force-stop this is
// the full buffer, not just the triggering chunk.
func (s *State) Text() string { return s.buffer.String() }

// ChunkCount returns how many content chunks have been appended.
func (s *State) ChunkCount() int { return s.chunkCount }

// Status returns the current lifecycle state.
func (s *State) Status() Status { return s.status }

// Trigger returns the force-stop trigger, empty unless force-stopped.
func (s *State) Trigger() Trigger { return s.trigger }

// Monitor applies runaway-response bounds to a chunk stream. It holds
// no per-response state and may be shared across agents.
type Monitor struct {
	maxChunks int
	maxLength int
	window    int
	logger    *logging.Logger
}

// NewMonitor builds a Monitor from stream limits. Zero or negative
// limits fall back to the defaults.
func NewMonitor(cfg config.StreamConfig, logger *logging.Logger) *Monitor {
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = config.DefaultMaxChunks
	}
	if cfg.MaxResponseChars <= 0 {
		cfg.MaxResponseChars = config.DefaultMaxResponseChars
	}
	if cfg.RepetitionWindow <= 0 {
		cfg.RepetitionWindow = config.DefaultRepetitionWindow
	}
	return &Monitor{
		maxChunks: cfg.MaxChunks,
		maxLength: cfg.MaxResponseChars,
		window:    cfg.RepetitionWindow,
		logger:    logger,
	}
}

// NewState returns a fresh per-response state in the Streaming status.
func (m *Monitor) NewState() *State {
	return &State{status: StatusStreaming}
}

// Complete marks the stream finished by the provider. The text is
// still handed downstream even when it ends mid-tag; the flag only
// signals possible truncation.
func (m *Monitor) Complete(agentID string, s *State) {
	if s.status != StatusStreaming {
		return
	}
	s.status = StatusCompleted
	if command.EndsMidTag(s.Text()) {
		s.TruncatedMidTag = true
		m.logger.Warn(logging.CategoryStream, "possible_truncation", agentID, "response ends mid-tag", map[string]any{
			"chunks": s.chunkCount,
		})
	}
}

// Feed appends one content chunk and evaluates the force-stop
// trip-wires. It returns the resulting status; once the state leaves
// Streaming, further chunks are ignored.
func (m *Monitor) Feed(agentID string, s *State, content string) Status {
	if s.status != StatusStreaming {
		return s.status
	}

	s.buffer.WriteString(content)
	s.chunkCount++

	switch {
	case s.chunkCount > m.maxChunks:
		m.forceStop(agentID, s, TriggerChunkCount)
	case s.buffer.Len() > m.maxLength:
		m.forceStop(agentID, s, TriggerLength)
	case m.repetitionDetected(s):
		m.forceStop(agentID, s, TriggerRepetition)
	}
	return s.status
}

func (m *Monitor) forceStop(agentID string, s *State, trigger Trigger) {
	s.status = StatusForceStopped
	s.trigger = trigger
	telemetry.RecordForceStop(string(trigger))
	m.logger.Warn(logging.CategoryStream, "force_stop", agentID, "force-stopped runaway response", map[string]any{
		"trigger": string(trigger),
		"chunks":  s.chunkCount,
		"length":  s.buffer.Len(),
	})
}

// repetitionDetected inspects the trailing window for repetition
// signatures: two or more complete create blocks, two or more complete
// edit blocks, two or more empty create blocks, or two or more
// ongoing-behavior promise phrases.
func (m *Monitor) repetitionDetected(s *State) bool {
	text := s.buffer.String()
	if len(text) > m.window {
		text = text[len(text)-m.window:]
	}

	if command.CountCompleteBlocks(text, command.KindCreateFile) >= 2 {
		return true
	}
	if command.CountCompleteBlocks(text, command.KindEditFile) >= 2 {
		return true
	}
	if command.CountEmptyBlocks(text, command.KindCreateFile) >= 2 {
		return true
	}

	phrases := 0
	for _, phrase := range promisePhrases {
		phrases += strings.Count(text, phrase)
		if phrases >= 2 {
			return true
		}
	}
	return false
}
