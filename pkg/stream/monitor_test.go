package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/config"
	"warden/pkg/logging"
)

func testMonitor(t *testing.T, cfg config.StreamConfig) *Monitor {
	t.Helper()
	return NewMonitor(cfg, logging.NewNopLogger())
}

func TestFeedAccumulatesAndCompletes(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{})
	s := m.NewState()

	assert.Equal(t, StatusStreaming, m.Feed("a1", s, "Hello "))
	assert.Equal(t, StatusStreaming, m.Feed("a1", s, "world"))
	m.Complete("a1", s)

	assert.Equal(t, StatusCompleted, s.Status())
	assert.Equal(t, "Hello world", s.Text())
	assert.Equal(t, 2, s.ChunkCount())
	assert.False(t, s.TruncatedMidTag)
}

func TestForceStopOnChunkCount(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{MaxChunks: 3, MaxResponseChars: 100000, RepetitionWindow: 1000})
	s := m.NewState()

	for i := 0; i < 3; i++ {
		require.Equal(t, StatusStreaming, m.Feed("a1", s, "x"))
	}
	assert.Equal(t, StatusForceStopped, m.Feed("a1", s, "x"))
	assert.Equal(t, TriggerChunkCount, s.Trigger())
}

func TestForceStopOnLength(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{MaxChunks: 1000, MaxResponseChars: 50, RepetitionWindow: 1000})
	s := m.NewState()

	m.Feed("a1", s, strings.Repeat("a", 30))
	require.Equal(t, StatusStreaming, s.Status())
	m.Feed("a1", s, strings.Repeat("b", 30))

	assert.Equal(t, StatusForceStopped, s.Status())
	assert.Equal(t, TriggerLength, s.Trigger())
	// The full buffer survives the stop.
	assert.Len(t, s.Text(), 60)
}

func TestForceStopOnRepeatedCreateBlocks(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{})
	s := m.NewState()

	block := "[CREATE_FILE: loop.txt]\nsame content\n[/CREATE_FILE]\n"
	require.Equal(t, StatusStreaming, m.Feed("a1", s, block))
	status := m.Feed("a1", s, block)

	// Two identical complete blocks inside one trailing window stop
	// the stream before any third chunk is processed.
	assert.Equal(t, StatusForceStopped, status)
	assert.Equal(t, TriggerRepetition, s.Trigger())
	assert.Equal(t, 2, s.ChunkCount())
	assert.Equal(t, block+block, s.Text())
}

func TestForceStopOnRepeatedEmptyCreateBlocks(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{})
	s := m.NewState()

	m.Feed("a1", s, "[CREATE_FILE: a.txt]\n\n[/CREATE_FILE]\n")
	m.Feed("a1", s, "[CREATE_FILE: b.txt]\n  \n[/CREATE_FILE]\n")

	assert.Equal(t, StatusForceStopped, s.Status())
	assert.Equal(t, TriggerRepetition, s.Trigger())
}

func TestForceStopOnPromisePhrases(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{})
	s := m.NewState()

	m.Feed("a1", s, "I'll continue working on this. ")
	m.Feed("a1", s, "I'll continue working on this. ")

	assert.Equal(t, StatusForceStopped, s.Status())
	assert.Equal(t, TriggerRepetition, s.Trigger())
}

func TestRepetitionOutsideWindowIgnored(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{MaxChunks: 1000, MaxResponseChars: 100000, RepetitionWindow: 100})
	s := m.NewState()

	m.Feed("a1", s, "[CREATE_FILE: a.txt]\nfirst\n[/CREATE_FILE]\n")
	m.Feed("a1", s, strings.Repeat("filler ", 30))
	m.Feed("a1", s, "[CREATE_FILE: b.txt]\nsecond\n[/CREATE_FILE]\n")

	assert.Equal(t, StatusStreaming, s.Status())
}

func TestCompleteFlagsMidTagTruncation(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{})
	s := m.NewState()

	m.Feed("a1", s, "[CREATE_FILE: partial.txt]\nunfinished content")
	m.Complete("a1", s)

	assert.Equal(t, StatusCompleted, s.Status())
	assert.True(t, s.TruncatedMidTag)
	// Text is still available for best-effort parsing.
	assert.Contains(t, s.Text(), "unfinished content")
}

func TestFeedAfterStopIsIgnored(t *testing.T) {
	m := testMonitor(t, config.StreamConfig{MaxChunks: 1, MaxResponseChars: 100000, RepetitionWindow: 1000})
	s := m.NewState()

	m.Feed("a1", s, "one")
	m.Feed("a1", s, "two")
	require.Equal(t, StatusForceStopped, s.Status())

	m.Feed("a1", s, "three")
	assert.Equal(t, "onetwo", s.Text())
	assert.Equal(t, 2, s.ChunkCount())
}
