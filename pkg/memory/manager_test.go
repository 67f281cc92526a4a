package memory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/model"
)

type mapReader map[string]string

func (m mapReader) Read(path string) (string, error) {
	content, ok := m[path]
	if !ok {
		return "", fmt.Errorf("not found: %s", path)
	}
	return content, nil
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestCountTokensFallsBackSanely(t *testing.T) {
	// Whatever encoder is available, a non-empty text costs something.
	assert.Greater(t, CountTokens("hello world"), 0)
	assert.Equal(t, 0, CountTokens(""))
}

func TestCostIncludesAllSources(t *testing.T) {
	reader := mapReader{"main.go": strings.Repeat("x", 40)}
	m := NewManager(reader, 8192, nil)

	r := NewRecord()
	r.AppendTurn("user", strings.Repeat("a", 40))
	r.AddSnippet(strings.Repeat("b", 40), "main.go")
	r.ShareFile("main.go")
	r.ContextSummary = strings.Repeat("c", 40)

	assert.Equal(t, 40, m.Cost(r))
}

func TestCostSkipsUnreadableFiles(t *testing.T) {
	m := NewManager(mapReader{}, 8192, nil)
	r := NewRecord()
	r.ShareFile("gone.go")
	r.AppendTurn("user", "abcd")
	assert.Equal(t, 1, m.Cost(r))
}

func TestEnsureBudgetNoopUnderBudget(t *testing.T) {
	m := NewManager(nil, 8192, nil)
	r := NewRecord()
	r.AppendTurn("user", "hello")
	r.AppendTurn("assistant", "hi")

	assert.False(t, m.EnsureBudget("a1", r))
	assert.Len(t, r.Turns, 2)
	assert.Empty(t, r.ContextSummary)
	assert.Equal(t, 0, r.SessionCount)
}

func TestEnsureBudgetCompressesTwelveTurns(t *testing.T) {
	// Each turn is 200 chars = 50 tokens; 12 turns = 600 tokens.
	// maxTokens of 400 gives a memory budget of 280, forcing
	// compression.
	m := NewManager(nil, 400, nil)
	r := NewRecord()
	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		r.AppendTurn(role, fmt.Sprintf("turn %02d ", i)+strings.Repeat("z", 191))
	}
	r.SessionCount = 3

	require.True(t, m.EnsureBudget("a1", r))
	assert.Len(t, r.Turns, 5)
	assert.NotEmpty(t, r.ContextSummary)
	assert.Equal(t, 4, r.SessionCount)

	// The retained turns are the most recent five.
	assert.Contains(t, r.Turns[0].Content, "turn 07")
	assert.Contains(t, r.Turns[4].Content, "turn 11")
}

func TestEnsureBudgetOverwritesPriorSummary(t *testing.T) {
	m := NewManager(nil, 400, nil)
	r := NewRecord()
	r.ContextSummary = "old digest"
	for i := 0; i < 8; i++ {
		r.AppendTurn("user", strings.Repeat("q", 400))
	}

	require.True(t, m.EnsureBudget("a1", r))
	assert.NotEqual(t, "old digest", r.ContextSummary)
	assert.NotEmpty(t, r.ContextSummary)
}

func TestEnsureBudgetTrimsFilesAndSnippets(t *testing.T) {
	files := mapReader{}
	r := NewRecord()
	for i := 0; i < 6; i++ {
		path := fmt.Sprintf("file%d.go", i)
		files[path] = strings.Repeat("f", 2000)
		r.ShareFile(path)
	}
	for i := 0; i < 8; i++ {
		r.AddSnippet(strings.Repeat("s", 2000), "")
	}
	r.AppendTurn("user", "short")

	// Few turns so compression cannot help; trimming must kick in.
	m := NewManager(files, 400, nil)
	m.EnsureBudget("a1", r)

	assert.Len(t, r.SharedFiles, 3)
	assert.Len(t, r.Snippets, 5)
	assert.Equal(t, []string{"file3.go", "file4.go", "file5.go"}, r.SharedFiles)
}

func TestDigestCategories(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "please create a parser for config files"},
		{Role: "assistant", Content: "[CREATE_FILE: parser.go]\npackage parser\n[/CREATE_FILE]"},
		{Role: "user", Content: "now fix the bug in the tokenizer"},
		{Role: "assistant", Content: "[EDIT_FILE: tokenizer.go]\n[FIND]a[/FIND]\n[REPLACE]b[/REPLACE]\n[/EDIT_FILE]"},
		{Role: "user", Content: "run the tests"},
		{Role: "assistant", Content: "[RUN_COMMAND: go test ./...]"},
	}
	digest := buildDigest(turns)

	assert.Contains(t, digest, "6 exchanges")
	assert.Contains(t, digest, "creation")
	assert.Contains(t, digest, "bug-fixing")
	assert.Contains(t, digest, "testing")
	assert.Contains(t, digest, "file creation")
	assert.Contains(t, digest, "code modification")
	assert.Contains(t, digest, "command execution")
}

func TestBuildHistoryNewestFirstThenChronological(t *testing.T) {
	// History budget is 400*3/10 = 120 tokens. Turns cost 50 each, so
	// only the two most recent fit... 50+50=100, third would be 150.
	m := NewManager(nil, 400, nil)
	r := NewRecord()
	for i := 0; i < 4; i++ {
		r.AppendTurn("user", fmt.Sprintf("m%d ", i)+strings.Repeat("y", 197))
	}

	history := m.BuildHistory(r)
	require.Len(t, history, 2)
	assert.Contains(t, history[0].Content, "m2")
	assert.Contains(t, history[1].Content, "m3")
}

func TestBuildHistoryPrependsSummaryUncounted(t *testing.T) {
	m := NewManager(nil, 400, nil)
	r := NewRecord()
	r.ContextSummary = strings.Repeat("huge summary ", 100)
	r.AppendTurn("user", "hello")
	r.AppendTurn("assistant", "hi there")

	history := m.BuildHistory(r)
	require.Len(t, history, 3)
	assert.Equal(t, model.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, "Previous conversation context")
	assert.Equal(t, "hello", history[1].Content)
	assert.Equal(t, "hi there", history[2].Content)
}

func TestRecordRoundTrip(t *testing.T) {
	r := NewRecord()
	r.AppendTurn("user", "hello")
	r.ShareFile("a.go")
	r.ShareFile("a.go")
	r.AddSnippet("x := 1", "a.go")
	r.SessionCount = 2

	encoded, err := r.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalRecord(encoded)
	require.NoError(t, err)
	assert.Equal(t, r.Turns, decoded.Turns)
	assert.Equal(t, []string{"a.go"}, decoded.SharedFiles)
	assert.Equal(t, r.Snippets, decoded.Snippets)
	assert.Equal(t, 2, decoded.SessionCount)
}
