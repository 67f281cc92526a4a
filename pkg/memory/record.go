package memory

import (
	"encoding/json"
	"time"
)

// Turn is a single conversation exchange entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Snippet is a fragment of text an agent chose to keep, optionally
// attributed to a source file.
type Snippet struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// Record is the durable memory for one agent. Turns plus
// ContextSummary together preserve topic continuity: compression folds
// older turns into the summary rather than dropping them outright.
type Record struct {
	Turns           []Turn    `json:"turns"`
	SharedFiles     []string  `json:"sharedFiles,omitempty"`
	Snippets        []Snippet `json:"snippets,omitempty"`
	ContextSummary  string    `json:"contextSummary,omitempty"`
	SessionCount    int       `json:"sessionCount"`
	LastInteraction time.Time `json:"lastInteraction"`
}

// NewRecord returns an empty memory record.
func NewRecord() *Record {
	return &Record{}
}

// AppendTurn adds a conversation turn and refreshes the interaction
// timestamp.
func (r *Record) AppendTurn(role, content string) {
	r.Turns = append(r.Turns, Turn{Role: role, Content: content})
	r.LastInteraction = time.Now().UTC()
}

// ShareFile records a file path the agent has been shown, most recent
// last, without duplicates.
func (r *Record) ShareFile(path string) {
	for _, existing := range r.SharedFiles {
		if existing == path {
			return
		}
	}
	r.SharedFiles = append(r.SharedFiles, path)
}

// AddSnippet appends a kept text fragment.
func (r *Record) AddSnippet(content, source string) {
	r.Snippets = append(r.Snippets, Snippet{Content: content, Source: source})
}

// Clone returns a deep copy. Callers that hand a record across a lock
// boundary copy it first so later mutations never reach the reader.
func (r *Record) Clone() *Record {
	out := &Record{
		ContextSummary:  r.ContextSummary,
		SessionCount:    r.SessionCount,
		LastInteraction: r.LastInteraction,
	}
	if len(r.Turns) > 0 {
		out.Turns = append([]Turn(nil), r.Turns...)
	}
	if len(r.SharedFiles) > 0 {
		out.SharedFiles = append([]string(nil), r.SharedFiles...)
	}
	if len(r.Snippets) > 0 {
		out.Snippets = append([]Snippet(nil), r.Snippets...)
	}
	return out
}

// Marshal encodes the record for storage.
func (r *Record) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalRecord decodes a stored record.
func UnmarshalRecord(data string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
