package memory

import (
	"fmt"
	"sort"
	"strings"
)

const maxDigestTopics = 10

var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "because": {},
	"before": {}, "being": {}, "could": {}, "every": {}, "first": {},
	"having": {}, "other": {}, "please": {}, "really": {}, "should": {},
	"since": {}, "their": {}, "there": {}, "these": {}, "thing": {},
	"think": {}, "those": {}, "three": {}, "under": {}, "using": {},
	"want": {}, "where": {}, "which": {}, "while": {}, "would": {},
	"write": {}, "your": {},
}

var requestKeywords = []struct {
	category string
	words    []string
}{
	{"creation", []string{"create", "make", "add", "new ", "build", "generate"}},
	{"bug-fixing", []string{"fix", "bug", "error", "broken", "crash", "fail"}},
	{"explanation", []string{"explain", "what", "how", "why", "describe", "understand"}},
	{"testing", []string{"test", "verify", "check", "assert", "coverage"}},
}

var actionTags = []struct {
	category string
	tags     []string
}{
	{"file creation", []string{"[CREATE_FILE:"}},
	{"code modification", []string{"[EDIT_FILE:", "[REPLACE_CODE:", "[INSERT_CODE:"}},
	{"command execution", []string{"[RUN_COMMAND:"}},
	{"git operations", []string{"[GIT_COMMAND:", "[GIT_COMMIT:"}},
}

// buildDigest summarizes a slice of older conversation turns into a
// compact textual record of topics discussed, request categories seen,
// actions taken, and the raw exchange count.
func buildDigest(turns []Turn) string {
	topics := collectTopics(turns)
	requests := collectCategories(turns, "user")
	actions := collectActions(turns)

	var b strings.Builder
	fmt.Fprintf(&b, "Earlier conversation (%d exchanges).", len(turns))
	if len(topics) > 0 {
		fmt.Fprintf(&b, " Topics: %s.", strings.Join(topics, ", "))
	}
	if len(requests) > 0 {
		fmt.Fprintf(&b, " Requests: %s.", strings.Join(requests, ", "))
	}
	if len(actions) > 0 {
		fmt.Fprintf(&b, " Actions: %s.", strings.Join(actions, ", "))
	}
	return b.String()
}

func collectTopics(turns []Turn) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, turn := range turns {
		if turn.Role != "user" {
			continue
		}
		for _, word := range strings.Fields(turn.Content) {
			word = strings.ToLower(strings.Trim(word, ".,:;!?\"'()[]{}"))
			if len(word) < 5 {
				continue
			}
			if _, stop := stopWords[word]; stop {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			topics = append(topics, word)
			if len(topics) >= maxDigestTopics {
				return topics
			}
		}
	}
	return topics
}

func collectCategories(turns []Turn, role string) []string {
	seen := make(map[string]struct{})
	for _, turn := range turns {
		if turn.Role != role {
			continue
		}
		lower := strings.ToLower(turn.Content)
		for _, rk := range requestKeywords {
			for _, word := range rk.words {
				if strings.Contains(lower, word) {
					seen[rk.category] = struct{}{}
					break
				}
			}
		}
	}
	return sortedKeys(seen)
}

func collectActions(turns []Turn) []string {
	seen := make(map[string]struct{})
	for _, turn := range turns {
		if turn.Role != "assistant" {
			continue
		}
		for _, at := range actionTags {
			for _, tag := range at.tags {
				if strings.Contains(turn.Content, tag) {
					seen[at.category] = struct{}{}
					break
				}
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
