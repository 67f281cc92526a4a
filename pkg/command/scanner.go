package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Invocation is one parsed, typed command extracted from model output.
// Invocations are immutable values: created once per scan, consumed exactly
// once by the executor, never persisted.
type Invocation struct {
	Kind        Kind
	Target      string // file path, search pattern, or command string
	Body        string
	FindText    string
	ReplaceText string
	Line        int    // INSERT_CODE: 1-indexed line the body is spliced before
	Glob        string // GREP: file selection glob
	Substituted bool   // body was replaced with placeholder content
}

// Result is the outcome of scanning one response text.
type Result struct {
	Invocations []Invocation
	// Truncated reports that at least one file-mutation opening tag had no
	// matching close by end of text, a possible truncation signal.
	Truncated      bool
	TruncatedKinds []Kind
	// Notes records best-effort repairs and skipped malformed blocks for
	// the execution log. Notes never become errors.
	Notes []string
}

// Scanner extracts typed invocations from raw response text. Scanning is a
// pure function of the text: the same input always yields the same result,
// and concurrent scans never interfere.
type Scanner struct {
	substituteEmptyBody bool
	now                 func() time.Time
}

// NewScanner creates a scanner. When substituteEmptyBody is set, CREATE_FILE
// blocks with blank bodies receive labeled placeholder content instead of
// producing zero-byte files.
func NewScanner(substituteEmptyBody bool) *Scanner {
	return &Scanner{
		substituteEmptyBody: substituteEmptyBody,
		now:                 time.Now,
	}
}

// Scan extracts every invocation in text, kind by kind in KindOrder.
// Source order is preserved within each kind.
func (s *Scanner) Scan(text string) Result {
	var result Result

	for _, kind := range KindOrder {
		p := grammar[kind]
		for it := newMatchIter(p.block, text); ; {
			loc, ok := it.next()
			if !ok {
				break
			}
			target := strings.TrimSpace(text[loc[2]:loc[3]])
			body := ""
			if blockKinds[kind] {
				body = strings.TrimSpace(text[loc[4]:loc[5]])
			}
			if inv, note, ok := s.buildInvocation(kind, target, body); ok {
				result.Invocations = append(result.Invocations, inv)
				if note != "" {
					result.Notes = append(result.Notes, note)
				}
			} else if note != "" {
				result.Notes = append(result.Notes, note)
			}
		}
	}

	result.TruncatedKinds = unterminatedKinds(text)
	result.Truncated = len(result.TruncatedKinds) > 0
	return result
}

func (s *Scanner) buildInvocation(kind Kind, target, body string) (Invocation, string, bool) {
	inv := Invocation{Kind: kind, Target: target, Body: body}

	if target == "" {
		return inv, fmt.Sprintf("skipped %s block with empty target", kind), false
	}

	switch kind {
	case KindCreateFile:
		if body == "" {
			if !s.substituteEmptyBody {
				return inv, "", true
			}
			inv.Body = s.placeholderBody(target)
			inv.Substituted = true
			return inv, fmt.Sprintf("substituted placeholder content for empty %s body: %s", kind, target), true
		}

	case KindEditFile, KindReplaceCode:
		find := findBlockPattern.FindStringSubmatch(body)
		replace := replaceBlockPattern.FindStringSubmatch(body)
		if find == nil || replace == nil {
			return inv, fmt.Sprintf("skipped %s block for %s: missing FIND/REPLACE sub-blocks", kind, target), false
		}
		inv.FindText = strings.TrimSpace(find[1])
		inv.ReplaceText = strings.TrimSpace(replace[1])
		inv.Body = ""
		if inv.FindText == "" {
			return inv, fmt.Sprintf("skipped %s block for %s: empty FIND text", kind, target), false
		}

	case KindInsertCode:
		idx := strings.LastIndex(target, ":")
		if idx <= 0 || idx == len(target)-1 {
			return inv, fmt.Sprintf("skipped %s block with malformed target %q (expected path:line)", kind, target), false
		}
		line, err := strconv.Atoi(strings.TrimSpace(target[idx+1:]))
		if err != nil || line < 1 {
			return inv, fmt.Sprintf("skipped %s block with invalid line number in %q", kind, target), false
		}
		inv.Target = strings.TrimSpace(target[:idx])
		inv.Line = line

	case KindGrep:
		if idx := strings.LastIndex(target, ","); idx >= 0 {
			inv.Target = strings.TrimSpace(target[:idx])
			inv.Glob = strings.TrimSpace(target[idx+1:])
		}
		if inv.Target == "" {
			return inv, "skipped GREP block with empty pattern", false
		}
	}

	return inv, "", true
}

// placeholderBody is the labeled substitute for an empty CREATE_FILE body.
// It names the target and carries an ISO-8601 creation timestamp so the
// substitution is auditable in the file itself.
func (s *Scanner) placeholderBody(target string) string {
	return fmt.Sprintf("Placeholder content for %s\nGenerated because the model produced an empty file body.\nCreated: %s\n",
		target, s.now().UTC().Format(time.RFC3339))
}

// unterminatedKinds reports the file-mutation kinds with at least one
// opening tag that has no matching closing tag by end of text.
func unterminatedKinds(text string) []Kind {
	var kinds []Kind
	for _, kind := range mutationKinds {
		p := grammar[kind]
		opens := len(p.open.FindAllStringIndex(text, -1))
		complete := len(p.block.FindAllStringIndex(text, -1))
		if opens > complete {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// EndsMidTag reports whether text contains an unterminated file-mutation
// opening tag. Used to flag a possibly truncated response at completion.
func EndsMidTag(text string) bool {
	return len(unterminatedKinds(text)) > 0
}
