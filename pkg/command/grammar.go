package command

import "regexp"

// Kind identifies a command type embedded in model output.
type Kind string

const (
	KindCreateFile  Kind = "CREATE_FILE"
	KindEditFile    Kind = "EDIT_FILE"
	KindReadFile    Kind = "READ_FILE"
	KindDeleteFile  Kind = "DELETE_FILE"
	KindGrep        Kind = "GREP"
	KindFindFiles   Kind = "FIND_FILES"
	KindInsertCode  Kind = "INSERT_CODE"
	KindReplaceCode Kind = "REPLACE_CODE"
	KindOpenEditor  Kind = "OPEN_EDITOR"
	KindFormatFile  Kind = "FORMAT_FILE"
	KindGitCommand  Kind = "GIT_COMMAND"
	KindGitCommit   Kind = "GIT_COMMIT"
	KindRunCommand  Kind = "RUN_COMMAND"
)

// KindOrder is the processing order for scanned invocations. Commands are
// executed kind-by-kind in this order, not in document order, so creates
// always precede edits within a response. Downstream behavior depends on
// this ordering; do not change it to document order.
var KindOrder = []Kind{
	KindCreateFile,
	KindEditFile,
	KindReadFile,
	KindDeleteFile,
	KindGrep,
	KindFindFiles,
	KindInsertCode,
	KindReplaceCode,
	KindOpenEditor,
	KindFormatFile,
	KindGitCommand,
	KindGitCommit,
	KindRunCommand,
}

// blockKinds carry a body terminated by a matching closing tag.
var blockKinds = map[Kind]bool{
	KindCreateFile:  true,
	KindEditFile:    true,
	KindInsertCode:  true,
	KindReplaceCode: true,
}

// mutationKinds are the file-mutation kinds whose unterminated opening tags
// signal possible response truncation.
var mutationKinds = []Kind{KindCreateFile, KindEditFile, KindInsertCode, KindReplaceCode}

// grammar holds one compiled pattern set per kind. Patterns are compiled
// once at init and are safe for concurrent scans; match position is kept
// in the per-scan iterator, never in shared state.
type kindPattern struct {
	kind  Kind
	block *regexp.Regexp // full block (or single tag) with target and body groups
	open  *regexp.Regexp // opening tag only, for truncation detection
}

var grammar = buildGrammar()

func buildGrammar() map[Kind]kindPattern {
	g := make(map[Kind]kindPattern, len(KindOrder))
	for _, kind := range KindOrder {
		name := regexp.QuoteMeta(string(kind))
		var block *regexp.Regexp
		if blockKinds[kind] {
			block = regexp.MustCompile(`(?s)\[` + name + `:\s*([^\]]*)\](.*?)\[/` + name + `\]`)
		} else {
			block = regexp.MustCompile(`\[` + name + `:\s*([^\]]*)\]`)
		}
		g[kind] = kindPattern{
			kind:  kind,
			block: block,
			open:  regexp.MustCompile(`\[` + name + `:\s*([^\]]*)\]`),
		}
	}
	return g
}

var (
	findBlockPattern    = regexp.MustCompile(`(?s)\[FIND\](.*?)\[/FIND\]`)
	replaceBlockPattern = regexp.MustCompile(`(?s)\[REPLACE\](.*?)\[/REPLACE\]`)
)

// matchIter walks a pattern over text lazily. Each iterator owns its own
// position, so concurrent scans over different responses never interfere.
type matchIter struct {
	re   *regexp.Regexp
	text string
	pos  int
}

func newMatchIter(re *regexp.Regexp, text string) *matchIter {
	return &matchIter{re: re, text: text}
}

// next returns the absolute submatch indexes of the next match.
func (it *matchIter) next() ([]int, bool) {
	if it.pos > len(it.text) {
		return nil, false
	}
	loc := it.re.FindStringSubmatchIndex(it.text[it.pos:])
	if loc == nil {
		return nil, false
	}
	abs := make([]int, len(loc))
	for i, v := range loc {
		if v >= 0 {
			abs[i] = v + it.pos
		} else {
			abs[i] = -1
		}
	}
	if abs[1] == it.pos {
		// Zero-width safety; grammar patterns never match empty, but an
		// iterator must always make progress.
		it.pos++
	} else {
		it.pos = abs[1]
	}
	return abs, true
}

// CountCompleteBlocks returns the number of complete (opened and closed)
// blocks of the given kind in text. Single-tag kinds count full tags.
func CountCompleteBlocks(text string, kind Kind) int {
	p, ok := grammar[kind]
	if !ok {
		return 0
	}
	return len(p.block.FindAllStringIndex(text, -1))
}

// CountEmptyBlocks returns the number of complete blocks of the given kind
// whose body is empty after trimming.
func CountEmptyBlocks(text string, kind Kind) int {
	p, ok := grammar[kind]
	if !ok || !blockKinds[kind] {
		return 0
	}
	count := 0
	for it := newMatchIter(p.block, text); ; {
		loc, ok := it.next()
		if !ok {
			break
		}
		body := text[loc[4]:loc[5]]
		if isBlank(body) {
			count++
		}
	}
	return count
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
