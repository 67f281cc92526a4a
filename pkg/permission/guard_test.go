package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"warden/pkg/command"
)

func TestDefaultDeny(t *testing.T) {
	guard := NewGuard()

	decision := guard.Authorize(Set{}, CapWriteFiles, "test.txt")
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonMissingCapability, decision.Reason)

	decision = guard.Authorize(nil, CapReadFiles, "test.txt")
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonMissingCapability, decision.Reason)
}

func TestExplicitDenyEqualsAbsence(t *testing.T) {
	guard := NewGuard()
	set := Set{CapWriteFiles: Grant{Granted: false}}

	decision := guard.Authorize(set, CapWriteFiles, "test.txt")
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonMissingCapability, decision.Reason)
}

func TestUnscopedGrantAllowsAllTargets(t *testing.T) {
	guard := NewGuard()
	set := Allow(CapWriteFiles)

	assert.True(t, guard.Authorize(set, CapWriteFiles, "anything/at/all.go").Allowed)
	assert.True(t, guard.Authorize(set, CapWriteFiles, "").Allowed)
}

func TestScopeGlobMatching(t *testing.T) {
	guard := NewGuard()
	set := Allow(CapReadFiles).WithScope(CapReadFiles, "*.txt")

	allowed := guard.Authorize(set, CapReadFiles, "notes.txt")
	assert.True(t, allowed.Allowed)

	denied := guard.Authorize(set, CapReadFiles, "notes.js")
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonScopeViolation, denied.Reason)
	assert.NotEqual(t, ReasonMissingCapability, denied.Reason)
}

func TestScopeSubstringMatching(t *testing.T) {
	guard := NewGuard()
	set := Allow(CapExecuteCommands).WithScope(CapExecuteCommands, "go test")

	assert.True(t, guard.Authorize(set, CapExecuteCommands, "go test ./...").Allowed)
	assert.False(t, guard.Authorize(set, CapExecuteCommands, "rm -rf /").Allowed)
}

func TestScopeMultiplePatterns(t *testing.T) {
	guard := NewGuard()
	set := Allow(CapWriteFiles).WithScope(CapWriteFiles, "docs/*", "*.md")

	assert.True(t, guard.Authorize(set, CapWriteFiles, "docs/guide.txt").Allowed)
	assert.True(t, guard.Authorize(set, CapWriteFiles, "README.md").Allowed)
	assert.False(t, guard.Authorize(set, CapWriteFiles, "main.go").Allowed)
}

func TestReadAndWriteAreIndependent(t *testing.T) {
	guard := NewGuard()
	set := Allow(CapReadFiles)

	assert.True(t, guard.Authorize(set, CapReadFiles, "main.go").Allowed)
	assert.False(t, guard.Authorize(set, CapWriteFiles, "main.go").Allowed)
}

func TestCapabilityFor(t *testing.T) {
	cases := map[command.Kind]Capability{
		command.KindCreateFile:  CapWriteFiles,
		command.KindEditFile:    CapWriteFiles,
		command.KindDeleteFile:  CapWriteFiles,
		command.KindInsertCode:  CapWriteFiles,
		command.KindReplaceCode: CapWriteFiles,
		command.KindFormatFile:  CapWriteFiles,
		command.KindReadFile:    CapReadFiles,
		command.KindGrep:        CapReadFiles,
		command.KindFindFiles:   CapReadFiles,
		command.KindOpenEditor:  CapReadFiles,
		command.KindGitCommand:  CapGitOperations,
		command.KindGitCommit:   CapGitOperations,
		command.KindRunCommand:  CapExecuteCommands,
	}
	for kind, want := range cases {
		assert.Equal(t, want, CapabilityFor(kind), string(kind))
	}
}
