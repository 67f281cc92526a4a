package permission

import (
	"warden/pkg/command"
)

// Capability is a named permission class granted independently per agent.
type Capability string

const (
	CapReadFiles       Capability = "READ_FILES"
	CapWriteFiles      Capability = "WRITE_FILES"
	CapExecuteCommands Capability = "EXECUTE_COMMANDS"
	CapGitOperations   Capability = "GIT_OPERATIONS"
	CapNetworkAccess   Capability = "NETWORK_ACCESS"
)

// Grant records whether a capability is granted and, optionally, a scope
// allow-list narrowing the targets it applies to. An empty scope means all
// targets are permitted once the capability is granted.
type Grant struct {
	Granted bool     `json:"granted" yaml:"granted"`
	Scope   []string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Set maps capabilities to grants for one agent. Absence of an entry is
// equivalent to a denial: lookups on missing capabilities return the zero
// Grant, which is not granted.
type Set map[Capability]Grant

// Grant returns the grant record for a capability, defaulting to denial.
func (s Set) Grant(cap Capability) Grant {
	if s == nil {
		return Grant{}
	}
	return s[cap]
}

// Allow is a convenience constructor for granted capabilities.
func Allow(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = Grant{Granted: true}
	}
	return s
}

// WithScope returns a copy of the set with the capability's scope replaced.
func (s Set) WithScope(cap Capability, patterns ...string) Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	g := out[cap]
	g.Scope = patterns
	out[cap] = g
	return out
}

// CapabilityFor maps a command kind to the capability that gates it.
// Read and write are separate capabilities even though both touch files.
func CapabilityFor(kind command.Kind) Capability {
	switch kind {
	case command.KindReadFile, command.KindGrep, command.KindFindFiles, command.KindOpenEditor:
		return CapReadFiles
	case command.KindCreateFile, command.KindEditFile, command.KindDeleteFile,
		command.KindInsertCode, command.KindReplaceCode, command.KindFormatFile:
		return CapWriteFiles
	case command.KindGitCommand, command.KindGitCommit:
		return CapGitOperations
	case command.KindRunCommand:
		return CapExecuteCommands
	}
	return CapExecuteCommands
}
