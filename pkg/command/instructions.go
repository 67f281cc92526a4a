package command

// Instructions returns the prompt block that teaches the model the command
// grammar. The tag tokens are the wire format this package parses and must
// stay bit-exact.
func Instructions() string {
	return `You can perform workspace actions by embedding commands in your response.
Available commands:

[CREATE_FILE: path]
file contents
[/CREATE_FILE]

[EDIT_FILE: path]
[FIND]exact text to find[/FIND]
[REPLACE]replacement text[/REPLACE]
[/EDIT_FILE]

[READ_FILE: path]
[GREP: pattern, glob]
[FIND_FILES: glob]
[DELETE_FILE: path]

[INSERT_CODE: path:line]
code to insert
[/INSERT_CODE]

[REPLACE_CODE: path]
[FIND]exact text to find[/FIND]
[REPLACE]replacement text[/REPLACE]
[/REPLACE_CODE]

[OPEN_EDITOR: path]
[FORMAT_FILE: path]
[GIT_COMMAND: cmd]
[GIT_COMMIT: message]
[RUN_COMMAND: cmd]

Rules:
- FIND text must match the file contents exactly, character for character.
- Always close every block tag you open.
- Never emit a CREATE_FILE block with an empty body.
`
}
