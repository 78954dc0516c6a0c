package repl

import "strings"

// Completer suggests commands for a given prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the tokengate-cli command set.
func NewCompleter() *Completer {
	return &Completer{
		commands: []string{
			"issue", "validate", "revoke", "revoke-user",
			"stats", "sweep",
			"backup", "backup create", "backup list", "backup restore", "backup delete", "backup prune",
			"config", "config show", "config check",
			"help", "exit", "quit",
		},
	}
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether cmd exactly matches a command name.
func (c *Completer) Known(cmd string) bool {
	for _, known := range c.commands {
		if known == cmd {
			return true
		}
	}
	return false
}
