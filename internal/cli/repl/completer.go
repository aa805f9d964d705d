package repl

import (
	"sort"
	"strings"
)

// builtins are handled by the REPL itself.
var builtins = []string{"exit", "help", "history", "quit"}

// Completer lists the commands known to the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer for commands ("account",
// "account open", ...). Built-ins are always included.
func NewCompleter(commands []string) *Completer {
	all := append(append([]string(nil), commands...), builtins...)
	sort.Strings(all)
	return &Completer{commands: all}
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

// Known reports whether cmd is a listed command.
func (c *Completer) Known(cmd string) bool {
	i := sort.SearchStrings(c.commands, cmd)
	return i < len(c.commands) && c.commands[i] == cmd
}
