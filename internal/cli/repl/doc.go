// Package repl runs ledgerctl commands interactively.
//
// Each input line is split into arguments (single and double quotes group
// words) and handed to an Executor. The built-ins are help [PREFIX],
// history, exit and quit. Lines are kept in a History that can persist
// to a file between sessions.
package repl
