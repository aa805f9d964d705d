package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run ledgerctl commands interactively",
		Description: "Each line is run as a separate ledgerctl invocation with the\n" +
			"global flags of the shell itself. Built-ins: help [PREFIX], history, exit.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "Command history `FILE` (default ~/.acctledger/history, \"-\" disables)",
			},
		},
		Action: shell,
	}
}

var errNestedShell = errors.New("shell: already in a shell")

func shell(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	global := globalArgs(c)
	exec := func(ctx context.Context, args []string) error {
		if args[0] == "shell" {
			return errNestedShell
		}
		app := App()
		app.Reader = c.App.Reader
		app.Writer = rt.out
		app.ErrWriter = rt.errOut
		app.ExitErrHandler = func(*cli.Context, error) {}
		argv := append(append([]string{app.Name}, global...), args...)
		return app.RunContext(ctx, argv)
	}

	r := repl.New(exec,
		repl.WithIO(c.App.Reader, rt.out),
		repl.WithPrompt(c.App.Name+"> "),
		repl.WithCompleter(repl.NewCompleter(commandWords(c.App.Commands))),
		repl.WithHistory(repl.NewHistory(historyFile(c.String("history-file")))),
	)
	return r.Run(c.Context)
}

// globalArgs rebuilds the global flags that were set on the command line.
func globalArgs(c *cli.Context) []string {
	var args []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if !c.IsSet(name) {
			continue
		}
		if _, ok := f.(*cli.BoolFlag); ok {
			if c.Bool(name) {
				args = append(args, "--"+name)
			}
			continue
		}
		args = append(args, "--"+name, c.String(name))
	}
	return args
}

// commandWords lists "cmd" and "cmd sub" for every visible command.
func commandWords(cmds []*cli.Command) []string {
	var words []string
	for _, cmd := range cmds {
		if cmd.Hidden || cmd.Name == "help" {
			continue
		}
		words = append(words, cmd.Name)
		for _, sub := range cmd.Subcommands {
			if sub.Hidden || sub.Name == "help" {
				continue
			}
			words = append(words, strings.Join([]string{cmd.Name, sub.Name}, " "))
		}
	}
	return words
}

func historyFile(flag string) string {
	switch flag {
	case "-":
		return ""
	case "":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".acctledger", "history")
	default:
		return flag
	}
}
