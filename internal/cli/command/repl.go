package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/norlun/tokengate-go/internal/cli/config"
	"github.com/norlun/tokengate-go/internal/cli/repl"
)

// ReplCommand returns the interactive shell command.
func ReplCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Start an interactive shell",
		Description: "Reads commands in a loop and runs them through the same handlers\n" +
			"as single-shot invocations. Global flags given before 'repl' apply\n" +
			"to every command in the session. Type 'exit' or 'quit' to leave.",
		Action: runRepl,
	}
}

func runRepl(c *cli.Context) error {
	app := App()
	app.Writer = c.App.Writer
	app.ErrWriter = c.App.ErrWriter
	// Errors must come back to the loop instead of exiting the process.
	app.ExitErrHandler = func(*cli.Context, error) {}

	base := replBaseArgs(c)
	r := repl.New(func(args []string) error {
		if len(args) > 0 && args[0] == "repl" {
			return errors.New("already in an interactive session")
		}
		argv := make([]string, 0, len(base)+len(args))
		argv = append(argv, base...)
		argv = append(argv, args...)
		return app.Run(argv)
	})

	if prefs, err := cliconfig.Load(""); err == nil && prefs.HistoryFile != "" {
		r.SetHistoryFile(prefs.HistoryFile)
	}
	return r.Run()
}

// replBaseArgs rebuilds the global flags of the outer invocation so
// every dispatched line inherits them.
func replBaseArgs(c *cli.Context) []string {
	args := []string{"tokengate-cli"}
	if v := c.String("config"); v != "" {
		args = append(args, "--config", v)
	}
	if v := c.String("store"); v != "" {
		args = append(args, "--store", v)
	}
	if c.IsSet("output") {
		args = append(args, "--output", c.String("output"))
	}
	if c.Bool("wide") {
		args = append(args, "--wide")
	}
	if c.Bool("verbose") {
		args = append(args, "--verbose")
	}
	return args
}
