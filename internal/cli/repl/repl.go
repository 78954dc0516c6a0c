package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// RunFunc dispatches one parsed command line to the CLI handlers.
type RunFunc func(args []string) error

// REPL reads commands from input and dispatches them until the user
// exits or input runs out.
type REPL struct {
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
	run       RunFunc
}

// New creates a REPL reading from stdin and writing to stdout.
func New(run RunFunc) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		completer: NewCompleter(),
		history:   NewHistory(),
		run:       run,
	}
}

// SetHistoryFile points command history at path instead of the default
// ~/.tokengate/history. Empty paths are ignored.
func (r *REPL) SetHistoryFile(path string) {
	if path != "" {
		r.history.file = path
	}
}

// Run starts the read-eval-print loop. It returns when the user types
// exit or quit, or when input is exhausted. History is persisted on
// the way out.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "Warning: could not load history: %v\n", err)
	}
	defer r.history.Save()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, "tokengate> ")

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
			r.suggest(line)
		}
	}
}

func (r *REPL) execute(line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	if r.run == nil {
		return fmt.Errorf("no command dispatcher configured")
	}
	return r.run(args)
}

// suggest prints close command matches after a failed dispatch, but
// only when the first word is not already a known command.
func (r *REPL) suggest(line string) {
	first := strings.Fields(line)[0]
	if r.completer.Known(first) {
		return
	}
	if suggestions := r.completer.Complete(first); len(suggestions) > 0 {
		fmt.Fprintf(r.output, "Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}

// splitArgs splits a command line into arguments. Single and double
// quotes group words so JSON payloads survive the shell-less parse.
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote byte
	quoted := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			quoted = true
		case ch == ' ' || ch == '\t':
			if quoted || cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
				quoted = false
			}
		default:
			cur.WriteByte(ch)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if quoted || cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args, nil
}
