// Package repl provides the interactive shell for tokengate-cli.
//
// The shell reads one command per line, splits it with quote-aware
// parsing so JSON payloads survive, and dispatches it through the same
// command handlers the single-shot CLI uses:
//
//   - repl.go: read-eval-print loop and line parsing
//   - completer.go: prefix matching and typo suggestions
//   - history.go: command history persistence (~/.tokengate/history)
package repl
