// Package output renders tokengate-cli results.
//
// Every command produces a data value and hands it to a Formatter
// picked by the --output flag: an aligned table for humans, JSON or
// YAML for scripts. Long-running commands animate progress with
// Spinner and ProgressBar.
package output
