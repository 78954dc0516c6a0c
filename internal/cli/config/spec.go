package config

// Preferences is the persisted tokengate-cli configuration.
type Preferences struct {
	// DefaultOutput is the output format used when --output is not
	// given: table, json or yaml.
	DefaultOutput string `yaml:"default_output"`

	// HistoryFile overrides where the interactive shell keeps its
	// command history. Empty means ~/.tokengate/history.
	HistoryFile string `yaml:"history_file"`
}

// Default returns the default CLI preferences.
func Default() *Preferences {
	return &Preferences{
		DefaultOutput: "table",
	}
}
