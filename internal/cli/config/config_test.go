package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	prefs := Default()

	if prefs.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want %q", prefs.DefaultOutput, "table")
	}
	if prefs.HistoryFile != "" {
		t.Errorf("HistoryFile = %q, want empty", prefs.HistoryFile)
	}
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()

	if !filepath.IsAbs(path) {
		t.Errorf("DefaultPath() = %q, want absolute path", path)
	}
	suffix := filepath.Join(".tokengate", "cli.yaml")
	if !strings.HasSuffix(path, suffix) {
		t.Errorf("DefaultPath() = %q, should end with %q", path, suffix)
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	prefs, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load should not error for missing file: %v", err)
	}
	if prefs.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want default %q", prefs.DefaultOutput, "table")
	}
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := "default_output: json\nhistory_file: /var/tmp/tg-history\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write prefs file: %v", err)
	}

	prefs, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if prefs.DefaultOutput != "json" {
		t.Errorf("DefaultOutput = %q, want %q", prefs.DefaultOutput, "json")
	}
	if prefs.HistoryFile != "/var/tmp/tg-history" {
		t.Errorf("HistoryFile = %q, want %q", prefs.HistoryFile, "/var/tmp/tg-history")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("history_file: /tmp/h\n"), 0o600); err != nil {
		t.Fatalf("write prefs file: %v", err)
	}

	prefs, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if prefs.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want default %q", prefs.DefaultOutput, "table")
	}
	if prefs.HistoryFile != "/tmp/h" {
		t.Errorf("HistoryFile = %q, want %q", prefs.HistoryFile, "/tmp/h")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("default_output: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("write prefs file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed YAML")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")

	prefs := &Preferences{DefaultOutput: "yaml", HistoryFile: "/tmp/hist"}
	if err := Save(prefs, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("prefs file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("prefs file mode = %o, want %o", perm, 0o600)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DefaultOutput != prefs.DefaultOutput {
		t.Errorf("DefaultOutput = %q, want %q", loaded.DefaultOutput, prefs.DefaultOutput)
	}
	if loaded.HistoryFile != prefs.HistoryFile {
		t.Errorf("HistoryFile = %q, want %q", loaded.HistoryFile, prefs.HistoryFile)
	}
}
