package command

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/norlun/tokengate-go/internal/config"
	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
)

// writeTestConfig writes a minimal config file selecting the given
// backend and returns its path. The badger backend persists across
// command invocations, so tests that chain commands use it; memory
// starts empty on every open.
func writeTestConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()

	var store string
	switch backend {
	case config.BackendMemory:
		store = "  backend: memory\n"
	case config.BackendBadger:
		store = fmt.Sprintf("  backend: badger\n  badger:\n    dir: %s\n", filepath.Join(dir, "db"))
	default:
		t.Fatalf("unsupported test backend %q", backend)
	}

	cfg := "token:\n" +
		"  secret: cli-test-secret\n" +
		"  ttl_seconds: 300\n" +
		"  renew_threshold_seconds: 0\n" +
		"store:\n" + store +
		"telemetry:\n" +
		"  log_level: error\n" +
		"  log_format: text\n"

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// makeTestContext creates a CLI context with specific flags for testing
// actions. extraFlags is a map of flag name to its value for non-global
// flags.
func makeTestContext(t *testing.T, configPath string, extraFlags map[string]any, args []string) *cli.Context {
	t.Helper()

	app := &cli.App{
		Name:  "test",
		Flags: globalFlags(),
	}

	// Build all flags - start with global flags
	allFlags := append([]cli.Flag{}, globalFlags()...)

	// Track existing flag names to avoid duplicates
	existingFlags := make(map[string]bool)
	for _, f := range allFlags {
		for _, name := range f.Names() {
			existingFlags[name] = true
		}
	}

	// Add extra flags that don't exist yet
	for name, val := range extraFlags {
		if existingFlags[name] {
			continue
		}
		switch v := val.(type) {
		case string:
			allFlags = append(allFlags, &cli.StringFlag{Name: name, Value: v})
		case int:
			allFlags = append(allFlags, &cli.IntFlag{Name: name})
		case bool:
			allFlags = append(allFlags, &cli.BoolFlag{Name: name})
		case time.Duration:
			allFlags = append(allFlags, &cli.DurationFlag{Name: name, Value: v})
		}
		existingFlags[name] = true
	}

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range allFlags {
		f.Apply(set)
	}

	// Build args
	var cliArgs []string
	if configPath != "" {
		cliArgs = append(cliArgs, "--config", configPath)
	}
	for name, val := range extraFlags {
		switch v := val.(type) {
		case string:
			if v != "" {
				cliArgs = append(cliArgs, "--"+name, v)
			}
		case int:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, fmt.Sprintf("%d", v))
			}
		case bool:
			if v {
				cliArgs = append(cliArgs, "--"+name)
			}
		case time.Duration:
			if v != 0 {
				cliArgs = append(cliArgs, "--"+name, v.String())
			}
		}
	}
	cliArgs = append(cliArgs, args...)

	set.Parse(cliArgs)

	return cli.NewContext(app, set, nil)
}

// openTestStore opens the store a config file points at, outside any
// command. The caller must call the returned closer.
func openTestStore(t *testing.T, configPath string) (storage.TokenStore, func()) {
	t.Helper()

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: os.Stderr})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	store, err := config.OpenStore(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	}
}

// seedRecord inserts a record directly into the store.
func seedRecord(t *testing.T, store storage.TokenStore, tokenValue, userID string, modifiedAt int64) {
	t.Helper()
	payload := fmt.Sprintf(`{"user_id":%q}`, userID)
	err := store.Insert(context.Background(), &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    []byte(payload),
		ModifiedAt: modifiedAt,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", tokenValue, err)
	}
}

// storedTokens lists the token values currently in the store, sorted.
func storedTokens(t *testing.T, store storage.TokenStore) []string {
	t.Helper()
	scanner, ok := store.(storage.Scanner)
	if !ok {
		t.Fatal("store does not support scanning")
	}
	var tokens []string
	err := scanner.Scan(context.Background(), func(rec *domain.TokenRecord) error {
		tokens = append(tokens, rec.Token)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	sort.Strings(tokens)
	return tokens
}
