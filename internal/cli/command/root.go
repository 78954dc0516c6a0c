// Package command provides CLI command definitions for TokenGate.
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/norlun/tokengate-go/internal/cli/config"
	"github.com/norlun/tokengate-go/internal/config"
	"github.com/norlun/tokengate-go/internal/core/service"
	"github.com/norlun/tokengate-go/internal/infra/buildinfo"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/pkg/token"
)

// opTimeout bounds a single store operation.
const opTimeout = 30 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tokengate-cli",
		Usage:   "TokenGate command-line management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			IssueCommand(),
			ValidateCommand(),
			RevokeCommand(),
			RevokeUserCommand(),
			StatsCommand(),
			SweepCommand(),
			BackupCommand(),
			ConfigCommand(),
			ReplCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TokenGate configuration file",
			EnvVars: []string{"TOKENGATE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "store",
			Aliases: []string{"s"},
			Usage:   "Override the store backend: memory, badger, postgres, redis",
			EnvVars: []string{"TOKENGATE_STORE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	// Store selection
	Config string
	Store  string

	// Output format
	Output string // table, json, yaml
	Wide   bool

	// Other
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context. When --output is
// not given on the command line, the per-user preferences file may
// supply the format instead.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	flags := &GlobalFlags{
		Config:  c.String("config"),
		Store:   c.String("store"),
		Output:  c.String("output"),
		Wide:    c.Bool("wide"),
		Verbose: c.Bool("verbose"),
	}
	if !c.IsSet("output") {
		if prefs, err := cliconfig.Load(""); err == nil && prefs.DefaultOutput != "" {
			flags.Output = prefs.DefaultOutput
		}
	}
	return flags
}

// runtime bundles everything a command needs to talk to the store.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	store   storage.TokenStore
	manager *service.TokenManager
}

// Close releases the store.
func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.log.Warn("store close failed", "error", err)
	}
}

// openRuntime loads the configuration, opens the selected store and
// builds the lifecycle manager around it. The CLI logs to stderr so
// stdout stays clean for formatted results.
func openRuntime(c *cli.Context) (*runtime, error) {
	flags := ParseGlobalFlags(c)

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if flags.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{
		Level:  level,
		Format: "text",
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	store, err := config.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	manager := service.NewTokenManager(store, token.NewGenerator([]byte(cfg.Token.Secret)), &service.ManagerConfig{
		TTLSeconds:            cfg.Token.TTLSeconds,
		RenewThresholdSeconds: cfg.Token.RenewThresholdSeconds,
		Logger:                log,
	})

	return &runtime{cfg: cfg, log: log, store: store, manager: manager}, nil
}

// loadConfig loads and verifies the configuration with the --store
// override applied.
func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, err
	}
	if flags.Store != "" {
		cfg.Store.Backend = flags.Store
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// confirm prompts on stdout and reports whether the user answered yes.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}
