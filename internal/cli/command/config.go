// Package command provides CLI command definitions for TokenGate.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/norlun/tokengate-go/internal/cli/output"
	"github.com/norlun/tokengate-go/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:   "check",
				Usage:  "Verify the configuration and report problems",
				Action: configCheck,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return err
	}
	if flags.Store != "" {
		cfg.Store.Backend = flags.Store
	}

	format := output.Format(flags.Output)
	if format == output.FormatTable {
		// The nested config reads better as YAML than as a table.
		format = output.FormatYAML
	}
	formatter := output.NewFormatter(format, flags.Wide)
	return formatter.Format(os.Stdout, config.Sanitize(cfg))
}

func configCheck(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Configuration is valid.\n")
	fmt.Printf("  Store:   %s\n", cfg.Store.Backend)
	fmt.Printf("  TTL:     %ds\n", cfg.Token.TTLSeconds)
	fmt.Printf("  Renewal: %ds\n", cfg.Token.RenewThresholdSeconds)
	if config.IsDefaultSecret(cfg) {
		fmt.Printf("\n⚠️  token.secret is the built-in default; override it before issuing real tokens.\n")
	}
	return nil
}
