// Package command provides CLI command definitions for TokenGate.
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/norlun/tokengate-go/internal/cli/output"
	"github.com/norlun/tokengate-go/internal/core/service"
	"github.com/norlun/tokengate-go/internal/storage"
)

// sweepTimeout bounds a manual sweep, which can touch many records.
const sweepTimeout = 60 * time.Second

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show store statistics and lifecycle settings",
		Action: systemStats,
	}
}

// SweepCommand returns the sweep command.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:   "sweep",
		Usage:  "Remove expired tokens now",
		Action: systemSweep,
	}
}

func systemStats(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	stats := map[string]any{
		"backend":                 rt.cfg.Store.Backend,
		"ttl_seconds":             rt.manager.TTLSeconds(),
		"renew_threshold_seconds": rt.manager.RenewThresholdSeconds(),
		"sweep_interval":          service.SweepIntervalFor(rt.manager.TTLSeconds()).String(),
	}
	if counter, ok := rt.store.(storage.Counter); ok {
		count, err := counter.Count(ctx)
		if err != nil {
			return err
		}
		stats["records"] = count
	}

	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, stats)
}

func systemSweep(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := rt.manager.Sweep(ctx)
	if err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON, output.FormatYAML:
		formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
		return formatter.Format(os.Stdout, struct {
			Removed int64 `json:"removed"`
		}{removed})
	default:
		fmt.Printf("Sweep completed: %d expired tokens removed.\n", removed)
		return nil
	}
}
