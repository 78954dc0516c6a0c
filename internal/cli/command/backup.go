// Package command provides CLI command definitions for TokenGate.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/norlun/tokengate-go/internal/cli/output"
	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/storage/backup"
)

// archiveTimeout bounds archive export and restore, which touch every
// record.
const archiveTimeout = 5 * time.Minute

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		Usage:   "Backup archive directory",
		Value:   "backups",
		EnvVars: []string{"TOKENGATE_BACKUP_DIR"},
	}
	keyFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "passphrase-file",
			Usage:   "File holding the archive passphrase",
			EnvVars: []string{"TOKENGATE_BACKUP_PASSPHRASE_FILE"},
		},
		&cli.StringFlag{
			Name:  "key-file",
			Usage: "File holding a raw archive key (ignored when a passphrase is set)",
		},
	}

	return &cli.Command{
		Name:  "backup",
		Usage: "Archive and restore the token store",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Export every live record into a new archive",
				Flags: append([]cli.Flag{
					dirFlag,
					&cli.StringFlag{
						Name:  "algorithm",
						Usage: "Archive cipher: aes-gcm or chacha20-poly1305",
					},
				}, keyFlags...),
				Action: backupCreate,
			},
			{
				Name:   "list",
				Usage:  "List archives",
				Flags:  []cli.Flag{dirFlag},
				Action: backupList,
			},
			{
				Name:      "restore",
				Usage:     "Insert archived records into the live store",
				ArgsUsage: "FILE",
				Flags: append([]cli.Flag{
					dirFlag,
					&cli.BoolFlag{
						Name:  "latest",
						Usage: "Restore the newest readable archive instead of a named file",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				}, keyFlags...),
				Action: backupRestore,
			},
			{
				Name:      "delete",
				Usage:     "Delete an archive",
				ArgsUsage: "BACKUP_ID",
				Flags: []cli.Flag{
					dirFlag,
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: backupDelete,
			},
			{
				Name:  "prune",
				Usage: "Apply the retention policy to old archives",
				Flags: []cli.Flag{
					dirFlag,
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Archives to keep regardless of age (0 uses the default, negative disables)",
					},
					&cli.IntFlag{
						Name:  "keep-days",
						Usage: "Keep archives younger than this many days (0 uses the default, negative disables)",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: backupPrune,
			},
		},
	}
}

// encryptionFromFlags builds the archive key material from the shared
// key flags. A passphrase wins over a raw key.
func encryptionFromFlags(c *cli.Context) (backup.EncryptionConfig, error) {
	enc := backup.EncryptionConfig{Algorithm: c.String("algorithm")}

	if path := c.String("passphrase-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return enc, fmt.Errorf("read passphrase file: %w", err)
		}
		enc.Passphrase = bytes.TrimSpace(data)
	}
	if path := c.String("key-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return enc, fmt.Errorf("read key file: %w", err)
		}
		enc.Key = bytes.TrimSpace(data)
	}
	return enc, nil
}

func backupCreate(c *cli.Context) error {
	enc, err := encryptionFromFlags(c)
	if err != nil {
		return err
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	scanner, ok := rt.store.(storage.Scanner)
	if !ok {
		return fmt.Errorf("%s store cannot enumerate records", rt.cfg.Store.Backend)
	}

	mgr, err := backup.NewManager(backup.Config{
		Dir:        c.String("dir"),
		Encryption: enc,
		Store:      rt.cfg.Store.Backend,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	spin := output.NewSpinner(os.Stderr, "Exporting records...")
	spin.Start()

	var records []*domain.TokenRecord
	if err := scanner.Scan(ctx, func(rec *domain.TokenRecord) error {
		records = append(records, rec)
		return nil
	}); err != nil {
		spin.Fail("export failed")
		return err
	}

	info, err := mgr.Create(records)
	if err != nil {
		spin.Fail("archive write failed")
		return err
	}
	spin.Success("Backup %s created (%d records, %s)",
		info.ID, info.RecordCount, output.FormatBytes(info.Size))

	flags := ParseGlobalFlags(c)
	if f := output.Format(flags.Output); f == output.FormatJSON || f == output.FormatYAML {
		return output.NewFormatter(f, flags.Wide).Format(os.Stdout, info)
	}
	return nil
}

// backupRow is one archive in the list output.
type backupRow struct {
	ID        string    `json:"id"`
	Records   int64     `json:"records"`
	CreatedAt time.Time `json:"created_at"`
	Size      string    `json:"size"`
	Encrypted bool      `json:"encrypted"`
	Store     string    `json:"store,omitempty" table:"wide"`
	Path      string    `json:"path" table:"wide"`
}

func backupList(c *cli.Context) error {
	mgr, err := backup.NewManager(backup.DefaultConfig(c.String("dir")))
	if err != nil {
		return err
	}

	infos, err := mgr.List()
	if err != nil {
		return err
	}

	rows := make([]backupRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, backupRow{
			ID:        info.ID,
			Records:   info.RecordCount,
			CreatedAt: time.Unix(info.CreatedAt, 0).UTC(),
			Size:      output.FormatBytes(info.Size),
			Encrypted: info.Encrypted,
			Store:     info.Store,
			Path:      info.Path,
		})
	}

	flags := ParseGlobalFlags(c)
	switch f := output.Format(flags.Output); f {
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(f, flags.Wide).Format(os.Stdout, rows)
	default:
		if len(rows) == 0 {
			fmt.Printf("No backups in %s.\n", c.String("dir"))
			return nil
		}
		if err := output.NewFormatter(f, flags.Wide).Format(os.Stdout, rows); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d backups\n", len(rows))
		return nil
	}
}

func backupRestore(c *cli.Context) error {
	path := c.Args().First()
	latest := c.Bool("latest")
	if path == "" && !latest {
		return fmt.Errorf("archive file required (or --latest)")
	}

	if !c.Bool("force") {
		target := path
		if latest {
			target = "the newest archive in " + c.String("dir")
		}
		if !confirm(fmt.Sprintf("Restore %s into the live store? Existing tokens are kept.", target)) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	enc, err := encryptionFromFlags(c)
	if err != nil {
		return err
	}
	mgr, err := backup.NewManager(backup.Config{
		Dir:        c.String("dir"),
		Encryption: enc,
	})
	if err != nil {
		return err
	}

	var (
		records []*domain.TokenRecord
		info    *backup.Info
	)
	if latest {
		records, info, err = mgr.Load()
	} else {
		records, info, err = mgr.LoadFile(path)
	}
	if err != nil {
		return err
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	bar := output.NewProgressBar(os.Stderr, "Restoring", int64(len(records)))
	var restored, skipped int64
	for _, rec := range records {
		if err := rt.store.Insert(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicateToken) {
				skipped++
				bar.Increment(1)
				continue
			}
			bar.Finish()
			return fmt.Errorf("restore %s: %w", truncateToken(rec.Token), err)
		}
		restored++
		bar.Increment(1)
	}
	bar.Finish()

	fmt.Printf("Restored %d tokens from %s", restored, info.ID)
	if skipped > 0 {
		fmt.Printf(" (%d already present)", skipped)
	}
	fmt.Println()
	return nil
}

func backupDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("backup ID required")
	}

	if !c.Bool("force") {
		if !confirm(fmt.Sprintf("Delete backup '%s'?", id)) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	mgr, err := backup.NewManager(backup.DefaultConfig(c.String("dir")))
	if err != nil {
		return err
	}
	if err := mgr.Delete(id); err != nil {
		return err
	}

	fmt.Printf("Backup %s deleted.\n", id)
	return nil
}

func backupPrune(c *cli.Context) error {
	if !c.Bool("force") {
		if !confirm(fmt.Sprintf("Prune old backups in '%s'?", c.String("dir"))) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	mgr, err := backup.NewManager(backup.Config{
		Dir:            c.String("dir"),
		RetentionCount: c.Int("keep"),
		RetentionDays:  c.Int("keep-days"),
	})
	if err != nil {
		return err
	}

	removed, err := mgr.Prune()
	if err != nil {
		return err
	}

	fmt.Printf("%d backups pruned.\n", removed)
	return nil
}
