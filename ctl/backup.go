package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/config"
	"github.com/mhbvr/shutter/db"
	"github.com/mhbvr/shutter/library"
	"github.com/otiai10/copy"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var backupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the library database and verify the copy",
	Long: `Backup copies the database file or directory to a new location and opens
the copy to check that its photo index decodes. Stop any server using the
library first; bolt and pebble databases hold a lock while open.

Examples:
  ctl backup --db-type bolt --db photos.db --out /mnt/backup/photos.db
  ctl backup --db ./photos --out ./photos.bak`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := libFlags.ResolveChanged(cmd.Flags().Changed)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return runBackup(cmd.Context(), cfg, backupOut, cmd.OutOrStdout())
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupOut, "out", "", "Destination path; must not exist")
	backupCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(ctx context.Context, cfg config.Config, out string, w io.Writer) error {
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists", out)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	klog.InfoS("copying database", "from", cfg.DB.Path, "to", out, "dbType", cfg.DB.Type)
	if err := copy.Copy(cfg.DB.Path, out, copy.Options{Sync: true, PreserveTimes: true}); err != nil {
		return fmt.Errorf("failed to copy %s: %w", cfg.DB.Path, err)
	}

	photos, err := verifyBackup(ctx, cfg, out)
	if err != nil {
		return fmt.Errorf("backup at %s is unusable: %w", out, err)
	}
	fmt.Fprintf(w, "Backed up %d photos to %s\n", photos, out)
	return nil
}

// verifyBackup opens the copy and counts the photos its index references.
func verifyBackup(ctx context.Context, cfg config.Config, path string) (int, error) {
	store, err := db.Open(cfg.DB.Type, path)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	value, err := store.Get(ctx, cfg.IndexKey)
	if errors.Is(err, shutter.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	records, err := shutter.DecodeIndex(value)
	if err != nil {
		return 0, err
	}
	for _, r := range records {
		if _, err := store.ReadBlob(ctx, library.BlobName(r)); err != nil {
			return 0, fmt.Errorf("photo %s: %w", r.FilePath, err)
		}
	}
	return len(records), nil
}
