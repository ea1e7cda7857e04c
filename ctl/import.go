package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/mhbvr/shutter/camera/snapshot"
	"github.com/mhbvr/shutter/library"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	importSrc       string
	importBatchSize int
	importScale     float64
	importQuality   int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Add existing photos to the library",
	Long: `Import walks a directory for JPEG files and adds them to the library,
oldest first, so the most recently modified file ends up at the top of the
gallery. Each batch is written with a single index update.

Examples:
  # Import a camera card into a bolt library
  ctl import --db-type bolt --db photos.db --src /media/card/DCIM

  # Import at half size
  ctl import --db photos --src ./old --scale 0.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context(), cmd)
	},
}

func init() {
	importCmd.Flags().StringVar(&importSrc, "src", "", "Source directory containing photo files")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 100, "Number of photos to write per index update")
	importCmd.Flags().Float64Var(&importScale, "scale", 1.0, "Image scaling factor (0.0 to 1.0, where 1.0 = no scaling)")
	importCmd.Flags().IntVar(&importQuality, "quality", 0, "JPEG quality of scaled photos (0 = encoder default)")
	importCmd.MarkFlagRequired("src")

	rootCmd.AddCommand(importCmd)
}

func runImport(ctx context.Context, cmd *cobra.Command) error {
	if importScale <= 0 || importScale > 1 {
		return fmt.Errorf("scale factor must be between 0.0 (exclusive) and 1.0 (inclusive), got %v", importScale)
	}
	if importBatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", importBatchSize)
	}

	lib, store, err := openLibrary(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	paths, skipped, err := collectPhotos(importSrc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d photos in %s, %d other files skipped\n", len(paths), importSrc, skipped)

	imported, err := importPhotos(ctx, lib, paths, importBatchSize, importScale, importQuality)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d photos, library now holds %d\n", imported, len(lib.Snapshot()))
	return err
}

// collectPhotos returns the JPEG files under dir, least recently modified
// first. Hidden files and directories are skipped.
func collectPhotos(dir string) (paths []string, skipped int, err error) {
	type found struct {
		path string
		mod  time.Time
	}
	var files []found

	dir = filepath.Clean(dir)
	err = godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != dir && strings.HasPrefix(de.Name(), ".") {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".jpg", ".jpeg":
			default:
				skipped++
				klog.V(1).InfoS("skipping file", "path", path)
				return nil
			}
			fi, err := os.Stat(path)
			if err != nil {
				return err
			}
			files = append(files, found{path: path, mod: fi.ModTime()})
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	slices.SortStableFunc(files, func(a, b found) int {
		if c := a.mod.Compare(b.mod); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, skipped, nil
}

// importPhotos adds paths to lib in batches and returns how many were added.
func importPhotos(ctx context.Context, lib *library.Library, paths []string, batchSize int, scale float64, quality int) (int, error) {
	total := (len(paths) + batchSize - 1) / batchSize
	imported := 0

	for batch := range slices.Chunk(paths, batchSize) {
		n := imported/batchSize + 1
		items := make([]library.ImportItem, 0, len(batch))
		for _, path := range batch {
			data, err := os.ReadFile(path)
			if err != nil {
				return imported, fmt.Errorf("failed to read photo %s: %w", path, err)
			}
			if scale < 1 {
				if data, err = snapshot.Scale(data, scale, quality); err != nil {
					return imported, fmt.Errorf("failed to scale photo %s: %w", path, err)
				}
			}
			items = append(items, library.ImportItem{Source: path, Data: data})
		}

		klog.InfoS("writing batch", "batch", n, "of", total, "photos", len(items))
		if _, err := lib.Import(ctx, items); err != nil {
			return imported, fmt.Errorf("failed to import batch %d: %w", n, err)
		}
		imported += len(items)
	}
	return imported, nil
}
