// Command ctl maintains a photo library offline and benchmarks a running
// photo server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/config"
	"github.com/mhbvr/shutter/db"
	"github.com/mhbvr/shutter/library"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var libFlags *config.Flags

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Photo library maintenance",
	Long: `ctl works on a photo library without a running server: it imports
existing photos, finds and prunes blobs the index no longer references, and
benchmarks a photo server over gRPC.`,
	SilenceUsage: true,
}

func init() {
	goflags := flag.NewFlagSet("ctl", flag.ContinueOnError)
	klog.InitFlags(goflags)
	libFlags = config.RegisterFlags(goflags)
	rootCmd.PersistentFlags().AddGoFlagSet(goflags)
}

// openLibrary opens the configured store and loads its index. Offline
// commands never capture, so no camera is opened.
func openLibrary(ctx context.Context, cmd *cobra.Command) (*library.Library, shutter.Store, error) {
	cfg, err := libFlags.ResolveChanged(cmd.Flags().Changed)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := db.Open(cfg.DB.Type, cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", cfg.DB.Type, err)
	}

	lib := library.New(store, nil, cfg.LibraryOptions()...)
	if err := lib.Load(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	klog.V(1).InfoS("opened library", "db", cfg.DB.Path, "dbType", cfg.DB.Type, "photos", len(lib.Snapshot()))
	return lib, store, nil
}

func main() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
