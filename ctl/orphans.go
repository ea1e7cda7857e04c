package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var orphansPrune bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List stored photos the index no longer references",
	Long: `Orphans compares the blob store with the photo index. A blob is left
behind when a capture or import wrote it but the index update failed.

Examples:
  ctl orphans --db-type pebble --db ./photos
  ctl orphans --db ./photos --prune`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, store, err := openLibrary(ctx, cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if !orphansPrune {
			names, err := lib.Orphans(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			fmt.Fprintf(out, "%d orphaned photos\n", len(names))
			return nil
		}

		removed, err := lib.Prune(ctx)
		for _, name := range removed {
			fmt.Fprintf(out, "removed %s\n", name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d orphaned photos removed\n", len(removed))
		return nil
	},
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansPrune, "prune", false, "Delete the orphaned photos")
	rootCmd.AddCommand(orphansCmd)
}
