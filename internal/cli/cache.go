package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rohmanhakim/parkfetch/internal/cache"
	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/spf13/cobra"
)

var showKeys bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the local cache file",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where the cache lives, how big it is and what it holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		path := cfg.CacheFile()

		info, statErr := os.Stat(path)
		switch {
		case errors.Is(statErr, os.ErrNotExist):
			fmt.Fprintf(out, "cache file: %s (not created yet)\n", path)
			return nil
		case statErr != nil:
			return statErr
		}

		store := cache.Load(path, &metadata.NoopSink{})
		fmt.Fprintf(out, "cache file: %s\n", path)
		fmt.Fprintf(out, "size:       %s\n", humanize.Bytes(uint64(info.Size())))
		fmt.Fprintf(out, "modified:   %s\n", humanize.Time(info.ModTime()))
		fmt.Fprintf(out, "entries:    %s\n", humanize.Comma(int64(store.Len())))
		if showKeys {
			for _, key := range store.Keys() {
				fmt.Fprintf(out, "  %s\n", key)
			}
		}
		return nil
	},
}

func init() {
	cacheInfoCmd.Flags().BoolVar(&showKeys, "keys", false, "also list every cached key")
	cacheCmd.AddCommand(cacheInfoCmd)
}
