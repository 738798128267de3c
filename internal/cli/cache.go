// cache.go wires the artifact cache's stats, pin/unpin and eviction
// operations into cobra subcommands, rendering tabular output with
// aquasecurity/table.
package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aquasecurity/table"
	"github.com/spf13/cobra"

	"github.com/shellsage/shellsage/internal/artifactcache"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local model artifact cache",
	}
	cmd.AddCommand(
		newCacheStatsCmd(opts),
		newCacheEvictCmd(opts),
		newCachePinCmd(opts),
		newCacheUnpinCmd(opts),
	)
	return cmd
}

func newCacheStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "List cached artifacts and the total bytes they occupy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := artifactcache.Open(opts.cacheDir, 0)
			if err != nil {
				return err
			}
			manifest := cache.Manifest()

			t := table.New(cmd.OutOrStdout())
			t.SetHeaders("ID", "Size (bytes)", "SHA-256", "Last Access", "Pinned")
			for id, entry := range manifest.Entries {
				t.AddRow(
					id,
					strconv.FormatInt(entry.SizeBytes, 10),
					entry.SHA256Hex,
					time.Unix(entry.LastAccessUnix, 0).Format(time.RFC3339),
					strconv.FormatBool(entry.Pinned),
				)
			}
			t.Render()

			count, total := cache.Stats()
			cmd.Printf("%d artifacts, %d bytes total\n", count, total)
			return nil
		},
	}
}

func newCacheEvictCmd(opts *rootOptions) *cobra.Command {
	var targetBytes int64
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict least-recently-used non-pinned artifacts down to a target size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := artifactcache.Open(opts.cacheDir, 0)
			if err != nil {
				return err
			}
			return cache.Evict(targetBytes)
		},
	}
	cmd.Flags().Int64Var(&targetBytes, "target-bytes", 0, "Evict until total cache size is at or below this many bytes")
	return cmd
}

func newCachePinCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <artifact-id>",
		Short: "Exempt an artifact from LRU eviction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := artifactcache.Open(opts.cacheDir, 0)
			if err != nil {
				return err
			}
			if err := cache.Pin(args[0]); err != nil {
				return fmt.Errorf("pin %s: %w", args[0], err)
			}
			return nil
		},
	}
}

func newCacheUnpinCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unpin <artifact-id>",
		Short: "Make a pinned artifact eligible for LRU eviction again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := artifactcache.Open(opts.cacheDir, 0)
			if err != nil {
				return err
			}
			if err := cache.Unpin(args[0]); err != nil {
				return fmt.Errorf("unpin %s: %w", args[0], err)
			}
			return nil
		},
	}
}
