package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocache/internal/bytesize"
	"github.com/marmos91/dittocache/internal/cli/output"
	"github.com/marmos91/dittocache/pkg/cache"
	"github.com/marmos91/dittocache/pkg/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List live keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(_ *config.Config, c *cache.Cache) error {
			rows := make([][]string, 0)
			c.Enumerate(func(key, fileURL string) bool {
				rows = append(rows, []string{key, fileURL})
				return true
			})
			output.Table(cmd.OutOrStdout(), []string{"KEY", "FILE"}, rows)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(_ *config.Config, c *cache.Cache) error {
			s := c.Stats()

			limit := "unlimited"
			if s.ByteLimit > 0 {
				limit = bytesize.ByteSize(s.ByteLimit).String()
			}

			output.KeyValue(cmd.OutOrStdout(), [][2]string{
				{"Name", s.Name},
				{"Directory", s.Dir},
				{"Entries", strconv.Itoa(s.EntryCount)},
				{"Bytes", bytesize.ByteSize(s.ByteCount).String()},
				{"Byte limit", limit},
				{"Age limit", formatAge(s.AgeLimit)},
				{"TTL reads", strconv.FormatBool(s.TTL)},
			})
			return nil
		})
	},
}

var (
	trimSize   string
	trimByDate bool
	trimAge    string
)

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Evict entries down to a size or age",
	Long: `Evict entries until the cache fits a byte budget or contains nothing
older than an age.

Examples:
  # Keep at most 10Mi, evicting largest entries first
  dittocache trim --size 10Mi

  # Keep at most 10Mi, evicting oldest entries first
  dittocache trim --size 10Mi --by-date

  # Drop everything older than 24h
  dittocache trim --age 24h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (trimSize == "") == (trimAge == "") {
			return fmt.Errorf("exactly one of --size or --age is required")
		}

		return withCache(func(cfg *config.Config, c *cache.Cache) error {
			switch {
			case trimSize != "":
				size, err := bytesize.Parse(trimSize)
				if err != nil {
					return err
				}
				if trimByDate {
					c.TrimToSizeByDate(size.Int64())
				} else {
					c.TrimToSize(size.Int64())
				}
			case trimAge != "":
				age, err := time.ParseDuration(trimAge)
				if err != nil {
					return err
				}
				c.TrimToDate(time.Now().Add(-age))
			}

			cmd.Printf("byte count: %s\n", bytesize.ByteSize(c.ByteCount()))
			return nil
		})
	},
}

func init() {
	trimCmd.Flags().StringVar(&trimSize, "size", "", "byte budget to trim to, e.g. 10Mi")
	trimCmd.Flags().BoolVar(&trimByDate, "by-date", false, "evict oldest entries first instead of largest")
	trimCmd.Flags().StringVar(&trimAge, "age", "", "drop entries older than this, e.g. 24h")
}
