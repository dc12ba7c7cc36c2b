package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocache/pkg/cache"
	"github.com/marmos91/dittocache/pkg/config"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a payload and write it to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(_ *config.Config, c *cache.Cache) error {
			value, err := c.Get(args[0])
			if err != nil {
				if errors.Is(err, cache.ErrNotFound) {
					return fmt.Errorf("key %q not found", args[0])
				}
				return err
			}
			_, err = cmd.OutOrStdout().Write(value)
			return err
		})
	},
}

var setFile string

var setCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a payload",
	Long: `Store a payload under a key.

The payload is the second argument, the contents of --file, or stdin when
neither is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value []byte
		switch {
		case len(args) == 2:
			value = []byte(args[1])
		case setFile != "":
			data, err := os.ReadFile(setFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", setFile, err)
			}
			value = data
		default:
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			value = data
		}

		return withCache(func(_ *config.Config, c *cache.Cache) error {
			if err := c.Set(args[0], value); err != nil {
				return err
			}
			if !c.Contains(args[0]) {
				return fmt.Errorf("payload was not stored (larger than the byte limit?)")
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Remove a payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(_ *config.Config, c *cache.Cache) error {
			if !c.Remove(args[0]) {
				return fmt.Errorf("key %q not found", args[0])
			}
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every payload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(_ *config.Config, c *cache.Cache) error {
			c.RemoveAll()
			return nil
		})
	},
}

func init() {
	setCmd.Flags().StringVarP(&setFile, "file", "f", "", "read the payload from a file")
}
