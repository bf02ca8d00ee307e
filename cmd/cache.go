package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/product-battle/internal/cache"
	"github.com/sells-group/product-battle/internal/slug"
)

var cacheOutput string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage cached analyses",
}

var cacheListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List persisted analyses",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := cache.New(st, 0).List(ctx)
		if err != nil {
			return err
		}
		return formatRecordList(cmd.OutOrStdout(), recs, cacheOutput)
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <product>",
	Short: "Drop the cached analysis for a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := slug.Normalize(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := cache.New(st, 0).Invalidate(ctx, key); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", key)
		return nil
	},
}

func init() {
	cacheListCmd.Flags().StringVarP(&cacheOutput, "output", "o", "table", "output format: table, yaml or json")
	cacheCmd.AddCommand(cacheListCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
