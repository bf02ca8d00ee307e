package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	compareTimeout time.Duration
	compareJSON    bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <product-a> <product-b>",
	Short: "Compare two products by community sentiment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if compareTimeout > 0 {
			cfg.Compare.TimeoutSecs = max(1, int(compareTimeout.Round(time.Second)/time.Second))
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Compare(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		if compareJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		formatComparison(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	compareCmd.Flags().DurationVar(&compareTimeout, "timeout", 0, "overall deadline (default from config)")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(compareCmd)
}
