package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/product-battle/internal/model"
)

var (
	analyzeRefresh bool
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <product>",
	Short: "Build or show the cached analysis for one product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var rec *model.AnalysisRecord
		if analyzeRefresh {
			rec, err = env.Orchestrator.Refresh(ctx, args[0])
		} else {
			rec, err = env.Orchestrator.Analyze(ctx, args[0])
		}
		if err != nil {
			return err
		}

		if analyzeJSON {
			return writeJSON(cmd.OutOrStdout(), rec)
		}
		formatRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "discard any cached analysis and rebuild")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the record as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
