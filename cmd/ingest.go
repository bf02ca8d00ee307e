package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <product>",
	Short: "Discover and index discussions for a product without analysing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Ingest(ctx, args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d documents indexed (%d new)\n", res.PostsIndexed, res.New)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
