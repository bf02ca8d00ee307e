package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "product-battle",
	Short: "Head-to-head product comparisons from community sentiment",
	Long:  "Discovers Reddit discussions about two products, indexes them, asks an LLM for a scored verdict on each and reports the winner. Verdicts are cached per product.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
