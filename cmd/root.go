package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/codebook-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "codebook",
	Short: "Thematic coding pipeline for interview documents",
	Long:  "Fetches .docx documents from a folder, codes each one thematically via Claude, and aggregates the results into a multi-sheet xlsx codebook.",
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
