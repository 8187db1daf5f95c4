package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/redflag-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "redflag",
	Short: "Naver Place review crawler and red-flag analyzer",
	Long:  "Resolves Naver Place listing URLs, crawls the visitor review page in an emulated browser, keeps genuine reviews, and optionally asks Claude for serious recurring complaints.",
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
