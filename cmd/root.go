package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forest-cli/internal/config"
)

var (
	cfg          *config.Config
	outputFormat string
	locale       string
)

var rootCmd = &cobra.Command{
	Use:   "forest-cli",
	Short: "Forest alert and tree-cover analysis",
	Long:  "Measures FORMA 250 deforestation alerts and tree-cover extent over GeoJSON regions or administrative boundaries using a remote raster analysis platform.",
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
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "en", "locale for number formatting in text output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
