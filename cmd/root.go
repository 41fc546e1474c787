package cmd

import (
	"os"

	"github.com/mezonai/sequencer/logx"
	"github.com/spf13/cobra"
)

var (
	nodeConfigPath string
	tuningPath     string
)

var rootCmd = &cobra.Command{
	Use:   "sequencer",
	Short: "Tick driven transaction sequencer",
	Long:  "Command line interface for running a sequencer that orders transactions into blocks on top of an external ledger engine.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&nodeConfigPath, "config", "config/node.yml", "Path to the node configuration")
	rootCmd.PersistentFlags().StringVar(&tuningPath, "tuning", "config/config.ini", "Path to the tuning configuration")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
