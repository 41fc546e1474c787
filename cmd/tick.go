package cmd

import (
	"fmt"

	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/tick"
	"github.com/spf13/cobra"
)

var (
	tickCount int
	tickSlot  bool
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Advance the engine clock manually",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tuning, err := loadConfiguration()
		if err != nil {
			return err
		}
		ticker := initializeTicker(cfg, tuning)
		ctx := cmd.Context()

		if tickSlot {
			if stepper, ok := ticker.(slotStepper); ok {
				if err := stepper.StepSlot(ctx); err != nil {
					return err
				}
				cmd.Println("advanced one slot")
				return nil
			}
			tickCount = tuning.Tick.TicksPerSlot
		}
		if tickCount <= 0 {
			return fmt.Errorf("--count must be > 0")
		}
		if err := tick.Times(ctx, ticker, tickCount); err != nil {
			return err
		}
		logx.Info("TICK", "Sent ", tickCount, " ticks")
		cmd.Printf("sent %d ticks\n", tickCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
	tickCmd.Flags().IntVar(&tickCount, "count", 1, "Number of ticks to send")
	tickCmd.Flags().BoolVar(&tickSlot, "slot", false, "Advance a full slot instead of --count ticks")
}
