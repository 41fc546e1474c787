package cmd

import (
	"fmt"

	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/blockengine"
	"github.com/mezonai/sequencer/events"
	"github.com/mezonai/sequencer/logx"
	"github.com/spf13/cobra"
)

var (
	replayFrom uint64
	replayTo   uint64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay stored blocks against the engine",
	Long:  "Reads blocks --from..--to from the configured block store and re-executes them in order. Stops at the first block that does not apply.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Uint64Var(&replayFrom, "from", 1, "First slot to replay")
	replayCmd.Flags().Uint64Var(&replayTo, "to", 0, "Last slot to replay (0 means the latest stored slot)")
}

func runReplay(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, tuning, err := loadConfiguration()
	if err != nil {
		return err
	}

	bs, err := initializeBlockStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize block store: %w", err)
	}
	defer bs.Close()

	to := replayTo
	if to == 0 {
		to = bs.LatestSlot()
	}
	if replayFrom == 0 || replayFrom > to {
		return fmt.Errorf("empty replay range %d..%d", replayFrom, to)
	}

	start, err := stateBefore(bs, replayFrom)
	if err != nil {
		return err
	}

	engineClient := initializeEngineClient(cfg, tuning)
	defer engineClient.Close()
	coord, err := initializeCoordinator(engineClient, initializeTicker(cfg, tuning), tuning)
	if err != nil {
		return err
	}
	engine := blockengine.New(coord, blockengine.WithState(start))
	router := events.NewEventRouter(events.NewEventBus())

	var applied uint64
	var replayErr error
	err = bs.Range(replayFrom, to, func(b *block.Block) bool {
		ok, err := engine.ReplayBlock(ctx, b)
		if err != nil {
			replayErr = fmt.Errorf("slot %d: %w", b.Slot, err)
			return false
		}
		router.PublishBlockReplayed(b, ok)
		if !ok {
			replayErr = fmt.Errorf("slot %d: block did not apply, a transaction failed", b.Slot)
			return false
		}
		applied++
		return true
	})
	if err != nil {
		return fmt.Errorf("read blocks: %w", err)
	}

	logx.Info("REPLAY", fmt.Sprintf("Replayed %d blocks | range=%d..%d | tip=%d", applied, replayFrom, to, engine.State().CurrentSlot))
	cmd.Printf("replayed %d blocks, tip slot %d hash %s\n", applied, engine.State().CurrentSlot, engine.State().CurrentBlockhash)
	return replayErr
}
