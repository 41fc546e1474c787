package cmd

import (
	"context"
	"fmt"

	"github.com/mezonai/sequencer/blockengine"
	"github.com/mezonai/sequencer/commit"
	"github.com/mezonai/sequencer/config"
	"github.com/mezonai/sequencer/engineclient"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/store"
	"github.com/mezonai/sequencer/tick"
)

// slotStepper is implemented by tick adapters that can advance a whole slot
// in one request.
type slotStepper interface {
	StepSlot(ctx context.Context) error
}

func loadConfiguration() (*config.NodeConfig, *config.Tuning, error) {
	cfg, err := config.LoadNodeConfig(nodeConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", nodeConfigPath, err)
	}
	tuning, err := config.LoadTuning(tuningPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", tuningPath, err)
	}
	return cfg, tuning, nil
}

func initializeTicker(cfg *config.NodeConfig, tuning *config.Tuning) tick.Ticker {
	switch cfg.Engine.TickTransport {
	case config.TickTransportRPC:
		logx.Info("INIT", "Tick transport: rpc ", cfg.Engine.ControlURL)
		return tick.NewRPCTicker(cfg.Engine.ControlURL, tuning.Tick.Timeout())
	default:
		logx.Info("INIT", "Tick transport: ipc ", cfg.Engine.TickSocket)
		return tick.NewIPCTicker(cfg.Engine.TickSocket, tuning.Tick.Timeout())
	}
}

func initializeEngineClient(cfg *config.NodeConfig, tuning *config.Tuning) *engineclient.RPCClient {
	return engineclient.NewRPCClient(
		cfg.Engine.RPCURL,
		tuning.Engine.RequestTimeout(),
		engineclient.WithSkipPreflight(cfg.Engine.SkipPreflight),
	)
}

func initializeCoordinator(client engineclient.Client, ticker tick.Ticker, tuning *config.Tuning) (*commit.Coordinator, error) {
	return commit.New(client, ticker, commit.WithPolicy(tuning.Commit.Policy()))
}

func initializeBlockStore(cfg *config.NodeConfig) (*store.GenericBlockStore, error) {
	return store.CreateBlockStore(&store.StoreConfig{
		Type:      store.StoreType(cfg.Storage.Type),
		Directory: cfg.Storage.Directory,
	})
}

// recoverState returns the tip recorded by the latest stored block, or
// genesis for an empty store.
func recoverState(bs store.BlockStore) (blockengine.State, error) {
	latest, err := bs.Latest()
	if err != nil {
		return blockengine.State{}, err
	}
	if latest == nil {
		return blockengine.Genesis(), nil
	}
	return blockengine.State{CurrentSlot: latest.Slot, CurrentBlockhash: latest.BlockHash}, nil
}

// stateBefore returns the tip a replay starting at slot must begin from.
func stateBefore(bs store.BlockStore, slot uint64) (blockengine.State, error) {
	if slot <= 1 {
		return blockengine.Genesis(), nil
	}
	parent, err := bs.Block(slot - 1)
	if err != nil {
		return blockengine.State{}, err
	}
	if parent == nil {
		return blockengine.State{}, fmt.Errorf("no stored block at slot %d to replay from", slot-1)
	}
	return blockengine.State{CurrentSlot: parent.Slot, CurrentBlockhash: parent.BlockHash}, nil
}
