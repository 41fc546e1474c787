package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezonai/sequencer/blockengine"
	"github.com/mezonai/sequencer/events"
	"github.com/mezonai/sequencer/ipc"
	"github.com/mezonai/sequencer/jsonrpc"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/mempool"
	"github.com/mezonai/sequencer/monitoring"
	"github.com/mezonai/sequencer/ratelimit"
	"github.com/mezonai/sequencer/validator"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sequencer node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runNode(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runNode(ctx context.Context) error {
	cfg, tuning, err := loadConfiguration()
	if err != nil {
		return err
	}
	logx.Info("NODE", "Starting ", cfg.Name)

	bs, err := initializeBlockStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize block store: %w", err)
	}
	defer func() {
		if err := bs.Close(); err != nil {
			logx.Error("NODE", "Failed to close block store: ", err)
		}
	}()

	state, err := recoverState(bs)
	if err != nil {
		return fmt.Errorf("recover chain tip: %w", err)
	}
	logx.Info("NODE", fmt.Sprintf("Recovered tip | slot=%d | hash=%s", state.CurrentSlot, state.CurrentBlockhash))
	monitoring.SetSlotHeight(state.CurrentSlot)

	engineClient := initializeEngineClient(cfg, tuning)
	defer engineClient.Close()
	if err := engineClient.Health(ctx); err != nil {
		logx.Warn("NODE", "Engine health check failed, continuing: ", err)
	}

	ticker := initializeTicker(cfg, tuning)
	coord, err := initializeCoordinator(engineClient, ticker, tuning)
	if err != nil {
		return fmt.Errorf("initialize commit coordinator: %w", err)
	}
	engine := blockengine.New(coord, blockengine.WithState(state))

	pool := mempool.NewPool()
	router := events.NewEventRouter(events.NewEventBus())
	val := validator.NewValidator(pool, engine,
		validator.WithBatchSize(tuning.Producer.BatchSize),
		validator.WithBlockInterval(tuning.Producer.BlockInterval()),
		validator.WithMaxTxAttempts(tuning.Producer.MaxTxAttempts),
		validator.WithBlockStore(bs),
		validator.WithEventRouter(router),
	)

	g, ctx := errgroup.WithContext(ctx)

	if addr := cfg.Ingress.JSONRPCAddr; addr != "" {
		rpcServer := jsonrpc.NewServer(addr, pool, engine, bs, router)
		if cors, ok := jsonrpc.CORSFromEnv(); ok {
			rpcServer.SetCORSConfig(cors)
		}
		if limit := cfg.Ingress.RateLimitPerSecond; limit > 0 {
			cfgLimiter := ratelimit.DefaultConfig()
			cfgLimiter.MaxRequests = limit
			limiter := ratelimit.NewRateLimiter(cfgLimiter)
			defer limiter.Stop()
			rpcServer.SetRateLimiter(limiter)
		}
		if err := rpcServer.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return rpcServer.Shutdown(shutdownCtx)
		})
	}

	if path := cfg.Ingress.IPCSocket; path != "" {
		handler := ipc.NewPoolHandler(pool, val.Tick)
		handler.SetEventRouter(router)
		ipcServer := ipc.NewServer(path, handler)
		if err := ipcServer.Start(); err != nil {
			return fmt.Errorf("start ipc ingress: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return ipcServer.Close()
		})
	}

	if addr := cfg.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		monitoring.RegisterMetrics(mux)
		metricsServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			logx.Info("METRICS", "Listening on ", addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	val.Run()
	g.Go(func() error {
		<-ctx.Done()
		val.Stop()
		return nil
	})

	logx.Info("NODE", "Sequencer running")
	if err := g.Wait(); err != nil {
		return err
	}
	logx.Info("NODE", "Sequencer stopped at slot ", engine.State().CurrentSlot)
	return nil
}
