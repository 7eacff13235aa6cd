// Command arbbot follows new Arbitrum blocks, looks for price gaps between
// the two configured venues and executes the best one through the executor
// contract.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/pulkyeet/venue-arb/internal/bot"
	"github.com/pulkyeet/venue-arb/internal/config"
	"github.com/pulkyeet/venue-arb/internal/eth"
	"github.com/pulkyeet/venue-arb/internal/execution"
	"github.com/pulkyeet/venue-arb/internal/health"
	"github.com/pulkyeet/venue-arb/internal/lock"
	"github.com/pulkyeet/venue-arb/internal/metrics"
	"github.com/pulkyeet/venue-arb/internal/registry"
	"github.com/pulkyeet/venue-arb/internal/storage"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config (defaults plus env when empty)")
	dryRun := flag.Bool("dry-run", false, "rank and audit opportunities without submitting")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Execution.Enabled = false
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("arbbot exited with error", "error", err)
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	logger.Info("arbbot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := eth.Dial(ctx, cfg.RPC.Endpoints)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if chainID.Int64() != cfg.Chain.ChainID {
		return fmt.Errorf("endpoint %s serves chain %s, config expects %d", client.URL(), chainID, cfg.Chain.ChainID)
	}
	logger.Info("connected", "endpoint", client.URL(), "chain_id", chainID.String())

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Redis.Enabled {
		rdb, err := lock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		lease, err := lock.NewRedis(rdb).Acquire(ctx, cfg.Redis.LockKey, cfg.Redis.LockTTL.Duration)
		if err != nil {
			return fmt.Errorf("instance lock %s: %w", cfg.Redis.LockKey, err)
		}
		g.Go(func() error { return lease.Keep(ctx) })
	}

	audit, err := storage.Open(ctx, cfg.Audit.Backend, cfg.Audit.DSN)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer audit.Close()

	src, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return err
	}

	venues := cfg.VenueSet()
	tracker := health.NewTracker(cfg.HealthConfig())
	m := metrics.New()

	var executor bot.Executor
	if cfg.Execution.Enabled {
		executor, err = newSequencer(cfg, client, tracker, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("execution disabled, running dry")
	}

	driver, err := bot.New(bot.Config{
		DryRun:         !cfg.Execution.Enabled,
		ReconnectDelay: cfg.RPC.ReconnectDelay.Duration,
	}, bot.Deps{
		Registry: src,
		Gas:      bot.OracleGas{Oracle: eth.NewGasOracle(cfg.Gas.RefreshInterval.Duration), Source: client},
		Reader:   arbitrage.NewBatchStateReader(eth.NewMulticall(client, common.HexToAddress(cfg.Chain.Multicall)), venues),
		Engine:   arbitrage.NewEngine(cfg.EngineConfig()),
		Health:   tracker,
		Executor: executor,
		Audit:    audit,
		Metrics:  m,
	}, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		logger.Info("following heads",
			"venue_a", venues.A.Name,
			"venue_b", venues.B.Name,
			"dry_run", !cfg.Execution.Enabled,
		)
		return driver.Run(ctx, client)
	})

	return g.Wait()
}

func newSequencer(cfg *config.Config, client *eth.Client, tracker *health.Tracker, logger *slog.Logger) (*execution.Sequencer, error) {
	submitter, err := eth.NewTxSubmitter(client, cfg.Wallet.PrivateKey, common.HexToAddress(cfg.Wallet.Executor), big.NewInt(cfg.Chain.ChainID))
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	logger.Info("signer ready", "from", submitter.From().Hex(), "executor", cfg.Wallet.Executor)

	waiter := eth.NewReceiptWaiter(client, cfg.Execution.PollInterval.Duration)
	return execution.NewSequencer(cfg.ExecutionConfig(), client, submitter, waiter, tracker, logger), nil
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
