package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/pulkyeet/venue-arb/internal/bot"
	"github.com/pulkyeet/venue-arb/internal/config"
	"github.com/pulkyeet/venue-arb/internal/eth"
	"github.com/pulkyeet/venue-arb/internal/health"
	"github.com/pulkyeet/venue-arb/internal/registry"
	"github.com/pulkyeet/venue-arb/internal/storage"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load("../../.env")

	configPath := flag.String("config", "", "path to TOML config")
	startBlock := flag.Uint64("start", 0, "start block")
	endBlock := flag.Uint64("end", 0, "end block (inclusive)")
	step := flag.Uint64("step", 100, "block step size")
	audit := flag.Bool("audit", false, "write opportunities and latencies to the audit store")
	flag.Parse()

	if *startBlock == 0 || *endBlock < *startBlock || *step == 0 {
		log.Fatalf("need 0 < start <= end and step > 0 (got start=%d end=%d step=%d)", *startBlock, *endBlock, *step)
	}

	cfg, err := config.LoadDryRun(*configPath)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()
	client, err := eth.Dial(ctx, cfg.RPC.Endpoints)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	src, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		log.Fatalf("failed to open registry: %v", err)
	}

	var store storage.Audit
	if *audit {
		store, err = storage.Open(ctx, cfg.Audit.Backend, cfg.Audit.DSN)
		if err != nil {
			log.Fatalf("failed to open audit store: %v", err)
		}
		defer store.Close()
	}

	venues := cfg.VenueSet()
	gas := &bot.HeaderGas{Source: client}
	// one tracker across the range; nothing executes so it only sweeps
	driver, err := bot.New(bot.Config{DryRun: true}, bot.Deps{
		Registry: src,
		Gas:      gas,
		Reader:   arbitrage.NewBatchStateReader(eth.NewMulticall(client, common.HexToAddress(cfg.Chain.Multicall)), venues),
		Engine:   arbitrage.NewEngine(cfg.EngineConfig()),
		Health:   health.NewTracker(cfg.HealthConfig()),
		Audit:    store,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		log.Fatalf("failed to build driver: %v", err)
	}

	fmt.Printf("Scanning blocks %d to %d (step: %d), %s vs %s...\n\n",
		*startBlock, *endBlock, *step, venues.A.Name, venues.B.Name)

	checked, failed, found, hit := 0, 0, 0, 0
	total := decimal.Zero
	best := decimal.Zero
	var bestBlock uint64

	for block := *startBlock; block <= *endBlock; block += *step {
		checked++
		if checked%10 == 0 {
			fmt.Printf("Checked %d blocks, found %d opportunities...\n", checked, found)
		}

		gas.Block = new(big.Int).SetUint64(block)
		rep, err := driver.RunCycle(ctx, block)
		if err != nil {
			failed++
			fmt.Printf("Block %d: skipped (%v)\n", block, err)
			continue
		}

		opps := rep.Evaluation.Opportunities
		if len(opps) == 0 {
			continue
		}
		hit++
		found += len(opps)

		top := storage.RatToDecimal(opps[0].Profit)
		total = total.Add(top)
		if top.GreaterThan(best) {
			best, bestBlock = top, block
		}
		fmt.Printf("Block %d: %d opportunities, best %s %s $%s\n",
			block, len(opps), opps[0].Pair.Symbol(), opps[0].Variant, top.StringFixed(4))
	}

	fmt.Printf("\n================================================\n")
	fmt.Printf("Scan complete! Blocks checked: %d | failed: %d | with opportunities: %d | opportunities: %d\n",
		checked, failed, hit, found)
	if hit > 0 {
		fmt.Printf("Sum of best-per-block profit: $%s\n", total.StringFixed(4))
		fmt.Printf("Best: $%s at block %d\n", best.StringFixed(4), bestBlock)
	}
	if *audit {
		stats, err := store.Stats(ctx)
		if err != nil {
			log.Fatalf("failed to read audit stats: %v", err)
		}
		fmt.Printf("Audit store: %v\n", stats)
	}
}
