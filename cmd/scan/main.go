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
)

func main() {
	_ = godotenv.Load("../../.env")

	configPath := flag.String("config", "", "path to TOML config")
	blockNum := flag.Uint64("block", 0, "block number to scan (0 = latest)")
	audit := flag.Bool("audit", false, "write opportunities to the audit store")
	flag.Parse()

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

	block := *blockNum
	if block == 0 {
		head, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			log.Fatalf("failed to fetch latest block: %v", err)
		}
		block = head.Number.Uint64()
	}

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
	engine := arbitrage.NewEngine(cfg.EngineConfig())
	driver, err := bot.New(bot.Config{DryRun: true}, bot.Deps{
		Registry: src,
		Gas:      &bot.HeaderGas{Source: client, Block: new(big.Int).SetUint64(block)},
		Reader:   arbitrage.NewBatchStateReader(eth.NewMulticall(client, common.HexToAddress(cfg.Chain.Multicall)), venues),
		Engine:   engine,
		Health:   health.NewTracker(cfg.HealthConfig()),
		Audit:    store,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		log.Fatalf("failed to build driver: %v", err)
	}

	fmt.Printf("scanning block %d (%s vs %s)...\n\n", block, venues.A.Name, venues.B.Name)

	rep, err := driver.RunCycle(ctx, block)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	ev := rep.Evaluation
	fmt.Println("Pairs:")
	fmt.Println("======")
	fmt.Printf("  registry:        %d\n", rep.Pairs)
	fmt.Printf("  readings:        %d\n", rep.Readings)
	fmt.Printf("  evaluated:       %d\n", ev.Evaluated)
	fmt.Printf("  thin liquidity:  %d\n", ev.SkippedLiquidity)
	fmt.Printf("  ratio out:       %d\n", ev.SkippedRatio)

	if len(ev.Opportunities) == 0 {
		fmt.Println("\nNo profitable opportunity at this block")
		return
	}

	fmt.Println("\nOpportunities (best first):")
	fmt.Println("===========================")
	for i, o := range ev.Opportunities {
		fmt.Printf("%2d. %-14s %-18s $%s  (%s / %s)\n",
			i+1,
			o.Pair.Symbol(),
			o.Variant,
			storage.RatToDecimal(o.Profit).StringFixed(4),
			o.Pair.VenueA.Hex(),
			o.Pair.VenueB.Hex(),
		)
	}

	if rep.Selected != nil {
		params, err := arbitrage.BuildParams(*rep.Selected, venues, engine.Config().NotionalUSD)
		if err != nil {
			log.Fatalf("failed to build params: %v", err)
		}
		fmt.Println("\nWould execute:")
		fmt.Printf("  routerA:  %s\n", params.RouterA.Hex())
		fmt.Printf("  routerB:  %s\n", params.RouterB.Hex())
		fmt.Printf("  tokenIn:  %s\n", params.TokenIn.Hex())
		fmt.Printf("  tokenOut: %s\n", params.TokenOut.Hex())
		fmt.Printf("  fees:     %d / %d\n", params.FeeA, params.FeeB)
		fmt.Printf("  amountIn: %s\n", params.AmountIn.String())
	}
	if *audit {
		fmt.Printf("\nrecorded %d opportunities to %s\n", len(ev.Opportunities), cfg.Audit.Backend)
	}
}
