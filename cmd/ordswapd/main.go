package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"ordswap/config"
	"ordswap/core/events"
	"ordswap/crypto"
	"ordswap/native/market"
	"ordswap/observability/logging"
	"ordswap/observability/metrics"
	"ordswap/rpc"
	"ordswap/storage"
)

// chainClock derives the current settlement-ledger height from wall-clock
// time. The escrow engine only needs a monotonic height source; a standalone
// deployment without a consensus layer uses elapsed block intervals.
type chainClock struct {
	genesisHeight uint64
	genesisTime   time.Time
	interval      time.Duration
}

func (c *chainClock) Height() uint64 {
	elapsed := time.Since(c.genesisTime)
	if elapsed < 0 {
		return c.genesisHeight
	}
	return c.genesisHeight + uint64(elapsed/c.interval)
}

// logEmitter forwards engine events to the structured logger and the
// prometheus counters.
type logEmitter struct {
	logger *slog.Logger
}

func (e *logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.logger.Info("market event", slog.String("type", evt.EventType()))
	switch evt.EventType() {
	case market.EventTypeListingCreated:
		metrics.Market().ListingCreated()
	case market.EventTypeListingAccepted:
		metrics.Market().ListingAccepted()
	case market.EventTypeListingCommitted:
		metrics.Market().ListingCommitted()
	case market.EventTypeListingCancelled:
		metrics.Market().ListingCancelled()
	case market.EventTypeListingSettled:
		metrics.Market().ListingSettled()
	}
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ORDSWAP_ENV"))
	logger := logging.Setup("ordswapd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ledger := market.NewLedger(db)
	engine := market.NewEngine()
	engine.SetState(ledger)
	engine.SetParams(market.Params{
		MinPrice:     new(big.Int).SetUint64(cfg.MinPrice),
		CommitExpiry: cfg.CommitExpiryBlocks,
		Expiry:       cfg.ExpiryBlocks,
	})
	clock := &chainClock{
		genesisHeight: cfg.GenesisHeight,
		genesisTime:   time.Now(),
		interval:      time.Duration(cfg.BlockIntervalSecs) * time.Second,
	}
	engine.SetHeightFunc(clock.Height)
	engine.SetEmitter(&logEmitter{logger: logger})

	if err := applyGenesis(cfg, ledger, engine); err != nil {
		logger.Error("failed to apply genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, logger)
	logger.Info("rpc server listening",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := http.ListenAndServe(cfg.RPCAddress, server.Handler()); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func applyGenesis(cfg *config.Config, ledger *market.Ledger, engine *market.Engine) error {
	done, err := ledger.Bootstrapped()
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	for _, alloc := range cfg.Genesis {
		addr, err := crypto.DecodeAddress(alloc.Address)
		if err != nil {
			return fmt.Errorf("genesis address %q: %w", alloc.Address, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Amount), 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("genesis amount %q invalid", alloc.Amount)
		}
		var account [20]byte
		copy(account[:], addr.Bytes())
		if err := engine.Mint(account, amount); err != nil {
			return err
		}
	}
	return ledger.MarkBootstrapped()
}
