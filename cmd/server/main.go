package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"betmarket-backend/internal/api"
	"betmarket-backend/internal/attest"
	"betmarket-backend/internal/config"
	"betmarket-backend/internal/custody"
	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/oracle"
	"betmarket-backend/internal/settlement"
	"betmarket-backend/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Betmarket Backend...")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Storage: sqlite when STORE_PATH is set, in-memory otherwise
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	if cfg.StorePath != "" {
		log.Printf("Using sqlite store at %s", cfg.StorePath)
	} else {
		log.Println("Using in-memory store")
	}

	// Price source: websocket feed if configured, static otherwise
	var prices oracle.PriceSource
	if cfg.PriceFeedURL != "" {
		feed := oracle.NewFeed(cfg.PriceFeedURL)
		feed.SetErrorHandler(func(err error) {
			log.Printf("Price feed error: %v", err)
		})
		if err := feed.Connect(ctx); err != nil {
			log.Printf("Warning: Failed to connect to price feed: %v", err)
		} else {
			log.Printf("Connected to price feed at %s", cfg.PriceFeedURL)
		}
		defer feed.Close()
		prices = feed
	} else {
		log.Println("No PRICE_FEED_URL set, using static price source")
		prices = oracle.NewStatic()
	}

	// Collateral custody (in-memory; production plugs in a custody API). The
	// house account bankrolls every market's synthetic liquidity.
	custodian := custody.NewCustodian(cfg.CollateralToken, map[string]uint64{
		cfg.HouseAddr: cfg.HouseFunds,
	})

	registry := market.NewRegistry(cfg.OwnerAddr, st.Markets(), prices, custodian, cfg.HouseAddr, cfg.SyntheticBudget)
	ledger := engine.NewLedger(st.Markets(), st.Positions(), custodian)

	// Settlement attestation verification (optional)
	var verifier settlement.Verifier
	if cfg.AttestorAddr != "" {
		verifier = attest.NewAddressVerifier(common.HexToAddress(cfg.AttestorAddr))
		log.Printf("Settlement attestations verified against %s", cfg.AttestorAddr)
	} else {
		log.Println("Attestation verification disabled (no ATTESTOR_ADDR set)")
	}
	reconciler := settlement.NewReconciler(st.Settlements(), verifier)

	// Automatic resolution from the price feed
	watcher := engine.NewWatcher(ledger, st.Markets(), prices, cfg.ResolveInterval, cfg.PriceFreshness)
	watcher.Start(ctx)

	server := api.NewServer(cfg, registry, ledger, reconciler)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		watcher.Stop()
		st.Close()
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
