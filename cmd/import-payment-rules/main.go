package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/config"
	"github.com/jia-app/venuepricing/internal/db"
	applog "github.com/jia-app/venuepricing/internal/log"
	"github.com/jia-app/venuepricing/internal/pricing"
	"github.com/jia-app/venuepricing/internal/repository/postgres"
)

// ruleWriter is the part of the rule store the importer needs
type ruleWriter interface {
	UpsertRule(ctx context.Context, rule pricing.PaymentRule) error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: import-payment-rules [-config config.yaml] <csv-file-path>")
	}
	csvFilePath := flag.Arg(0)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := applog.Init(cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	dbConfig := db.DefaultConfig(cfg.Postgres.DSN)
	dbConfig.MaxConns = cfg.Postgres.MaxConns
	dbPool, err := db.NewPool(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer dbPool.Close()

	store, err := postgres.NewRuleStore(dbPool)
	if err != nil {
		log.Fatalf("Failed to create rule store: %v", err)
	}

	file, err := os.Open(csvFilePath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	rules, skipped, err := readPaymentRules(file)
	if err != nil {
		log.Fatalf("Failed to read payment rules from CSV: %v", err)
	}
	for _, s := range skipped {
		applog.Warn(ctx, "Skipping malformed payment rule row",
			zap.Int("line", s.Line),
			zap.Error(s.Err))
	}

	fmt.Printf("Loaded %d payment rules from CSV (%d rows skipped)\n", len(rules), len(skipped))

	imported, failed := importPaymentRules(ctx, store, rules)
	fmt.Printf("Imported %d payment rules, %d failed\n", imported, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func importPaymentRules(ctx context.Context, store ruleWriter, rules []pricing.PaymentRule) (imported, failed int) {
	for _, rule := range rules {
		if err := store.UpsertRule(ctx, rule); err != nil {
			applog.Error(ctx, "Failed to import payment rule",
				zap.String("rule_id", rule.ID),
				zap.String("venue_id", rule.VenueID),
				zap.Error(err))
			failed++
			continue
		}
		imported++
	}
	return imported, failed
}
