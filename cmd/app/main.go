package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/di"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/engine"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/repository"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	csvDir := flag.String("csv", "", "evaluate CSV exports in this directory and exit")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *csvDir != "" {
		if err := runBatch(cfg, *csvDir); err != nil {
			log.Fatalf("batch evaluation failed: %v", err)
		}
		return
	}

	log.Printf("env=%s backend=%s", cfg.Environment, cfg.Backend.Type)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s\n", cfg.ClickHouse.Database)
	log.Printf("kafka: connected brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

// runBatch evaluates indicator CSV exports offline and writes one JSON line
// per period to stdout. No infrastructure is touched.
func runBatch(cfg *config.Config, dir string) error {
	records, err := repository.NewCSVRecordSource(dir).Load()
	if err != nil {
		return err
	}
	if err := engine.CheckOrdered(records); err != nil {
		return fmt.Errorf("csv source %s: %w", dir, err)
	}

	params := engine.Params{
		BuyThreshold:  cfg.Engine.BuyThreshold,
		SellThreshold: cfg.Engine.SellThreshold,
		ScoreEMAAlpha: cfg.Engine.ScoreEMAAlpha,
		Cooldown:      cfg.Cooldown(),
	}
	alerts, err := engine.RunParallel(params, records)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for i := range alerts {
		if err := enc.Encode(&alerts[i]); err != nil {
			return err
		}
	}
	log.Printf("evaluated %d records into %d alert rows", len(records), len(alerts))
	return nil
}
