package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lingxiaolyu191231/crypto-watcher/pkg/config"
)

func batchConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Engine.BuyThreshold = -2.75
	cfg.Engine.SellThreshold = 0.75
	cfg.Engine.ScoreEMAAlpha = 0.4
	cfg.Engine.CooldownHours = 12
	return cfg
}

func writeCSV(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

const csvHeader = "ts,close,signal_score,sma_200,adx_14,rsi_14,bb_low_20,bb_up_20\n"

func TestRunBatchOrderedFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hype.csv", csvHeader+
		"2025-03-01T00:00:00Z,100,1,95,25,50,98,102\n"+
		"2025-03-01T01:00:00Z,101,2,95,25,50,98,102\n"+
		"2025-03-01T02:00:00Z,102,1,95,25,50,98,102\n")

	if err := runBatch(batchConfig(), dir); err != nil {
		t.Fatalf("ordered file must evaluate cleanly: %v", err)
	}
}

func TestRunBatchRejectsUnorderedFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hype.csv", csvHeader+
		"2025-03-01T02:00:00Z,102,1,95,25,50,98,102\n"+
		"2025-03-01T00:00:00Z,100,1,95,25,50,98,102\n"+
		"2025-03-01T01:00:00Z,101,2,95,25,50,98,102\n")

	if err := runBatch(batchConfig(), dir); err == nil {
		t.Fatalf("out-of-order rows must surface an error, not corrupt state")
	}
}
