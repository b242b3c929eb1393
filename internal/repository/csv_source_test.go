package repository

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

const csvHeader = "ts,close,signal_score,sma_200,adx_14,rsi_14,bb_low_20,bb_up_20"

func TestCSVSourceLoadsFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hype.csv", csvHeader+"\n"+
		"2025-03-01T00:00:00Z,25.5,-3.0,26.0,22.0,31.0,24.0,28.0\n"+
		"2025-03-01T01:00:00Z,25.8,-2.5,26.0,22.0,33.0,24.0,28.0\n")

	recs, err := NewCSVRecordSource(dir).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records got %d", len(recs))
	}
	r := recs[0]
	if r.Symbol != "HYPE" {
		t.Fatalf("symbol from file stem must be uppercased, got %q", r.Symbol)
	}
	if r.Close != 25.5 || r.RawScore != -3.0 || r.RSI != 31.0 {
		t.Fatalf("unexpected record %+v", r)
	}
	if !math.IsNaN(r.FundingRate) {
		t.Fatalf("funding must default to NaN")
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Fatalf("want ts %s got %s", want, r.Timestamp)
	}
}

func TestCSVSourceMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "hype.csv", "ts,close\n2025-03-01,1.0\n")

	_, err := NewCSVRecordSource(dir).LoadFile(path)
	var missing *ErrMissingColumns
	if !errors.As(err, &missing) {
		t.Fatalf("want ErrMissingColumns, got %v", err)
	}
	if len(missing.Missing) != 6 {
		t.Fatalf("want 6 missing columns, got %v", missing.Missing)
	}
}

func TestCSVSourceRequiresLongTrendMA(t *testing.T) {
	dir := t.TempDir()
	// sma_50 is not a substitute for the regime MA.
	path := writeCSV(t, dir, "hype.csv",
		"ts,close,signal_score,sma_50,adx_14,rsi_14,bb_low_20,bb_up_20\n"+
			"2025-03-01T00:00:00Z,100,1,90,10,50,98,102\n")

	_, err := NewCSVRecordSource(dir).LoadFile(path)
	var missing *ErrMissingColumns
	if !errors.As(err, &missing) {
		t.Fatalf("want ErrMissingColumns, got %v", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "sma_200" {
		t.Fatalf("want missing [sma_200], got %v", missing.Missing)
	}
}

func TestCSVSourceTrendMAFromSMA200(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "hype.csv", csvHeader+",sma_50\n"+
		"2025-03-01T00:00:00Z,100,1,120,10,50,98,102,90\n")

	recs, err := NewCSVRecordSource(dir).LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recs[0].TrendMA != 120 {
		t.Fatalf("trend MA must come from sma_200 (120), got %v", recs[0].TrendMA)
	}
}

func TestCSVSourceEmptyCellsAreNaN(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "btc.csv", csvHeader+"\n"+
		"2025-03-01 12:00:00,100.0,1.5,,,not-a-number,,\n")

	recs, err := NewCSVRecordSource(dir).LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := recs[0]
	for name, v := range map[string]float64{
		"sma_200": r.TrendMA, "adx_14": r.TrendStrength, "rsi_14": r.RSI,
		"bb_low_20": r.BandLow, "bb_up_20": r.BandHigh,
	} {
		if !math.IsNaN(v) {
			t.Fatalf("%s: empty/bad cell must parse to NaN, got %v", name, v)
		}
	}
}

func TestCSVSourceSymbolColumnOverridesFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "export.csv", csvHeader+",symbol\n"+
		"2025-03-01,1.0,0,0,0,50,0,1,eth\n")

	recs, err := NewCSVRecordSource(dir).LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recs[0].Symbol != "ETH" {
		t.Fatalf("symbol column must win over file stem, got %q", recs[0].Symbol)
	}
}

func TestCSVSourceFundingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "hype.csv", csvHeader+",funding_rate\n"+
		"1740787200,1.0,0,0,0,50,0,1,-0.0001\n")

	recs, err := NewCSVRecordSource(dir).LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recs[0].FundingRate != -0.0001 {
		t.Fatalf("want funding -0.0001 got %v", recs[0].FundingRate)
	}
	// Epoch-seconds timestamps are accepted too.
	if recs[0].Timestamp.Year() != 2025 {
		t.Fatalf("epoch ts parsed wrong: %s", recs[0].Timestamp)
	}
}

func TestCSVSourceBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "hype.csv", csvHeader+"\nyesterday,1.0,0,0,0,50,0,1\n")

	if _, err := NewCSVRecordSource(dir).LoadFile(path); err == nil {
		t.Fatalf("unparseable timestamp must error")
	}
}
