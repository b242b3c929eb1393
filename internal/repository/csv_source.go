package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/engine"
)

// ErrMissingColumns reports a CSV source without the columns the alert
// evaluation needs. The caller treats it as fatal for that source.
type ErrMissingColumns struct {
	Path    string
	Missing []string
}

func (e *ErrMissingColumns) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

var requiredCSVColumns = []string{
	"ts", "close", "signal_score", "sma_200", "adx_14", "rsi_14", "bb_low_20", "bb_up_20",
}

// CSVRecordSource reads enriched indicator rows from CSV exports, one file
// per symbol. The symbol is taken from the file name stem unless the file
// carries a symbol column.
type CSVRecordSource struct {
	dir string
}

// NewCSVRecordSource creates a CSV-backed record source rooted at dir.
func NewCSVRecordSource(dir string) *CSVRecordSource {
	return &CSVRecordSource{dir: dir}
}

// Load reads every *.csv file under the source directory.
func (s *CSVRecordSource) Load() ([]engine.Record, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob csv sources: %w", err)
	}
	var out []engine.Record
	for _, p := range paths {
		recs, err := s.LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// LoadFile reads one CSV export into engine records.
func (s *CSVRecordSource) LoadFile(path string) ([]engine.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header %s: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}

	var missing []string
	for _, col := range requiredCSVColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ErrMissingColumns{Path: path, Missing: missing}
	}

	symbol := strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	symbolCol, hasSymbolCol := idx["symbol"]
	fundingCol, hasFunding := idx["funding_rate"]

	var out []engine.Record
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv %s line %d: %w", path, line, err)
		}

		ts, err := parseCSVTime(row[idx["ts"]])
		if err != nil {
			return nil, fmt.Errorf("parse ts %s line %d: %w", path, line, err)
		}

		rec := engine.Record{
			Timestamp:     ts,
			Symbol:        symbol,
			Close:         parseCSVFloat(row[idx["close"]]),
			RawScore:      parseCSVFloat(row[idx["signal_score"]]),
			TrendMA:       parseCSVFloat(row[idx["sma_200"]]),
			TrendStrength: parseCSVFloat(row[idx["adx_14"]]),
			RSI:           parseCSVFloat(row[idx["rsi_14"]]),
			BandLow:       parseCSVFloat(row[idx["bb_low_20"]]),
			BandHigh:      parseCSVFloat(row[idx["bb_up_20"]]),
			FundingRate:   math.NaN(),
		}
		if hasSymbolCol && row[symbolCol] != "" {
			rec.Symbol = strings.ToUpper(strings.TrimSpace(row[symbolCol]))
		}
		if hasFunding {
			rec.FundingRate = parseCSVFloat(row[fundingCol])
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseCSVFloat maps empty and unparseable cells to NaN, which downstream
// treats as "condition not satisfied".
func parseCSVFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// Epoch seconds fallback.
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
