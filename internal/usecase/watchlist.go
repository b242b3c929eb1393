package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	xhttp "github.com/lingxiaolyu191231/crypto-watcher/pkg/http"
)

// WatchlistFilter selects indicator rows worth a second look: a composite
// score past the floor, or a cross event on the period.
type WatchlistFilter struct {
	ScoreMin     float64
	BearOK       bool
	IncludeRSI   bool
	IncludeTrend bool
}

// WatchlistUseCase builds the watchlist from stored indicator rows.
type WatchlistUseCase struct {
	rows   domrepo.IndicatorStore
	filter WatchlistFilter
}

func NewWatchlistUseCase(rows domrepo.IndicatorStore, filter WatchlistFilter) *WatchlistUseCase {
	return &WatchlistUseCase{rows: rows, filter: filter}
}

type GetWatchlistParams struct {
	Symbol    string
	N         int
	Timeframe domrepo.Timeframe
	Limit     int
}

// GetWatchlist filters the newest N rows of one symbol.
func (uc *WatchlistUseCase) GetWatchlist(ctx context.Context, p GetWatchlistParams) ([]models.WatchlistEntry, error) {
	if p.Symbol == "" {
		return nil, xhttp.BadRequestError("symbol required")
	}
	if p.N <= 0 {
		p.N = 500
	}
	rows, err := uc.rows.GetRows(ctx, p.Symbol, p.N, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get rows: %w", err)
	}

	entries := uc.Filter(rows)
	if p.Limit > 0 && len(entries) > p.Limit {
		// keep newest
		entries = entries[len(entries)-p.Limit:]
	}
	return entries, nil
}

// Latest returns the watchlist built from only the newest row per symbol,
// for digest delivery.
func (uc *WatchlistUseCase) Latest(ctx context.Context, symbols []string, tf domrepo.Timeframe) ([]models.WatchlistEntry, error) {
	var latest []models.IndicatorRow
	for _, sym := range symbols {
		rows, err := uc.rows.GetRows(ctx, sym, 1, tf)
		if err != nil {
			return nil, fmt.Errorf("get rows %s: %w", sym, err)
		}
		if len(rows) > 0 {
			latest = append(latest, rows[len(rows)-1])
		}
	}
	entries := uc.Filter(latest)
	sort.Slice(entries, func(i, j int) bool { return entries[i].SignalScore > entries[j].SignalScore })
	return entries, nil
}

// Filter applies the watchlist criteria to enriched rows.
func (uc *WatchlistUseCase) Filter(rows []models.IndicatorRow) []models.WatchlistEntry {
	var out []models.WatchlistEntry
	for i := range rows {
		r := &rows[i]
		if !uc.include(r) {
			continue
		}
		out = append(out, models.WatchlistEntry{
			Bucket:      r.Bucket,
			Symbol:      r.Symbol,
			Close:       r.Close,
			Volume:      r.Volume,
			SignalScore: r.SignalScore,
			RSI14:       r.RSI14,
			BBPercentB:  r.BBPercentB,
			Reasons:     strings.Join(uc.reasons(r), ","),
		})
	}
	return out
}

// include decides membership. The bull side always counts score and the
// bullish events; the whole bear side is gated on BearOK. IncludeTrend is
// a mask on top: only trending rows survive it.
func (uc *WatchlistUseCase) include(r *models.IndicatorRow) bool {
	f := uc.filter

	bull := r.SignalScore >= f.ScoreMin || r.MACDBullCross || r.BBBreakoutUp
	if f.IncludeRSI {
		bull = bull || r.RSIOversold
	}

	bear := false
	if f.BearOK {
		bear = r.SignalScore <= -f.ScoreMin || r.MACDBearCross || r.BBBreakoutDown
		if f.IncludeRSI {
			bear = bear || r.RSIOverbought
		}
	}

	if !bull && !bear {
		return false
	}
	if f.IncludeTrend {
		return r.TrendUp || (r.TrendDown && f.BearOK)
	}
	return true
}

// reasons annotates an included row. Bearish tags only appear when the
// bear side is enabled; RSI state is always reported as context.
func (uc *WatchlistUseCase) reasons(r *models.IndicatorRow) []string {
	f := uc.filter
	var reasons []string

	if r.SignalScore >= f.ScoreMin {
		reasons = append(reasons, fmt.Sprintf("score>=%.1f", f.ScoreMin))
	} else if f.BearOK && r.SignalScore <= -f.ScoreMin {
		reasons = append(reasons, fmt.Sprintf("score<=%.1f", -f.ScoreMin))
	}

	if r.MACDBullCross {
		reasons = append(reasons, "macd_bull_cross")
	}
	if r.BBBreakoutUp {
		reasons = append(reasons, "bb_breakout_up")
	}
	if r.GoldenCross {
		reasons = append(reasons, "golden_cross")
	}
	if r.TrendUp {
		reasons = append(reasons, "trend_up")
	}
	if r.AboveVWAP24h {
		reasons = append(reasons, "above_vwap24h")
	}

	if f.BearOK {
		if r.MACDBearCross {
			reasons = append(reasons, "macd_bear_cross")
		}
		if r.BBBreakoutDown {
			reasons = append(reasons, "bb_breakout_down")
		}
		if r.DeathCross {
			reasons = append(reasons, "death_cross")
		}
		if r.TrendDown {
			reasons = append(reasons, "trend_down")
		}
		if r.BelowVWAP24h {
			reasons = append(reasons, "below_vwap24h")
		}
	}

	if r.RSIOverbought {
		reasons = append(reasons, "rsi_overbought")
	}
	if r.RSIOversold {
		reasons = append(reasons, "rsi_oversold")
	}
	return reasons
}
