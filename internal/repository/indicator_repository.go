package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
)

// IndicatorTable maps a timeframe to its indicator table.
func IndicatorTable(tf repository.Timeframe) string {
	return fmt.Sprintf("cryptowatcher.indicators_%s", tf)
}

// AlertTable maps a timeframe to its alert table.
func AlertTable(tf repository.Timeframe) string {
	return fmt.Sprintf("cryptowatcher.alerts_%s", tf)
}

var indicatorColumns = []string{
	"bucket", "symbol",
	"open", "high", "low", "close", "volume",
	"sma_10", "sma_20", "sma_50", "sma_200", "ema_12", "ema_26",
	"rsi_14", "macd", "macd_signal", "macd_hist",
	"bb_mid_20", "bb_up_20", "bb_low_20", "bb_std_20", "bb_pct_b",
	"atr_14", "adx_14", "obv", "vwap_24h", "vwap_72h",
	"ret_1h", "ret_24h", "zscore_24h", "funding_rate",
	"macd_bull_cross", "macd_bear_cross", "rsi_overbought", "rsi_oversold",
	"bb_breakout_up", "bb_breakout_down", "golden_cross", "death_cross",
	"trend_up", "trend_down", "above_vwap_24h", "below_vwap_24h", "atr_rising",
	"signal_score",
}

// ClickHouseIndicatorStore implements IndicatorStore on per-timeframe tables.
type ClickHouseIndicatorStore struct {
	db *sql.DB
	tf repository.Timeframe
}

// NewClickHouseIndicatorStore creates indicator storage for one timeframe.
func NewClickHouseIndicatorStore(db *sql.DB, tf repository.Timeframe) repository.IndicatorStore {
	return &ClickHouseIndicatorStore{db: db, tf: tf}
}

func (s *ClickHouseIndicatorStore) StoreRows(ctx context.Context, rows []models.IndicatorRow) error {
	if len(rows) == 0 {
		return nil
	}
	const chunkSize = 1000
	cols := strings.Join(indicatorColumns, ", ")
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(indicatorColumns))
		for _, r := range rows[start:end] {
			values = append(values, "("+strings.TrimSuffix(strings.Repeat("?, ", len(indicatorColumns)), ", ")+")")
			args = append(args,
				r.Bucket, r.Symbol,
				r.Open, r.High, r.Low, r.Close, r.Volume,
				nanNull(r.SMA10), nanNull(r.SMA20), nanNull(r.SMA50), nanNull(r.SMA200), nanNull(r.EMA12), nanNull(r.EMA26),
				nanNull(r.RSI14), nanNull(r.MACD), nanNull(r.MACDSignal), nanNull(r.MACDHist),
				nanNull(r.BBMid20), nanNull(r.BBUp20), nanNull(r.BBLow20), nanNull(r.BBStd20), nanNull(r.BBPercentB),
				nanNull(r.ATR14), nanNull(r.ADX14), nanNull(r.OBV), nanNull(r.VWAP24h), nanNull(r.VWAP72h),
				nanNull(r.Ret1h), nanNull(r.Ret24h), nanNull(r.ZScore24h), nanNull(r.FundingRate),
				r.MACDBullCross, r.MACDBearCross, r.RSIOverbought, r.RSIOversold,
				r.BBBreakoutUp, r.BBBreakoutDown, r.GoldenCross, r.DeathCross,
				r.TrendUp, r.TrendDown, r.AboveVWAP24h, r.BelowVWAP24h, r.ATRRising,
				r.SignalScore,
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", IndicatorTable(s.tf), cols, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseIndicatorStore) GetRows(ctx context.Context, symbol string, n int, tf repository.Timeframe) ([]models.IndicatorRow, error) {
	cols := strings.Join(indicatorColumns, ", ")
	q := fmt.Sprintf("SELECT %s FROM (SELECT %s FROM %s FINAL WHERE symbol = ? ORDER BY bucket DESC LIMIT ?) ORDER BY bucket ASC", cols, cols, IndicatorTable(tf))
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IndicatorRow
	for rows.Next() {
		var r models.IndicatorRow
		var (
			sma10, sma20, sma50, sma200, ema12, ema26              sql.NullFloat64
			rsi14, macd, macdSignal, macdHist                      sql.NullFloat64
			bbMid, bbUp, bbLow, bbStd, bbPctB                      sql.NullFloat64
			atr14, adx14, obv, vwap24, vwap72                      sql.NullFloat64
			ret1h, ret24h, zscore24h, funding                      sql.NullFloat64
		)
		if err := rows.Scan(
			&r.Bucket, &r.Symbol,
			&r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
			&sma10, &sma20, &sma50, &sma200, &ema12, &ema26,
			&rsi14, &macd, &macdSignal, &macdHist,
			&bbMid, &bbUp, &bbLow, &bbStd, &bbPctB,
			&atr14, &adx14, &obv, &vwap24, &vwap72,
			&ret1h, &ret24h, &zscore24h, &funding,
			&r.MACDBullCross, &r.MACDBearCross, &r.RSIOverbought, &r.RSIOversold,
			&r.BBBreakoutUp, &r.BBBreakoutDown, &r.GoldenCross, &r.DeathCross,
			&r.TrendUp, &r.TrendDown, &r.AboveVWAP24h, &r.BelowVWAP24h, &r.ATRRising,
			&r.SignalScore,
		); err != nil {
			return nil, err
		}
		r.SMA10, r.SMA20, r.SMA50, r.SMA200 = nullNaN(sma10), nullNaN(sma20), nullNaN(sma50), nullNaN(sma200)
		r.EMA12, r.EMA26 = nullNaN(ema12), nullNaN(ema26)
		r.RSI14, r.MACD, r.MACDSignal, r.MACDHist = nullNaN(rsi14), nullNaN(macd), nullNaN(macdSignal), nullNaN(macdHist)
		r.BBMid20, r.BBUp20, r.BBLow20, r.BBStd20, r.BBPercentB = nullNaN(bbMid), nullNaN(bbUp), nullNaN(bbLow), nullNaN(bbStd), nullNaN(bbPctB)
		r.ATR14, r.ADX14, r.OBV, r.VWAP24h, r.VWAP72h = nullNaN(atr14), nullNaN(adx14), nullNaN(obv), nullNaN(vwap24), nullNaN(vwap72)
		r.Ret1h, r.Ret24h, r.ZScore24h, r.FundingRate = nullNaN(ret1h), nullNaN(ret24h), nullNaN(zscore24h), nullNaN(funding)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClickHouseAlertStore implements AlertStore on per-timeframe tables.
type ClickHouseAlertStore struct {
	db *sql.DB
	tf repository.Timeframe
}

// NewClickHouseAlertStore creates alert storage for one timeframe.
func NewClickHouseAlertStore(db *sql.DB, tf repository.Timeframe) repository.AlertStore {
	return &ClickHouseAlertStore{db: db, tf: tf}
}

func (s *ClickHouseAlertStore) StoreAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(alerts); start += chunkSize {
		end := start + chunkSize
		if end > len(alerts) {
			end = len(alerts)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*13)
		for _, a := range alerts[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				a.Timestamp, a.Symbol, a.Close,
				nanNull(a.RawScore), nanNull(a.SmoothedScore), nanNull(a.RSI),
				ptrNull(a.BandPosition), ptrNull(a.FundingBps),
				a.BullRegime, a.BuyAlert, a.SellAlert,
				a.Confidence, strings.Join(a.Reasons, ","),
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, close, signal_score, score_smooth, rsi_14, bb_pct_b, funding_bps, bull_regime, buy_alert, sell_alert, alert_confidence, alert_reasons) VALUES %s",
			AlertTable(s.tf), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseAlertStore) GetAlerts(ctx context.Context, symbol string, n int, tf repository.Timeframe) ([]models.Alert, error) {
	where := ""
	qargs := []interface{}{}
	if symbol != "" {
		where = "WHERE symbol = ?"
		qargs = append(qargs, symbol)
	}
	qargs = append(qargs, n)
	q := fmt.Sprintf("SELECT ts, symbol, close, signal_score, score_smooth, rsi_14, bb_pct_b, funding_bps, bull_regime, buy_alert, sell_alert, alert_confidence, alert_reasons FROM (SELECT * FROM %s FINAL %s ORDER BY ts DESC LIMIT ?) ORDER BY ts ASC",
		AlertTable(tf), where)
	rows, err := s.db.QueryContext(ctx, q, qargs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		var rawScore, scoreSmooth, rsi, bandPos, fundingBps sql.NullFloat64
		var reasons string
		if err := rows.Scan(
			&a.Timestamp, &a.Symbol, &a.Close,
			&rawScore, &scoreSmooth, &rsi, &bandPos, &fundingBps,
			&a.BullRegime, &a.BuyAlert, &a.SellAlert,
			&a.Confidence, &reasons,
		); err != nil {
			return nil, err
		}
		a.RawScore, a.SmoothedScore, a.RSI = nullNaN(rawScore), nullNaN(scoreSmooth), nullNaN(rsi)
		if bandPos.Valid {
			v := bandPos.Float64
			a.BandPosition = &v
		}
		if fundingBps.Valid {
			v := fundingBps.Float64
			a.FundingBps = &v
		}
		if reasons != "" {
			a.Reasons = strings.Split(reasons, ",")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// nanNull maps NaN to SQL NULL so Nullable(Float64) columns stay queryable.
func nanNull(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func ptrNull(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
