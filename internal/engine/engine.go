package engine

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
)

// Reason tags enumerate the individual sub-conditions behind an alert. They
// are emitted whenever the owning trigger fired, before deduplication, so a
// suppressed alert still explains itself.
const (
	ReasonBuyCore     = "score<=buy_thr & bull regime"
	ReasonRSIOversold = "rsi<=35"
	ReasonBandLow     = "bb%b<=0.10"
	ReasonFundingNeg  = "funding<0"
	ReasonSellCore    = "score>=sell_thr"
	ReasonRSIOverbought = "rsi>=70"
	ReasonBandHigh    = "bb%b>=0.90"
	ReasonCooldown    = "cooldown"
)

// Engine derives buy/sell alerts from per-symbol indicator records in a
// single forward pass. It owns one SymbolState per symbol, created lazily;
// records for a symbol must arrive in strictly increasing timestamp order.
// The engine is deterministic: re-running over the same ordered input
// reproduces identical alerts.
type Engine struct {
	params Params
	states map[string]*SymbolState
}

// New builds an engine, rejecting invalid params up front.
func New(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params, states: make(map[string]*SymbolState)}, nil
}

// Params returns the engine configuration.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) state(symbol string) *SymbolState {
	st, ok := e.states[symbol]
	if !ok {
		st = &SymbolState{}
		e.states[symbol] = st
	}
	return st
}

// Snapshot copies the per-symbol state, for hosts persisting it externally.
func (e *Engine) Snapshot() map[string]SymbolState {
	out := make(map[string]SymbolState, len(e.states))
	for sym, st := range e.states {
		out[sym] = *st
	}
	return out
}

// Restore seeds per-symbol state from a previous Snapshot.
func (e *Engine) Restore(states map[string]SymbolState) {
	for sym, st := range states {
		cp := st
		e.states[sym] = &cp
	}
}

// Process evaluates one record and returns the resulting alert row. It is
// not safe for concurrent use; shard by symbol instead (see RunParallel).
func (e *Engine) Process(rec Record) models.Alert {
	st := e.state(rec.Symbol)
	smoothed := st.smooth(rec.RawScore, e.params.ScoreEMAAlpha)

	bull := BullRegime(rec.Close, rec.TrendMA, rec.TrendStrength)
	band, bandOK := BandPosition(rec.Close, rec.BandLow, rec.BandHigh)

	rsiOversold := !math.IsNaN(rec.RSI) && rec.RSI <= rsiOversoldMax
	rsiOverbought := !math.IsNaN(rec.RSI) && rec.RSI >= rsiOverboughtMin
	bandLow := bandOK && band <= bandLowMax
	bandHigh := bandOK && band >= bandHighMin
	fundingNeg := !math.IsNaN(rec.FundingRate) && rec.FundingRate < 0

	// The score thresholds make the two cores mutually exclusive: buy needs
	// smoothed <= buy_thr and sell needs smoothed >= sell_thr > buy_thr.
	buyTrigger := smoothed <= e.params.BuyThreshold && bull && (rsiOversold || bandLow)
	sellTrigger := smoothed >= e.params.SellThreshold && (rsiOverbought || bandHigh)

	reasons := make([]string, 0, 4)
	if buyTrigger {
		reasons = append(reasons, ReasonBuyCore)
		if rsiOversold {
			reasons = append(reasons, ReasonRSIOversold)
		}
		if bandLow {
			reasons = append(reasons, ReasonBandLow)
		}
		if fundingNeg {
			reasons = append(reasons, ReasonFundingNeg)
		}
	}
	if sellTrigger {
		reasons = append(reasons, ReasonSellCore)
		if rsiOverbought {
			reasons = append(reasons, ReasonRSIOverbought)
		}
		if bandHigh {
			reasons = append(reasons, ReasonBandHigh)
		}
	}

	// Confidence is computed for every row, even suppressed ones, so callers
	// can audit near-misses. The secondary term always counts the
	// oversold-side sub-conditions, also on the sell path; that asymmetry is
	// intentional-looking in the source rules and preserved as-is.
	conf := e.confidence(smoothed, rsiOversold, bandLow)

	buyAllowed := st.allow(Buy, rec.Timestamp, buyTrigger, e.params.Cooldown)
	sellAllowed := st.allow(Sell, rec.Timestamp, sellTrigger, e.params.Cooldown)
	if (buyTrigger && !buyAllowed) || (sellTrigger && !sellAllowed) {
		reasons = append(reasons, ReasonCooldown)
	}

	a := models.Alert{
		Timestamp:     rec.Timestamp,
		Symbol:        rec.Symbol,
		Close:         rec.Close,
		RawScore:      rec.RawScore,
		SmoothedScore: smoothed,
		RSI:           rec.RSI,
		BullRegime:    bull,
		BuyAlert:      buyAllowed,
		SellAlert:     sellAllowed,
		Confidence:    conf,
		Reasons:       reasons,
	}
	if bandOK {
		b := band
		a.BandPosition = &b
	}
	if !math.IsNaN(rec.FundingRate) {
		bps := rec.FundingRate * 10000.0
		a.FundingBps = &bps
	}
	return a
}

func (e *Engine) confidence(smoothed float64, rsiOversold, bandLow bool) float64 {
	prox := clamp01((e.params.SellThreshold - smoothed) / (e.params.SellThreshold - e.params.BuyThreshold))
	n := 0.0
	if rsiOversold {
		n++
	}
	if bandLow {
		n++
	}
	return (prox*proximityWeight + (n/secondaryDiv)*secondaryWeight) * 100.0
}

// Run processes records in order, one alert per record. Input must already
// be sorted by (symbol, timestamp); only per-symbol ordering affects the
// result, but the output preserves input order.
func (e *Engine) Run(records []Record) []models.Alert {
	out := make([]models.Alert, 0, len(records))
	for _, rec := range records {
		out = append(out, e.Process(rec))
	}
	return out
}

// RunParallel fans processing out across symbols, one lane per symbol, and
// merges the lane outputs sorted by (symbol, timestamp). Lanes share no
// state, so the result equals a sequential Run over sorted input.
func RunParallel(params Params, records []Record) ([]models.Alert, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	bySymbol := make(map[string][]Record)
	for _, rec := range records {
		bySymbol[rec.Symbol] = append(bySymbol[rec.Symbol], rec)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	out := make([]models.Alert, 0, len(records))
	for sym, lane := range bySymbol {
		wg.Add(1)
		go func(sym string, lane []Record) {
			defer wg.Done()
			eng := &Engine{params: params, states: make(map[string]*SymbolState)}
			alerts := eng.Run(lane)
			mu.Lock()
			out = append(out, alerts...)
			mu.Unlock()
		}(sym, lane)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// CheckOrdered verifies strictly increasing timestamps per symbol,
// returning the first violation. Upstream validates this already; the check
// exists for file-based inputs that bypass the store.
func CheckOrdered(records []Record) error {
	last := make(map[string]Record, 8)
	for i, rec := range records {
		if prev, ok := last[rec.Symbol]; ok && !rec.Timestamp.After(prev.Timestamp) {
			return fmt.Errorf("record %d: %s timestamp %s not after %s",
				i, rec.Symbol, rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"), prev.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
		last[rec.Symbol] = rec
	}
	return nil
}
