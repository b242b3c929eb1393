package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	xhttp "github.com/lingxiaolyu191231/crypto-watcher/pkg/http"
)

const (
	defaultCandleLimit = 10000
	maxCandleLimit     = 50000
)

// CandlesUseCase provides business logic for retrieving candles.
type CandlesUseCase struct {
	store domrepo.CandleStore
}

func NewCandlesUseCase(store domrepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

func (p *GetCandlesParams) validate() error {
	if p.Symbol == "" {
		return xhttp.BadRequestError("symbol required")
	}
	if p.From.After(p.To) {
		return xhttp.BadRequestError("from must be <= to")
	}
	return nil
}

func (p *GetCandlesParams) limit() int {
	switch {
	case p.Limit <= 0:
		return defaultCandleLimit
	case p.Limit > maxCandleLimit:
		return maxCandleLimit
	}
	return p.Limit
}

type GetCandlesResult struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Count     int
	Candles   []models.Candle
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	candles, err := uc.store.GetCandles(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if limit := p.limit(); len(candles) > limit {
		candles = candles[:limit]
	}

	return &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}

// GetLatest returns the newest n candles in ascending bucket order.
func (uc *CandlesUseCase) GetLatest(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if symbol == "" {
		return nil, xhttp.BadRequestError("symbol required")
	}
	if n <= 0 {
		n = 200
	}
	return uc.store.GetLatestNCandles(ctx, symbol, n, tf)
}
