package usecase

import (
	"context"
	"fmt"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	xhttp "github.com/lingxiaolyu191231/crypto-watcher/pkg/http"
)

// AlertsUseCase serves stored alert rows.
type AlertsUseCase struct {
	store domrepo.AlertStore
}

func NewAlertsUseCase(store domrepo.AlertStore) *AlertsUseCase {
	return &AlertsUseCase{store: store}
}

type GetAlertsParams struct {
	Symbol        string
	N             int
	Timeframe     domrepo.Timeframe
	OnlyTriggered bool
	MinConfidence float64
}

func (uc *AlertsUseCase) GetAlerts(ctx context.Context, p GetAlertsParams) ([]models.Alert, error) {
	if p.Symbol == "" {
		return nil, xhttp.BadRequestError("symbol required")
	}
	if p.N <= 0 {
		p.N = 200
	}
	alerts, err := uc.store.GetAlerts(ctx, p.Symbol, p.N, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get alerts: %w", err)
	}
	if !p.OnlyTriggered && p.MinConfidence <= 0 {
		return alerts, nil
	}

	out := alerts[:0]
	for i := range alerts {
		a := alerts[i]
		if p.OnlyTriggered && !a.Triggered() {
			continue
		}
		if a.Confidence < p.MinConfidence {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
