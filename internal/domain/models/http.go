package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type AlertsRequest struct {
	Symbol        string  `query:"symbol" json:"symbol" validate:"required"`
	N             int     `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
	TF            string  `query:"tf" json:"tf" default:"1h" validate:"oneof=1h 4h 1d"`
	OnlyTriggered bool    `query:"only_triggered" json:"only_triggered"`
	MinConfidence float64 `query:"min_confidence" json:"min_confidence" validate:"gte=0,lte=100"`
}

type WatchlistRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"500" validate:"gte=1,lte=5000"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=1h 4h 1d"`
	Limit  int    `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=1000"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=1h 4h 1d"`
}
