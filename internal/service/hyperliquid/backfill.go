package hyperliquid

import (
	"context"
	"fmt"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	drepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	xhttp "github.com/lingxiaolyu191231/crypto-watcher/pkg/http"
)

// The venue serves at most this many candles per snapshot request.
const snapshotChunk = 500

// Backfill loads historical candles through the info endpoint's
// candleSnapshot request, paging forward in chunks until the range is
// covered.
type Backfill struct {
	infoURL  string
	interval string
	client   *xhttp.Client
}

// NewBackfill creates a REST backfiller for one interval.
func NewBackfill(infoURL, interval string, client *xhttp.Client) drepo.Backfiller {
	if client == nil {
		client = xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
	}
	return &Backfill{infoURL: infoURL, interval: interval, client: client}
}

type snapshotRequest struct {
	Type string      `json:"type"`
	Req  snapshotReq `json:"req"`
}

type snapshotReq struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

func (b *Backfill) Backfill(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	step := intervalDuration(b.interval)
	var out []models.Candle
	cursor := from

	for cursor.Before(to) {
		chunkEnd := cursor.Add(step * snapshotChunk)
		if chunkEnd.After(to) {
			chunkEnd = to
		}

		var raw []wsCandle
		err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    b.infoURL,
			Body: snapshotRequest{
				Type: "candleSnapshot",
				Req: snapshotReq{
					Coin:      symbol,
					Interval:  b.interval,
					StartTime: cursor.UnixMilli(),
					EndTime:   chunkEnd.UnixMilli(),
				},
			},
		}, &raw)
		if err != nil {
			return nil, fmt.Errorf("candle snapshot %s [%s, %s): %w", symbol, cursor.Format(time.RFC3339), chunkEnd.Format(time.RFC3339), err)
		}

		for _, wc := range raw {
			c, err := wc.toModel()
			if err != nil {
				continue
			}
			// Snapshot ranges overlap at chunk edges; skip repeats.
			if len(out) > 0 && !c.Bucket.After(out[len(out)-1].Bucket) {
				continue
			}
			out = append(out, *c)
		}

		if len(raw) == 0 {
			// Empty chunk means no data in this range; keep paging.
			cursor = chunkEnd
			continue
		}
		cursor = chunkEnd
	}
	return out, nil
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
