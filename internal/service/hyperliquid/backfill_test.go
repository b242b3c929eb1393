package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestBackfillPagesAndParses(t *testing.T) {
	var mu sync.Mutex
	var requests []snapshotRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req snapshotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		var out []wsCandle
		for ms := req.Req.StartTime; ms < req.Req.EndTime; ms += int64(time.Hour / time.Millisecond) {
			out = append(out, wsCandle{
				OpenMS: ms,
				Coin:   req.Req.Coin,
				Interv: req.Req.Interval,
				Open:   "100.0", High: "101.0", Low: "99.0", Close: "100.5",
				Volume: "1234.5",
				Trades: 10,
			})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(700 * time.Hour) // forces two snapshot chunks

	b := NewBackfill(srv.URL, "1h", nil)
	candles, err := b.Backfill(context.Background(), "HYPE", from, to)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("want 2 chunk requests got %d", len(requests))
	}
	for _, req := range requests {
		if req.Type != "candleSnapshot" || req.Req.Coin != "HYPE" || req.Req.Interval != "1h" {
			t.Fatalf("bad request shape: %+v", req)
		}
	}
	if requests[0].Req.StartTime != from.UnixMilli() {
		t.Fatalf("first chunk must start at from")
	}
	if requests[1].Req.StartTime != requests[0].Req.EndTime {
		t.Fatalf("second chunk must resume at the first chunk's end")
	}

	if len(candles) != 700 {
		t.Fatalf("want 700 candles got %d", len(candles))
	}
	first := candles[0]
	if !first.Bucket.Equal(from) || first.Symbol != "HYPE" || first.Close != 100.5 || first.Volume != 1234.5 {
		t.Fatalf("unexpected first candle %+v", first)
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Bucket.After(candles[i-1].Bucket) {
			t.Fatalf("buckets must strictly ascend at %d", i)
		}
	}
}

func TestBackfillSkipsOverlappingBuckets(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always answer with the same single candle at `from`, simulating a
		// chunk-edge repeat.
		out := []wsCandle{{
			OpenMS: from.UnixMilli(),
			Coin:   "HYPE",
			Open:   "1", High: "1", Low: "1", Close: "1", Volume: "1",
		}}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	b := NewBackfill(srv.URL, "1h", nil)
	candles, err := b.Backfill(context.Background(), "HYPE", from, from.Add(600*time.Hour))
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("repeated bucket must be deduplicated, got %d", len(candles))
	}
}

func TestBackfillEmptyRange(t *testing.T) {
	b := NewBackfill("http://unused.invalid", "1h", nil)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candles, err := b.Backfill(context.Background(), "HYPE", from, from)
	if err != nil {
		t.Fatalf("empty range must not call the venue: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("want no candles got %d", len(candles))
	}
}

func TestBackfillSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewBackfill(srv.URL, "1h", nil)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := b.Backfill(context.Background(), "HYPE", from, from.Add(time.Hour)); err == nil {
		t.Fatalf("non-2xx must error")
	}
}

func TestCandleStringFieldsParse(t *testing.T) {
	wc := wsCandle{OpenMS: 1740787200000, Coin: "HYPE", Open: "25.1", High: "25.9", Low: "24.8", Close: "25.5", Volume: "100.25", Trades: 42}
	c, err := wc.toModel()
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	if c.Symbol != "HYPE" || c.Open != 25.1 || c.High != 25.9 || c.Low != 24.8 || c.Close != 25.5 || c.Volume != 100.25 || c.TradesCount != 42 {
		t.Fatalf("unexpected candle %+v", c)
	}
	if c.Bucket.Location() != time.UTC {
		t.Fatalf("bucket must be UTC")
	}

	wc.Close = "not-a-price"
	if _, err := wc.toModel(); err == nil {
		t.Fatalf("bad price must error")
	}
}
