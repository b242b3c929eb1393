package mailer

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
)

func TestRenderDigestEmpty(t *testing.T) {
	body := renderDigest(nil, nil)
	if !strings.Contains(body, "(empty)") || !strings.Contains(body, "(none)") {
		t.Fatalf("empty digest must mark both sections: %q", body)
	}
}

func TestRenderDigestSections(t *testing.T) {
	watchlist := []models.WatchlistEntry{
		{Symbol: "HYPE", Close: 25.5, SignalScore: 3, Reasons: "score>=2.0,macd_bull_cross"},
	}
	alerts := []models.Alert{
		{
			Timestamp:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			Symbol:        "HYPE",
			Close:         25.5,
			SmoothedScore: -2.9,
			BuyAlert:      true,
			Confidence:    62,
			Reasons:       []string{"score<=buy_thr&bull", "rsi<=35"},
		},
		{Symbol: "BTC", SellAlert: false, BuyAlert: false},
	}
	body := renderDigest(watchlist, alerts)
	if !strings.Contains(body, "HYPE") || !strings.Contains(body, "macd_bull_cross") {
		t.Fatalf("watchlist entry missing: %q", body)
	}
	if !strings.Contains(body, "BUY") || !strings.Contains(body, "conf=62%") {
		t.Fatalf("fired alert missing: %q", body)
	}
	if strings.Contains(body, "BTC") {
		t.Fatalf("untriggered rows must not appear: %q", body)
	}
}

func TestRenderDigestSellDirection(t *testing.T) {
	alerts := []models.Alert{{Symbol: "ETH", SellAlert: true, Timestamp: time.Now()}}
	if body := renderDigest(nil, alerts); !strings.Contains(body, "SELL") {
		t.Fatalf("sell alert must render SELL: %q", body)
	}
}

func TestCountTriggered(t *testing.T) {
	alerts := []models.Alert{
		{BuyAlert: true},
		{SellAlert: true},
		{},
	}
	if got := countTriggered(alerts); got != 2 {
		t.Fatalf("want 2 got %d", got)
	}
}

func TestBodyHashStable(t *testing.T) {
	if bodyHash("a") != bodyHash("a") {
		t.Fatalf("hash must be deterministic")
	}
	if bodyHash("a") == bodyHash("b") {
		t.Fatalf("different bodies must hash differently")
	}
}

func TestHashStateRoundTrip(t *testing.T) {
	m := New(Config{StateFile: filepath.Join(t.TempDir(), "digest.hash")}, nil)
	if got := m.lastHash(); got != "" {
		t.Fatalf("missing state file must read empty, got %q", got)
	}
	h := bodyHash("digest body")
	if err := m.saveHash(h); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := m.lastHash(); got != h {
		t.Fatalf("want %q got %q", h, got)
	}
}

func TestHashStateDisabled(t *testing.T) {
	m := New(Config{}, nil)
	if err := m.saveHash("x"); err != nil {
		t.Fatalf("no state file configured must be a no-op, got %v", err)
	}
	if got := m.lastHash(); got != "" {
		t.Fatalf("want empty got %q", got)
	}
}
