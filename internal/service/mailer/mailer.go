package mailer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string
	To            []string
	SubjectPrefix string
	StateFile     string
}

// Mailer sends digest and status emails over SMTP. A hash of the last sent
// body is kept in a state file so an unchanged digest is not re-sent.
type Mailer struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *logger.Logger
}

// New creates a Mailer.
func New(cfg Config, log *logger.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		log:    log,
	}
}

// SendDigest renders and sends the watchlist/alert digest. Returns true if
// a mail went out, false if the body was unchanged since the last send.
func (m *Mailer) SendDigest(ctx context.Context, watchlist []models.WatchlistEntry, alerts []models.Alert) (bool, error) {
	body := renderDigest(watchlist, alerts)

	hash := bodyHash(body)
	if m.lastHash() == hash {
		m.log.Info("digest unchanged, skipping send")
		return false, nil
	}

	subject := fmt.Sprintf("%s digest: %d watchlist, %d alerts", m.cfg.SubjectPrefix, len(watchlist), countTriggered(alerts))
	if err := m.send(ctx, subject, body); err != nil {
		return false, err
	}
	if err := m.saveHash(hash); err != nil {
		m.log.Warn("persist digest hash", logger.Error(err))
	}
	return true, nil
}

// SendStatus sends a run status mail, used for error aggregation reports.
func (m *Mailer) SendStatus(ctx context.Context, subject, body string) error {
	return m.send(ctx, fmt.Sprintf("%s %s", m.cfg.SubjectPrefix, subject), body)
}

func (m *Mailer) send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) lastHash() string {
	if m.cfg.StateFile == "" {
		return ""
	}
	b, err := os.ReadFile(m.cfg.StateFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (m *Mailer) saveHash(hash string) error {
	if m.cfg.StateFile == "" {
		return nil
	}
	return os.WriteFile(m.cfg.StateFile, []byte(hash+"\n"), 0o644)
}

func bodyHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func countTriggered(alerts []models.Alert) int {
	n := 0
	for i := range alerts {
		if alerts[i].Triggered() {
			n++
		}
	}
	return n
}

func renderDigest(watchlist []models.WatchlistEntry, alerts []models.Alert) string {
	var b strings.Builder

	b.WriteString("Watchlist\n")
	b.WriteString("---------\n")
	if len(watchlist) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, w := range watchlist {
		fmt.Fprintf(&b, "%-10s close=%.4f score=%.1f %s\n", w.Symbol, w.Close, w.SignalScore, w.Reasons)
	}

	b.WriteString("\nAlerts\n")
	b.WriteString("------\n")
	fired := 0
	for i := range alerts {
		a := &alerts[i]
		if !a.Triggered() {
			continue
		}
		fired++
		dir := "BUY"
		if a.SellAlert {
			dir = "SELL"
		}
		fmt.Fprintf(&b, "%s %-4s %-10s close=%.4f score=%.2f conf=%.0f%% [%s]\n",
			a.Timestamp.UTC().Format(time.RFC3339), dir, a.Symbol, a.Close, a.SmoothedScore, a.Confidence, strings.Join(a.Reasons, ", "))
	}
	if fired == 0 {
		b.WriteString("(none)\n")
	}
	return b.String()
}
