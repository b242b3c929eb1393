package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	drepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by the Hyperliquid WebSocket.
// One candle event arrives per update of the current bucket; downstream
// dedup keeps the last write per bucket.
type Client struct {
	websocketURL   string
	coins          []string
	interval       string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new Hyperliquid MarketStream.
func New(websocketURL string, coins []string, interval string, reconnectDelay, pingInterval time.Duration) drepo.MarketStream {
	return &Client{
		websocketURL:   websocketURL,
		coins:          coins,
		interval:       interval,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("hyperliquid connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("hyperliquid: connected")
	return nil
}

// Subscribe subscribes to the candle channel for every configured coin.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("hyperliquid not connected")
	}
	for _, coin := range c.coins {
		msg := map[string]interface{}{
			"method": "subscribe",
			"subscription": map[string]string{
				"type":     "candle",
				"coin":     coin,
				"interval": c.interval,
			},
		}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", coin, err)
		}
		log.Printf("hyperliquid: subscribed %s %s", coin, c.interval)
	}
	return nil
}

// wsCandle is the venue's candle payload. Prices and volume are strings.
type wsCandle struct {
	OpenMS  int64  `json:"t"`
	CloseMS int64  `json:"T"`
	Coin    string `json:"s"`
	Interv  string `json:"i"`
	Open    string `json:"o"`
	High    string `json:"h"`
	Low     string `json:"l"`
	Close   string `json:"c"`
	Volume  string `json:"v"`
	Trades  uint64 `json:"n"`
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Read streams Candle events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	candles := make(chan *models.Candle, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteJSON(map[string]string{"method": "ping"})
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("hyperliquid conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("hyperliquid read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					continue
				}
				if m.Channel != "candle" {
					// pong and subscriptionResponse frames land here
					continue
				}
				var wc wsCandle
				if err := json.Unmarshal(m.Data, &wc); err != nil {
					continue
				}
				candle, err := wc.toModel()
				if err != nil {
					continue
				}
				select {
				case candles <- candle:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return candles, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }

func (wc *wsCandle) toModel() (*models.Candle, error) {
	o, err := strconv.ParseFloat(wc.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parse open: %w", err)
	}
	h, err := strconv.ParseFloat(wc.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parse high: %w", err)
	}
	l, err := strconv.ParseFloat(wc.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parse low: %w", err)
	}
	cl, err := strconv.ParseFloat(wc.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parse close: %w", err)
	}
	v, err := strconv.ParseFloat(wc.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parse volume: %w", err)
	}
	return &models.Candle{
		Bucket:      time.UnixMilli(wc.OpenMS).UTC(),
		Symbol:      wc.Coin,
		Open:        o,
		High:        h,
		Low:         l,
		Close:       cl,
		Volume:      v,
		TradesCount: wc.Trades,
	}, nil
}
