package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/core"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FILLS STREAM — authenticated user channel
// ═══════════════════════════════════════════════════════════════════════════════
//
// Generalized from feeds/polymarket_ws.go's PolymarketFeed connection loop:
// same dial/read/reconnect shape, but authenticated (POLY_API_KEY/SECRET/
// PASSPHRASE, reusing Client's existing credentials and hmacSign) and with
// exponential backoff instead of the public feed's fixed 5s retry, since a
// dropped fills channel risks a lifecycle stalling in MONITORING rather than
// just a stale price.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	userChannelURL   = "wss://ws-subscriptions-clob.polymarket.com/ws/user"
	fillsBackoffBase = 1 * time.Second
	fillsBackoffCap  = 8 * time.Second // base * 2^3
)

// ExchangeAdapter wraps Client with the authenticated fills channel the bare
// Client (no websocket state) can't provide on its own.
type ExchangeAdapter struct {
	*Client

	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}

	router *core.Router
}

func NewExchangeAdapter(c *Client) *ExchangeAdapter {
	return &ExchangeAdapter{Client: c}
}

type userChannelMsg struct {
	EventType   string `json:"event_type"`
	OrderID     string `json:"order_id"`
	SizeMatched string `json:"size_matched"`
	Price       string `json:"price"`
	Timestamp   string `json:"timestamp"`
}

// SubscribeFills opens (or reuses) the authenticated user channel and returns
// a channel of fill events, reconnecting with exponential backoff on drop.
func (a *ExchangeAdapter) SubscribeFills(ctx context.Context) (<-chan core.FillEvent, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, fmt.Errorf("exec: fills stream already running")
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.mu.Unlock()

	out := make(chan core.FillEvent, 256)
	if a.IsDryRun() {
		close(out) // dry-run callers poll GetOrder instead of streaming fills
		return out, nil
	}
	go a.connectionLoop(ctx, out)
	return out, nil
}

func (a *ExchangeAdapter) connectionLoop(ctx context.Context, out chan<- core.FillEvent) {
	defer close(out)
	backoff := fillsBackoffBase

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		default:
		}

		if err := a.connectAndRead(ctx, out); err != nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("⚠️ fills channel dropped, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > fillsBackoffCap {
				backoff = fillsBackoffCap
			}
			continue
		}
		backoff = fillsBackoffBase
	}
}

func (a *ExchangeAdapter) connectAndRead(ctx context.Context, out chan<- core.FillEvent) error {
	conn, _, err := websocket.DefaultDialer.Dial(userChannelURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := a.signUserChannelAuth(ts)
	if err != nil {
		return err
	}
	sub := map[string]interface{}{
		"type":    "subscribe",
		"channel": "user",
		"auth": map[string]string{
			"apiKey":     a.apiKey,
			"secret":     a.apiSecret,
			"passphrase": a.passphrase,
			"timestamp":  ts,
			"signature":  sig,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	log.Info().Msg("🔌 fills channel connected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.stopCh:
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		a.dispatchFill(data, out)
	}
}

func (a *ExchangeAdapter) dispatchFill(data []byte, out chan<- core.FillEvent) {
	var msgs []userChannelMsg
	if err := json.Unmarshal(data, &msgs); err != nil {
		var single userChannelMsg
		if err := json.Unmarshal(data, &single); err != nil {
			return
		}
		msgs = []userChannelMsg{single}
	}
	for _, m := range msgs {
		if m.EventType != "trade" && m.EventType != "order" {
			continue
		}
		size, _ := decimal.NewFromString(m.SizeMatched)
		price, _ := decimal.NewFromString(m.Price)
		if size.IsZero() {
			continue
		}
		ts, _ := strconv.ParseInt(m.Timestamp, 10, 64)
		if ts == 0 {
			ts = time.Now().Unix()
		}
		select {
		case out <- core.FillEvent{ExchangeID: m.OrderID, FilledSize: size, Price: price, Ts: time.Unix(ts, 0)}:
		default:
			log.Warn().Str("orderId", m.OrderID).Msg("⚠️ fills channel consumer too slow, dropping event")
		}
	}
}

// signUserChannelAuth reuses Client's HMAC signing for the subscribe frame,
// in the same (timestamp+method+path) convention as addHeaders' REST calls.
func (a *ExchangeAdapter) signUserChannelAuth(ts string) (string, error) {
	message := ts + "GET" + "/ws/user"
	return a.hmacSign(message), nil
}

// Close stops the fills channel goroutine if running.
func (a *ExchangeAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	close(a.stopCh)
	if a.conn != nil {
		a.conn.Close()
	}
}
