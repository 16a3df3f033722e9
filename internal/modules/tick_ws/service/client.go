package service

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/config"
	"intraday_bot/pkg/logger"
)

// Client streams trade prints from the tick server over one websocket.
// The server pushes per-trade frames; the client normalizes them into
// models.Tick with session-cumulative volume and turnover counters.
type Client struct {
	cfg     config.TickServerConfig
	dialer  *websocket.Dialer
	symbols []string

	loc    *time.Location
	caches map[string]*cumCache

	monitor Monitor // may be nil
}

// Monitor receives liveness signals for the health endpoint.
type Monitor interface {
	SetStreamConnected(v bool)
	TickSeen(t time.Time)
}

func NewClient(cfg config.TickServerConfig, symbols []string, monitor Monitor) *Client {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Client{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		symbols: symbols,
		loc:     loc,
		caches:  make(map[string]*cumCache),
		monitor: monitor,
	}
}

type subscribeMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// serverMsg covers both message kinds the server sends: tick frames
// keyed by symbol, and heartbeats.
type serverMsg struct {
	Type   string             `json:"type"`
	Frames map[string][]frame `json:"frames"`
}

type frame struct {
	// microseconds since midnight, exchange time
	Timestamp int64 `json:"timestamp"`
	// price in tenths of a yen
	Price10  int64   `json:"price10"`
	Quantity float64 `json:"quantity"`
}

// Stream connects, subscribes and pushes ticks into out until ctx is
// done or the reconnect budget is spent. Cumulative counters survive a
// reconnect: the broker-side stream restarts mid-session and the
// counters must not jump back.
func (c *Client) Stream(ctx context.Context, out chan<- models.Tick) {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		logger.Info("tick_ws: connecting %s (%d symbols)", c.cfg.WSURL, len(c.symbols))
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.WSURL, nil)
		if err != nil {
			attempts++
			logger.Error("tick_ws: dial failed (attempt %d/%d): %v",
				attempts, c.cfg.MaxReconnectAttempts, err)
			if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
				logger.Error("tick_ws: reconnect budget spent, stream stopped")
				return
			}
			sleepCtx(ctx, c.cfg.ReconnectInterval)
			continue
		}
		attempts = 0
		c.setConnected(true)

		if err := c.subscribe(conn); err != nil {
			logger.Error("tick_ws: subscribe failed: %v", err)
			_ = conn.Close()
			c.setConnected(false)
			sleepCtx(ctx, c.cfg.ReconnectInterval)
			continue
		}

		c.readLoop(ctx, conn, out)
		_ = conn.Close()
		c.setConnected(false)

		select {
		case <-ctx.Done():
			return
		default:
			sleepCtx(ctx, c.cfg.ReconnectInterval)
		}
	}
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	raw, err := sonic.Marshal(subscribeMsg{Type: "subscribe", Symbols: c.symbols})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- models.Tick) {
	// ReadMessage has no deadline; closing the conn is the only way to
	// unblock it when the context ends mid-read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("tick_ws: read error: %v", err)
			return
		}

		var msg serverMsg
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			logger.Warn("tick_ws: bad message: %v", err)
			continue
		}
		if msg.Type == "heartbeat" || len(msg.Frames) == 0 {
			continue
		}

		for symbol, frames := range msg.Frames {
			for _, f := range frames {
				tick, ok := c.convertFrame(symbol, f)
				if !ok {
					continue
				}
				select {
				case out <- tick:
					if c.monitor != nil {
						c.monitor.TickSeen(tick.Time)
					}
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (c *Client) setConnected(v bool) {
	if c.monitor != nil {
		c.monitor.SetStreamConnected(v)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = 5 * time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
