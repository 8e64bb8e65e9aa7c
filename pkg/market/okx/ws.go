package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultWSURL    = "wss://ws.okx.com:8443/ws/v5/public"
	wsPingInterval  = 20 * time.Second
	wsWriteTimeout  = 5 * time.Second
	wsReconnectBase = time.Second
	wsReconnectMax  = 30 * time.Second
)

// TickHandler receives live ticker prices.
type TickHandler func(symbol string, price float64, at time.Time)

// TickerStream keeps a subscription to OKX public ticker channels alive,
// reconnecting with exponential backoff when the connection drops.
type TickerStream struct {
	url     string
	instIDs []string
	handler TickHandler
}

// NewTickerStream prepares a stream over the given coin symbols. The handler
// is invoked from the read loop and must not block.
func NewTickerStream(wsURL string, symbols []string, handler TickHandler) *TickerStream {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	instIDs := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if canonical := normalizeSymbol(symbol); canonical != "" {
			instIDs = append(instIDs, spotInstID(canonical))
		}
	}
	return &TickerStream{url: wsURL, instIDs: instIDs, handler: handler}
}

type wsRequest struct {
	Op   string     `json:"op"`
	Args []wsSubArg `json:"args"`
}

type wsSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type wsTickerEvent struct {
	Event string   `json:"event,omitempty"`
	Arg   wsSubArg `json:"arg"`
	Data  []Ticker `json:"data"`
}

// Run consumes ticker events until ctx is cancelled.
func (s *TickerStream) Run(ctx context.Context) error {
	backoff := wsReconnectBase
	for {
		start := time.Now()
		err := s.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logx.WithContext(ctx).Errorf("okx: ticker stream: %v, reconnecting in %s", err, backoff)
		}
		if time.Since(start) > time.Minute {
			backoff = wsReconnectBase
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsReconnectMax {
			backoff = wsReconnectMax
		}
	}
}

func (s *TickerStream) connectAndConsume(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("okx: dial %s: %w", s.url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	args := make([]wsSubArg, 0, len(s.instIDs))
	for _, id := range s.instIDs {
		args = append(args, wsSubArg{Channel: "tickers", InstID: id})
	}
	if err := conn.WriteJSON(wsRequest{Op: "subscribe", Args: args}); err != nil {
		return fmt.Errorf("okx: subscribe: %w", err)
	}

	connDone := make(chan struct{})
	defer close(connDone)
	// OKX drops idle connections after ~30s. The ping loop keeps the link
	// alive and closes the connection on ctx cancellation so the blocking
	// read below returns.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-connDone:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("okx: read: %w", err)
		}
		s.dispatch(msg)
	}
}

func (s *TickerStream) dispatch(msg []byte) {
	if string(msg) == "pong" {
		return
	}
	var event wsTickerEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return
	}
	// subscribe acks and error events carry no data
	if event.Event != "" || len(event.Data) == 0 {
		return
	}
	for _, tick := range event.Data {
		last, err := parseFloat(tick.Last)
		if err != nil || math.IsNaN(last) {
			continue
		}
		at := time.Now().UTC()
		if ts, err := parseMillis(tick.TS); err == nil {
			at = ts
		}
		s.handler(normalizeSymbol(tick.InstID), last, at)
	}
}
