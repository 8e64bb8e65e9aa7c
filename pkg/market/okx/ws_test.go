package okx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTickerStream(t *testing.T) {
	stream := NewTickerStream("", []string{"btc", "ETH-USDT"}, nil)
	assert.Equal(t, defaultWSURL, stream.url)
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT"}, stream.instIDs)
}

func TestTickerStreamDeliversTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var req wsRequest
		if !assert.NoError(t, conn.ReadJSON(&req)) {
			return
		}
		assert.Equal(t, "subscribe", req.Op)
		if assert.Len(t, req.Args, 1) {
			assert.Equal(t, "tickers", req.Args[0].Channel)
			assert.Equal(t, "BTC-USDT", req.Args[0].InstID)
		}

		ack := map[string]any{"event": "subscribe", "arg": req.Args[0]}
		if !assert.NoError(t, conn.WriteJSON(ack)) {
			return
		}
		event := wsTickerEvent{
			Arg: wsSubArg{Channel: "tickers", InstID: "BTC-USDT"},
			Data: []Ticker{{
				InstID: "BTC-USDT",
				Last:   "65123.5",
				TS:     "1700000000000",
			}},
		}
		if !assert.NoError(t, conn.WriteJSON(event)) {
			return
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	type tick struct {
		symbol string
		price  float64
		at     time.Time
	}
	ticks := make(chan tick, 1)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewTickerStream(wsURL, []string{"BTC"}, func(symbol string, price float64, at time.Time) {
		select {
		case ticks <- tick{symbol: symbol, price: price, at: at}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = stream.Run(ctx)
	}()

	select {
	case got := <-ticks:
		assert.Equal(t, "BTC", got.symbol)
		assert.InDelta(t, 65123.5, got.price, 1e-9)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got.at)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tick")
	}

	cancel()
	wg.Wait()
	require.True(t, errors.Is(runErr, context.Canceled), "Run should return the context error, got %v", runErr)
}

func TestTickerStreamDispatch(t *testing.T) {
	var calls []string
	stream := &TickerStream{
		handler: func(symbol string, price float64, at time.Time) {
			calls = append(calls, symbol)
		},
	}

	// keepalive and control frames carry no ticks
	stream.dispatch([]byte("pong"))
	stream.dispatch([]byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT"}}`))
	stream.dispatch([]byte(`{"event":"error","code":"60012","msg":"Invalid request"}`))
	stream.dispatch([]byte(`{broken`))
	assert.Empty(t, calls)

	// unparseable price is dropped
	stream.dispatch([]byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","last":""}]}`))
	assert.Empty(t, calls)

	stream.dispatch([]byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","last":"65123.5","ts":"1700000000000"}]}`))
	require.Equal(t, []string{"BTC"}, calls)
}
