package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybotio/copybot/internal/domain"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSignalFeedDeliversSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		messages := []string{
			`{"trade_id":"t-1","market_id":"BTC-USD","side":"buy","amount":"100","price":"50000","confidence":0.9}`,
			`not json at all`,
			`{"market_id":"missing-trade-id"}`,
			`{"trade_id":"t-2","market_id":"ETH-USD","side":"sell","amount":"10","price":"3000","confidence":0.5}`,
		}
		for _, m := range messages {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	out := make(chan domain.TradeSignal, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := NewSignalFeed(wsURL(srv), out, time.Second, time.Second, testLogger())
	go f.Run(ctx)

	var got []domain.TradeSignal
	for len(got) < 2 {
		select {
		case sig := <-out:
			got = append(got, sig)
		case <-ctx.Done():
			t.Fatal("timed out waiting for signals")
		}
	}

	assert.Equal(t, "t-1", got[0].TradeID)
	assert.Equal(t, domain.OrderSideBuy, got[0].Side)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Equal(t, "t-2", got[1].TradeID)
}

func TestSignalFeedReconnects(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		n := connections.Add(1)

		if n == 1 {
			// Drop the first connection immediately to force a reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"trade_id":"after-reconnect","market_id":"BTC-USD","side":"buy","amount":"1","price":"100","confidence":1}`)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	out := make(chan domain.TradeSignal, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := NewSignalFeed(wsURL(srv), out, 10*time.Millisecond, 50*time.Millisecond, testLogger())
	go f.Run(ctx)

	select {
	case sig := <-out:
		assert.Equal(t, "after-reconnect", sig.TradeID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for reconnect")
	}
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}
