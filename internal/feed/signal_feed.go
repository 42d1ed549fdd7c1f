// Package feed connects to the upstream signal source over WebSocket and
// turns its messages into trade signals for the coordinator.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/copybotio/copybot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// SignalFeed maintains a WebSocket connection to the signal source and
// publishes decoded trade signals to an output channel. It reconnects with
// exponential backoff on disconnect.
type SignalFeed struct {
	url          string
	out          chan<- domain.TradeSignal
	reconnectMin time.Duration
	reconnectMax time.Duration
	logger       *slog.Logger
}

// NewSignalFeed creates a feed publishing to out. The caller owns the
// channel; the feed never closes it.
func NewSignalFeed(url string, out chan<- domain.TradeSignal, reconnectMin, reconnectMax time.Duration, logger *slog.Logger) *SignalFeed {
	if reconnectMin <= 0 {
		reconnectMin = time.Second
	}
	if reconnectMax <= 0 {
		reconnectMax = 30 * time.Second
	}
	return &SignalFeed{
		url:          url,
		out:          out,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
		logger:       logger.With(slog.String("component", "signal_feed")),
	}
}

// Run connects and reads signals until ctx is cancelled, reconnecting with
// exponential backoff. The backoff resets after every successful connection.
func (f *SignalFeed) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.reconnectMin
	bo.MaxInterval = f.reconnectMax
	bo.MaxElapsedTime = 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("signal feed disconnected, reconnecting",
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// runConnection dials, then reads messages until the connection breaks or
// ctx is cancelled. A successful dial resets nothing here; the caller's
// backoff policy handles pacing.
func (f *SignalFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	f.logger.Info("signal feed connected", slog.String("url", f.url))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(ctx, data)
	}
}

// handleMessage decodes one feed message and forwards it. Malformed payloads
// are logged and dropped; the coordinator does full validation downstream.
func (f *SignalFeed) handleMessage(ctx context.Context, data []byte) {
	var sig domain.TradeSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		f.logger.Debug("dropping malformed signal",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(data)),
		)
		return
	}
	if sig.TradeID == "" {
		return
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	select {
	case f.out <- sig:
	case <-ctx.Done():
	}
}
