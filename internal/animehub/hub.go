// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package animehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	minReconnectDelay = 1 * time.Second
	maxReconnectDelay = 32 * time.Second
	queueSize         = 256
	pingInterval      = 30 * time.Second
	readTimeout       = 60 * time.Second
)

// Hub is a long-lived connection to the anime service's `shoko,file,movie,
// episode` event feed. Events are delivered to a single consumer over a
// bounded, ordered queue; the anime-service event stream is strictly
// single-threaded (§5), so Run never fans events out to more than one
// reader.
type Hub struct {
	wsURL  string
	apiKey string
	logger zerolog.Logger

	events chan Event
}

// New builds a Hub for the anime service at baseURL (http, https, ws or wss),
// which toWebsocketURL turns into the streaming URL dialed once Run is
// called. apiKey is sent as a query parameter, matching the anime service's
// auth convention for its streaming endpoint.
func New(baseURL, apiKey string, logger zerolog.Logger) (*Hub, error) {
	wsURL, err := toWebsocketURL(baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("animehub: %w", err)
	}
	return &Hub{
		wsURL:  wsURL,
		apiKey: apiKey,
		logger: logger,
		events: make(chan Event, queueSize),
	}, nil
}

func toWebsocketURL(baseURL, apiKey string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v3/ws"
	q := u.Query()
	q.Set("feeds", "shoko,file,movie,episode")
	if apiKey != "" {
		q.Set("apikey", apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Events returns the channel events are delivered on. Callers must drain it
// promptly and in order; the channel is closed when Run returns.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// Run dials the hub and reconnects with bounded exponential backoff until
// ctx is cancelled, at which point the connection is closed and the events
// channel is closed.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.events)

	delay := minReconnectDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := h.dial(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Dur("retry_in", delay).Msg("animehub: dial failed")
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = nextDelay(delay)
			continue
		}

		delay = minReconnectDelay
		h.logger.Info().Str("url", h.wsURL).Msg("animehub: connected")
		h.listen(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warn().Dur("retry_in", delay).Msg("animehub: connection lost, reconnecting")
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay = nextDelay(delay)
	}
}

func (h *Hub) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, h.wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, nil
}

// listen reads frames from conn until it errors or ctx is cancelled,
// decoding and forwarding each one to the single consumer queue. A full
// queue blocks the reader rather than dropping a frame: ordering within
// the anime-service stream must be preserved (§5), unlike the dashboard
// live-update bus.
func (h *Hub) listen(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }

	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()
	defer close(done)

	go h.pingLoop(ctx, conn, done)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				h.logger.Warn().Err(err).Msg("animehub: read error")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			h.logger.Warn().Err(err).Msg("animehub: malformed event frame")
			continue
		}

		select {
		case h.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
