package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var errNotConnected = errors.New("push channel not connected")

// WebSocketConfig holds configuration for the websocket push channel.
type WebSocketConfig struct {
	URL            string
	ReconnectWait  time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	Header         http.Header
}

// DefaultWebSocketConfig returns default websocket push configuration.
func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:            url,
		ReconnectWait:  2 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// WebSocketPush is a PushClient over a single gorilla websocket connection.
type WebSocketPush struct {
	config   WebSocketConfig
	clock    clockwork.Clock
	dialer   *websocket.Dialer
	clientID string

	mu    sync.Mutex
	conn  *websocket.Conn
	rooms roomSet
}

func NewWebSocketPush(config WebSocketConfig, clock clockwork.Clock) *WebSocketPush {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = 2 * time.Second
	}
	return &WebSocketPush{
		config:   config,
		clock:    clock,
		dialer:   websocket.DefaultDialer,
		clientID: uuid.NewString(),
	}
}

// Run dials, re-joins rooms and reads frames until ctx is cancelled,
// reconnecting after ReconnectWait on every failure.
func (w *WebSocketPush) Run(ctx context.Context, h PushHandlers) error {
	for {
		err := w.session(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn().Err(err).Str("url", w.config.URL).Msg("push channel disconnected")
		if h.OnDisconnect != nil {
			h.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(w.config.ReconnectWait):
		}
	}
}

func (w *WebSocketPush) session(ctx context.Context, h PushHandlers) error {
	conn, _, err := w.dialer.DialContext(ctx, w.config.URL, w.config.Header)
	if err != nil {
		return fmt.Errorf("failed to dial push channel: %w", err)
	}
	if w.config.MaxMessageSize > 0 {
		conn.SetReadLimit(w.config.MaxMessageSize)
	}

	w.mu.Lock()
	w.conn = conn
	rooms := w.rooms.list()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.conn == conn {
			w.conn = nil
		}
		w.mu.Unlock()
		conn.Close()
	}()

	// closes the socket when ctx ends so the blocking read returns
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log.Info().Str("url", w.config.URL).Str("client_id", w.clientID).Msg("push channel connected")
	for _, room := range rooms {
		if err := w.send(eventJoin, room); err != nil {
			return err
		}
	}
	if h.OnConnect != nil {
		h.OnConnect()
	}

	if w.config.PingInterval > 0 {
		pingCtx, cancelPing := context.WithCancel(ctx)
		defer cancelPing()
		go w.pingLoop(pingCtx, conn)
	}

	w.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		w.extendDeadline(conn)
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read push frame: %w", err)
		}
		w.extendDeadline(conn)

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			log.Warn().Err(err).Msg("dropping malformed push frame")
			continue
		}
		if h.OnEvent != nil {
			h.OnEvent(frame)
		}
	}
}

func (w *WebSocketPush) extendDeadline(conn *websocket.Conn) {
	if w.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))
	}
}

func (w *WebSocketPush) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := w.clock.NewTicker(w.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.config.WriteTimeout))
			w.mu.Unlock()
			if err != nil {
				log.Debug().Err(err).Msg("push ping failed")
				return
			}
		}
	}
}

// Join subscribes to room now if connected, and on every reconnect.
func (w *WebSocketPush) Join(room string) error {
	w.mu.Lock()
	added := w.rooms.add(room)
	connected := w.conn != nil
	w.mu.Unlock()

	if !added || !connected {
		return nil
	}
	return w.send(eventJoin, room)
}

// Leave unsubscribes from room.
func (w *WebSocketPush) Leave(room string) error {
	w.mu.Lock()
	removed := w.rooms.remove(room)
	connected := w.conn != nil
	w.mu.Unlock()

	if !removed || !connected {
		return nil
	}
	return w.send(eventLeave, room)
}

func (w *WebSocketPush) send(event, room string) error {
	data, err := json.Marshal(roomRequest{Room: room, ClientID: w.clientID})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event, err)
	}
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return errNotConnected
	}
	if w.config.WriteTimeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	log.Debug().Str("event", event).Str("room", room).Msg("sent room request")
	return nil
}
