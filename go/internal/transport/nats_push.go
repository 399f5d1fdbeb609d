package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS push channel.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS push configuration.
func DefaultNATSConfig(url string) NATSConfig {
	if url == "" {
		url = nats.DefaultURL
	}
	return NATSConfig{
		URL:           url,
		SubjectPrefix: "dashboard",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPush is a PushClient backed by NATS subjects. The broadcast events live
// on fixed subjects; each room maps to its own subject and joining a room
// subscribes to it.
type NATSPush struct {
	config NATSConfig

	mu       sync.Mutex
	nc       *nats.Conn
	handlers PushHandlers
	rooms    roomSet
	subs     map[string]*nats.Subscription
}

func NewNATSPush(config NATSConfig) *NATSPush {
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "dashboard"
	}
	return &NATSPush{
		config: config,
		subs:   make(map[string]*nats.Subscription),
	}
}

// SessionsSubject is the subject carrying sessions:update.
func (p *NATSPush) SessionsSubject() string {
	return p.config.SubjectPrefix + ".sessions.update"
}

// PresenceSubject is the subject carrying presence:update.
func (p *NATSPush) PresenceSubject() string {
	return p.config.SubjectPrefix + ".presence.update"
}

// RoomSubject maps a room name onto its subject.
func (p *NATSPush) RoomSubject(room string) string {
	return p.config.SubjectPrefix + ".room." + sanitizeSubject(room)
}

// Run connects and keeps the subscriptions alive until ctx is cancelled.
// Reconnects are handled by the NATS client itself.
func (p *NATSPush) Run(ctx context.Context, h PushHandlers) error {
	opts := []nats.Option{
		nats.MaxReconnects(p.config.MaxReconnects),
		nats.ReconnectWait(p.config.ReconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS push connected")
			if h.OnConnect != nil {
				h.OnConnect()
			}
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS push disconnected")
			if h.OnDisconnect != nil {
				h.OnDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS push reconnected")
			if h.OnConnect != nil {
				h.OnConnect()
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS push error")
		}),
	}

	nc, err := nats.Connect(p.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	p.mu.Lock()
	p.nc = nc
	p.handlers = h
	rooms := p.rooms.list()
	p.mu.Unlock()

	// with RetryOnFailedConnect the handler only fires for a delayed first connect
	if nc.IsConnected() && h.OnConnect != nil {
		h.OnConnect()
	}

	defer func() {
		p.mu.Lock()
		p.nc = nil
		p.subs = make(map[string]*nats.Subscription)
		p.mu.Unlock()
		nc.Close()
	}()

	for _, subject := range []string{p.SessionsSubject(), p.PresenceSubject()} {
		if _, err := nc.Subscribe(subject, p.deliver); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	for _, room := range rooms {
		if err := p.subscribeRoom(room); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

func (p *NATSPush) deliver(msg *nats.Msg) {
	var frame Frame
	if err := json.Unmarshal(msg.Data, &frame); err != nil || frame.Event == "" {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed push message")
		return
	}

	p.mu.Lock()
	onEvent := p.handlers.OnEvent
	p.mu.Unlock()
	if onEvent != nil {
		onEvent(frame)
	}
}

func (p *NATSPush) subscribeRoom(room string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc == nil {
		return nil
	}
	if _, ok := p.subs[room]; ok {
		return nil
	}
	subject := p.RoomSubject(room)
	sub, err := p.nc.Subscribe(subject, p.deliver)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	p.subs[room] = sub
	log.Debug().Str("room", room).Str("subject", subject).Msg("joined push room")
	return nil
}

// Join subscribes to room now if connected, and on every Run.
func (p *NATSPush) Join(room string) error {
	p.mu.Lock()
	p.rooms.add(room)
	p.mu.Unlock()
	return p.subscribeRoom(room)
}

// Leave drops the room subscription.
func (p *NATSPush) Leave(room string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms.remove(room)
	sub, ok := p.subs[room]
	if !ok {
		return nil
	}
	delete(p.subs, room)
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", room, err)
	}
	log.Debug().Str("room", room).Msg("left push room")
	return nil
}
