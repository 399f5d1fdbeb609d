package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/schedule"
	"github.com/mcdev12/bzdash/go/internal/sessions"
)

// DefaultPushDelay lets capability flags settle before the push channel opens.
const DefaultPushDelay = 200 * time.Millisecond

// SessionsSnapshot is published on events.TopicSessionsSnapshot.
type SessionsSnapshot struct {
	Source   sessions.Source
	Sessions []models.Session
}

// DraftSignal is published on events.TopicDraftSnapshot. Session is set when
// the push carried the full record; otherwise subscribers re-fetch.
type DraftSignal struct {
	SessionID string
	Session   *models.DraftSession
}

// Poller fetches the canonical, server-filtered session list.
type Poller func(ctx context.Context) ([]models.Session, error)

// Multiplexer owns the poll path, the event stream and the optional push
// channel, and republishes everything they deliver on the bus.
type Multiplexer struct {
	stream    *Stream
	push      PushClient
	poll      Poller
	bus       *events.Bus
	scheduler *schedule.Scheduler
	live      *LiveIndicator
	pushDelay time.Duration

	mu         sync.Mutex
	realtime   bool
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	pushTask   *schedule.Task
	pushActive bool
	wg         sync.WaitGroup
}

// NewMultiplexer wires the channels. push may be nil when no secondary
// transport is configured.
func NewMultiplexer(stream *Stream, push PushClient, poll Poller, bus *events.Bus, scheduler *schedule.Scheduler, pushDelay time.Duration) *Multiplexer {
	if pushDelay < 0 {
		pushDelay = DefaultPushDelay
	}
	return &Multiplexer{
		stream:    stream,
		push:      push,
		poll:      poll,
		bus:       bus,
		scheduler: scheduler,
		live:      NewLiveIndicator(bus),
		pushDelay: pushDelay,
	}
}

func (m *Multiplexer) Live() *LiveIndicator {
	return m.live
}

// SetRealtime sets the capability flag read when the push delay elapses.
func (m *Multiplexer) SetRealtime(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realtime = enabled
}

// PushActive reports whether the push channel was opened.
func (m *Multiplexer) PushActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushActive
}

// Start opens the stream now and the push channel after the push delay.
// Calling Start on a running multiplexer is a no-op.
func (m *Multiplexer) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.ctx = runCtx
	m.cancel = cancel
	m.mu.Unlock()

	if m.stream != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			_ = m.stream.Run(runCtx, StreamHandlers{
				OnOpen:    m.live.StreamOpen,
				OnMessage: m.handleStreamMessage,
				OnError:   func(error) { m.live.StreamError() },
			})
		}()
	}

	task := m.scheduler.After("push-connect", m.pushDelay, func(context.Context) error {
		m.startPush(runCtx)
		return nil
	})

	m.mu.Lock()
	m.pushTask = task
	m.mu.Unlock()

	log.Info().Bool("stream", m.stream != nil).Dur("push_delay", m.pushDelay).Msg("transport multiplexer started")
}

func (m *Multiplexer) startPush(ctx context.Context) {
	m.mu.Lock()
	enabled := m.realtime && m.push != nil && ctx.Err() == nil
	if enabled {
		m.pushActive = true
	}
	m.mu.Unlock()

	if !enabled {
		log.Info().Msg("realtime push disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.push.Run(ctx, PushHandlers{
			OnConnect:    m.live.PushConnected,
			OnDisconnect: func(error) { m.live.PushDisconnected() },
			OnEvent:      m.handlePushFrame,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("push channel stopped")
		}
	}()
}

// Stop tears down every channel and waits for them to exit.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.pushActive = false
	cancel := m.cancel
	task := m.pushTask
	m.pushTask = nil
	m.mu.Unlock()

	task.Cancel()
	cancel()
	m.wg.Wait()
	log.Info().Msg("transport multiplexer stopped")
}

// Poll fetches the canonical list and publishes it. A failure is returned
// and leaves the current view alone.
func (m *Multiplexer) Poll(ctx context.Context) error {
	if m.poll == nil {
		return nil
	}
	list, err := m.poll(ctx)
	if err != nil {
		return err
	}
	m.live.PollSucceeded()
	m.publishSessions(sessions.SourcePoll, list)
	return nil
}

// Join enters a push room; without a push channel it is a no-op.
func (m *Multiplexer) Join(room string) {
	if m.push == nil {
		return
	}
	if err := m.push.Join(room); err != nil {
		log.Warn().Err(err).Str("room", room).Msg("failed to join push room")
	}
}

// Leave exits a push room.
func (m *Multiplexer) Leave(room string) {
	if m.push == nil {
		return
	}
	if err := m.push.Leave(room); err != nil {
		log.Warn().Err(err).Str("room", room).Msg("failed to leave push room")
	}
}

func (m *Multiplexer) handleStreamMessage(data []byte) {
	m.live.StreamOpen()

	var payload models.SessionsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed stream payload")
		return
	}
	m.publishSessions(sessions.SourceStream, payload.Sessions)
	m.bus.Publish(events.TopicPresenceChanged, sessions.SourceStream)
}

func (m *Multiplexer) handlePushFrame(frame Frame) {
	switch frame.Event {
	case EventSessionsUpdate:
		// advisory: re-pull the canonical list
		m.mu.Lock()
		runCtx := m.ctx
		m.mu.Unlock()
		if runCtx == nil {
			runCtx = context.Background()
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ctx, cancel := context.WithTimeout(runCtx, 30*time.Second)
			defer cancel()
			if err := m.Poll(ctx); err != nil {
				log.Warn().Err(err).Msg("poll after push failed")
			}
		}()
		m.bus.Publish(events.TopicPresenceChanged, sessions.SourcePush)

	case EventPresenceUpdate:
		m.bus.Publish(events.TopicPresenceChanged, sessions.SourcePush)

	case EventTeamPickerUpdate:
		var update models.DraftUpdate
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &update); err != nil {
				log.Warn().Err(err).Msg("dropping malformed team picker update")
				return
			}
		}
		if update.SessionID == "" && update.Session != nil {
			update.SessionID = update.Session.SessionID
		}
		m.bus.Publish(events.TopicDraftSnapshot, DraftSignal{SessionID: update.SessionID, Session: update.Session})

	default:
		log.Debug().Str("event", frame.Event).Msg("ignoring push event")
	}
}

func (m *Multiplexer) publishSessions(source sessions.Source, list []models.Session) {
	m.bus.Publish(events.TopicSessionsSnapshot, SessionsSnapshot{Source: source, Sessions: list})
}
