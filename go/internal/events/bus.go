package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Topic names a stream of events on the bus.
type Topic string

const (
	TopicSessionsSnapshot Topic = "sessions.snapshot"
	TopicDraftSnapshot    Topic = "draft.snapshot"
	TopicPresenceChanged  Topic = "presence.changed"
	TopicLiveStatus       Topic = "live.status"
	TopicInvitePrompt     Topic = "invite.prompt"
	TopicViewSessions     Topic = "view.sessions"
	TopicViewDraft        Topic = "view.draft"
	TopicViewOnline       Topic = "view.online"
	TopicViewIndicator    Topic = "view.indicator"
)

// latestWins topics carry full snapshots; a full subscriber loses its oldest
// queued event instead of the new one.
var latestWins = map[Topic]bool{
	TopicSessionsSnapshot: true,
	TopicViewSessions:     true,
	TopicViewDraft:        true,
}

// Event is a single message published on a topic.
type Event struct {
	Topic   Topic
	Payload any
}

// Subscription receives events for the topics it was created with.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	topics []Topic
	bus    *Bus
	once   sync.Once
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Bus is an in-process publish/subscribe hub. Publish never blocks: a
// subscriber whose buffer is full misses the event, except on snapshot topics
// where the oldest queued event is evicted.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewBus creates a bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[Topic]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for one or more topics.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch, topics: topics, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[*Subscription]struct{})
		}
		b.subs[t][sub] = struct{}{}
	}
	return sub
}

// Publish delivers payload to every subscriber of topic.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	evt := Event{Topic: topic, Payload: payload}
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- evt:
			continue
		default:
		}
		if latestWins[topic] && sub.evictOldest(evt) {
			log.Debug().Str("topic", string(topic)).Msg("subscriber buffer full, evicted oldest event")
			continue
		}
		log.Warn().Str("topic", string(topic)).Msg("subscriber buffer full, dropping event")
	}
}

func (s *Subscription) evictOldest(evt Event) bool {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// Close detaches and closes every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	seen := make(map[*Subscription]struct{})
	for _, subs := range b.subs {
		for sub := range subs {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			close(sub.ch)
		}
	}
	b.subs = make(map[Topic]map[*Subscription]struct{})
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, t := range sub.topics {
		delete(b.subs[t], sub)
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
	close(sub.ch)
}
