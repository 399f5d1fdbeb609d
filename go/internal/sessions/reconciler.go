package sessions

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
)

// DefaultWarmup is how long an empty list renders as loading after start.
const DefaultWarmup = 8 * time.Second

// Source identifies the channel that produced a snapshot.
type Source string

const (
	SourcePoll   Source = "poll"
	SourceStream Source = "stream"
	SourcePush   Source = "push"
)

type EmptyState string

const (
	EmptyNone    EmptyState = ""
	EmptyWarmup  EmptyState = "warmup"
	EmptyNothing EmptyState = "no_sessions"
)

var emptyMessages = map[EmptyState]string{
	EmptyWarmup:  "Loading sessions…",
	EmptyNothing: "No sessions online right now.",
}

// View is the render-ready session list.
type View struct {
	Source       Source           `json:"source"`
	Filter       Filter           `json:"filter"`
	Sort         SortMode         `json:"sort"`
	Sessions     []models.Session `json:"-"`
	Cards        []Card           `json:"cards"`
	Empty        EmptyState       `json:"empty,omitempty"`
	EmptyMessage string           `json:"empty_message,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Reconciler turns raw snapshots from any channel into the current View.
// Every snapshot replaces the previous view; the last one applied wins.
type Reconciler struct {
	clock     clockwork.Clock
	warmup    time.Duration
	startedAt time.Time
	bus       *events.Bus

	mu       sync.RWMutex
	filter   Filter
	sort     SortMode
	seenData bool
	view     View
	raw      map[string]models.Session
}

func NewReconciler(clock clockwork.Clock, warmup time.Duration, bus *events.Bus) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		clock:     clock,
		warmup:    warmup,
		startedAt: clock.Now(),
		bus:       bus,
		sort:      DefaultSort,
		// nothing has arrived yet
		view: View{
			Sort:         DefaultSort,
			Cards:        []Card{},
			Empty:        EmptyWarmup,
			EmptyMessage: emptyMessages[EmptyWarmup],
		},
	}
}

// SetCriteria replaces the active filter and sort mode.
func (r *Reconciler) SetCriteria(f Filter, mode SortMode) {
	if mode == "" {
		mode = DefaultSort
	}
	r.mu.Lock()
	r.filter = f
	r.sort = mode
	r.mu.Unlock()
}

func (r *Reconciler) Criteria() (Filter, SortMode) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter, r.sort
}

// Warmup reports whether an empty list should still render as loading.
func (r *Reconciler) Warmup() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.warmupLocked()
}

func (r *Reconciler) warmupLocked() bool {
	return !r.seenData && r.clock.Since(r.startedAt) < r.warmup
}

// Apply filters and sorts a full snapshot with the active criteria, stores it
// as the current view and publishes it. The same predicates run for every
// source, so a poll and a push of the same data render identically.
func (r *Reconciler) Apply(source Source, raw []models.Session) View {
	r.mu.Lock()
	if len(raw) > 0 {
		r.seenData = true
	}
	r.raw = make(map[string]models.Session, len(raw))
	for _, s := range raw {
		r.raw[s.ID] = s
	}

	list := Apply(raw, r.filter, r.sort)
	view := View{
		Source:    source,
		Filter:    r.filter,
		Sort:      r.sort,
		Sessions:  list,
		Cards:     make([]Card, 0, len(list)),
		UpdatedAt: r.clock.Now(),
	}
	for _, s := range list {
		view.Cards = append(view.Cards, NewCard(s))
	}
	if len(list) == 0 {
		view.Empty = EmptyNothing
		if r.warmupLocked() {
			view.Empty = EmptyWarmup
		}
		view.EmptyMessage = emptyMessages[view.Empty]
	}
	r.view = view
	r.mu.Unlock()

	log.Debug().
		Str("source", string(source)).
		Int("received", len(raw)).
		Int("visible", len(list)).
		Msg("applied session snapshot")

	if r.bus != nil {
		r.bus.Publish(events.TopicViewSessions, view)
	}
	return view
}

// View returns the last applied view.
func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// Session looks up a session in the last snapshot, including sessions the
// active filter hides.
func (r *Reconciler) Session(id string) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.raw[id]
	return s, ok
}
