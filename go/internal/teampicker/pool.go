package teampicker

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/bzdash/go/internal/models"
)

// CommanderIDs returns the linked ids of both commanders, skipping unlinked seats.
func CommanderIDs(d *models.DraftSession) map[string]struct{} {
	ids := make(map[string]struct{}, 2)
	if d == nil {
		return ids
	}
	for _, p := range d.Participants {
		if p.Role.IsCommander() && p.SteamID != "" {
			ids[p.SteamID] = struct{}{}
		}
	}
	return ids
}

// EligiblePool is the roster minus both commanders minus every picked player,
// in roster order.
func EligiblePool(d *models.DraftSession) []models.RosterPlayer {
	if d == nil {
		return nil
	}
	excluded := CommanderIDs(d)
	for _, p := range d.Picks {
		excluded[p.Player.SteamID] = struct{}{}
	}

	pool := make([]models.RosterPlayer, 0, len(d.Roster))
	for _, p := range d.Roster {
		if _, skip := excluded[p.SteamID]; skip || p.SteamID == "" {
			continue
		}
		pool = append(pool, p)
	}
	return pool
}

// RandomStrategy picks uniformly from the eligible pool.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy() *RandomStrategy {
	return NewRandomStrategyWithSource(rand.NewSource(time.Now().UnixNano()))
}

func NewRandomStrategyWithSource(src rand.Source) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(src)}
}

// Choose returns a uniformly random member of pool.
func (s *RandomStrategy) Choose(pool []models.RosterPlayer) (models.RosterPlayer, error) {
	if len(pool) == 0 {
		return models.RosterPlayer{}, ErrEmptyPool
	}
	s.mu.Lock()
	i := s.rng.Intn(len(pool))
	s.mu.Unlock()
	return pool[i], nil
}
