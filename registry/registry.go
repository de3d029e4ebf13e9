// registry/registry.go
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/surface"
)

// Registry is the process-wide directory of rounds. Rounds are looked up by
// id for the lifetime of the process and by the message currently showing
// them while they have one. Both tables change together under one lock.
type Registry struct {
	mutex     sync.RWMutex
	nextID    int
	rounds    map[int]*round.Round
	bySurface map[surface.Handle]*round.Round
	surfaceOf map[int]surface.Handle

	scheduler round.Scheduler
	now       func() time.Time
	onExpire  func(*round.Round)
}

// NewRegistry creates an empty registry. scheduler arms timed-round
// deadlines; now may be nil for wall time.
func NewRegistry(scheduler round.Scheduler, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		nextID:    1,
		rounds:    make(map[int]*round.Round),
		bySurface: make(map[surface.Handle]*round.Round),
		surfaceOf: make(map[int]surface.Handle),
		scheduler: scheduler,
		now:       now,
	}
}

// SetExpireHandler installs the callback run after a deadline ends a round.
// It applies to rounds created afterwards.
func (m *Registry) SetExpireHandler(fn func(*round.Round)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onExpire = fn
}

// Create builds a round under the next id. Ids are only consumed by rounds
// that were actually created.
func (m *Registry) Create(players []round.Player, cfg round.Config, variant round.Variant) (*round.Round, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	r, err := round.New(m.nextID, players, cfg, variant, round.Env{
		Scheduler: m.scheduler,
		OnExpire:  m.onExpire,
		Now:       m.now,
	})
	if err != nil {
		return nil, err
	}
	m.rounds[r.ID] = r
	m.nextID++
	return r, nil
}

// Get returns a round by id.
func (m *Registry) Get(id int) (*round.Round, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, exists := m.rounds[id]
	return r, exists
}

// BySurface returns the round a message currently shows.
func (m *Registry) BySurface(h surface.Handle) (*round.Round, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, exists := m.bySurface[h]
	return r, exists
}

// SurfaceOf returns the message currently showing a round.
func (m *Registry) SurfaceOf(id int) (surface.Handle, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	h, exists := m.surfaceOf[id]
	return h, exists
}

// Attach makes h the round's only live surface. The previous surface, if
// any, stops resolving and is returned.
func (m *Registry) Attach(r *round.Round, h surface.Handle) (surface.Handle, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	prev, had := m.detachLocked(r.ID)
	if other, taken := m.bySurface[h]; taken && other != r {
		m.detachLocked(other.ID)
	}
	m.bySurface[h] = r
	m.surfaceOf[r.ID] = h
	return prev, had
}

// Detach clears the round's surface. The round stays addressable by id.
func (m *Registry) Detach(r *round.Round) (surface.Handle, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.detachLocked(r.ID)
}

func (m *Registry) detachLocked(id int) (surface.Handle, bool) {
	h, had := m.surfaceOf[id]
	if !had {
		return surface.Handle{}, false
	}
	delete(m.surfaceOf, id)
	if cur, ok := m.bySurface[h]; ok && cur.ID == id {
		delete(m.bySurface, h)
	}
	return h, true
}

// Rounds returns every round ordered by id.
func (m *Registry) Rounds() []*round.Round {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rounds := make([]*round.Round, 0, len(m.rounds))
	for _, r := range m.rounds {
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].ID < rounds[j].ID })
	return rounds
}

// Active counts rounds that have not ended.
func (m *Registry) Active() int {
	active := 0
	for _, r := range m.Rounds() {
		if !r.Ended() {
			active++
		}
	}
	return active
}
