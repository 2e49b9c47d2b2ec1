package alert

import (
	"sort"
	"sync"
	"time"
)

// Key identifies one cooldown slot.
type Key struct {
	Zone  string
	Class string
}

// state is the cooldown bookkeeping for a single key. The per-state mutex is
// the only point where claims for that key are decided.
type state struct {
	lastTriggered time.Time
	triggered     bool
	cooldown      time.Duration
	mutex         sync.Mutex
}

// ready reports whether the cooldown has elapsed at now.
func (s *state) ready(now time.Time) bool {
	return !s.triggered || now.Sub(s.lastTriggered) >= s.cooldown
}

// Gate decides whether a detection may raise a new alert for its (zone, class)
// pair. Keys are created on first use and live for the whole run.
type Gate struct {
	cooldown    time.Duration
	states      map[Key]*state
	statesMutex sync.RWMutex
}

// NewGate creates a gate applying cooldown to every key.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		states:   make(map[Key]*state),
	}
}

// TryTrigger claims a trigger for (zone, class) at now. It returns true and
// records now exactly when the key is ready; otherwise it changes nothing.
func (g *Gate) TryTrigger(zone, class string, now time.Time) bool {
	s := g.getState(Key{Zone: zone, Class: class})

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.ready(now) {
		return false
	}
	s.lastTriggered = now
	s.triggered = true
	return true
}

// Remaining returns how much cooldown is left for the key at now, zero when ready.
func (g *Gate) Remaining(zone, class string, now time.Time) time.Duration {
	g.statesMutex.RLock()
	s, exists := g.states[Key{Zone: zone, Class: class}]
	g.statesMutex.RUnlock()
	if !exists {
		return 0
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.ready(now) {
		return 0
	}
	return s.cooldown - now.Sub(s.lastTriggered)
}

// Cooldown is the time left before a key may trigger again.
type Cooldown struct {
	Zone      string        `json:"zone"`
	Class     string        `json:"class"`
	Remaining time.Duration `json:"remaining_ns"`
}

// Cooling returns the keys still in cooldown at now, ordered by zone then class.
func (g *Gate) Cooling(now time.Time) []Cooldown {
	g.statesMutex.RLock()
	keys := make([]Key, 0, len(g.states))
	for key := range g.states {
		keys = append(keys, key)
	}
	g.statesMutex.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Zone != keys[j].Zone {
			return keys[i].Zone < keys[j].Zone
		}
		return keys[i].Class < keys[j].Class
	})

	var out []Cooldown
	for _, key := range keys {
		if left := g.Remaining(key.Zone, key.Class, now); left > 0 {
			out = append(out, Cooldown{Zone: key.Zone, Class: key.Class, Remaining: left})
		}
	}
	return out
}

// Len returns the number of keys observed so far.
func (g *Gate) Len() int {
	g.statesMutex.RLock()
	defer g.statesMutex.RUnlock()
	return len(g.states)
}

// getState returns the state for key, creating it when absent.
func (g *Gate) getState(key Key) *state {
	g.statesMutex.RLock()
	s, exists := g.states[key]
	g.statesMutex.RUnlock()

	if exists {
		return s
	}

	g.statesMutex.Lock()
	defer g.statesMutex.Unlock()
	// Another caller may have created it meanwhile.
	if s, exists := g.states[key]; exists {
		return s
	}

	s = &state{cooldown: g.cooldown}
	g.states[key] = s
	return s
}
