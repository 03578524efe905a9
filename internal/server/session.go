package server

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxClients bounds the session registry's size (§4.4).
const MaxClients = 42

// SessionTimeout is how long a session may go without a heartbeat before
// it is evicted (§4.4, §5).
const SessionTimeout = 2 * time.Second

// ClientSession is the server's per-peer state (§3, §4.4).
type ClientSession struct {
	Addr            *net.UDPAddr
	AddrKey         string
	SessionID       uint64
	Name            string
	PlayerNo        int8 // -1 if observer
	WatchingGame    bool
	GotNewGameEvent bool
	ReadyToPlay     bool
	LastHeartbeat   time.Time
	NextEventNo     uint32
}

// Registry is the address-keyed session table plus the round-robin cursor
// used for fair delivery (§4.4, §4.5, §9). Session order is a stable slice
// of address keys; removal swaps the erased entry with the last one and
// repoints the cursor so it never reads past the live range.
type Registry struct {
	log *logrus.Entry

	sessions map[string]*ClientSession
	order    []string
	pos      map[string]int // addr key -> index into order
	byName   map[string]string

	cursor int
}

// NewRegistry constructs an empty session registry.
func NewRegistry(log *logrus.Entry) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[string]*ClientSession),
		order:    make([]string, 0, MaxClients),
		pos:      make(map[string]int),
		byName:   make(map[string]string),
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int { return len(r.order) }

// Get looks up a session by peer address.
func (r *Registry) Get(addrKey string) (*ClientSession, bool) {
	s, ok := r.sessions[addrKey]
	return s, ok
}

// NameOwner reports which address (if any) currently holds name.
func (r *Registry) NameOwner(name string) (string, bool) {
	addrKey, ok := r.byName[name]
	return addrKey, ok
}

// insert adds a brand-new session, assuming the caller already checked
// capacity and name uniqueness.
func (r *Registry) insert(s *ClientSession) {
	r.sessions[s.AddrKey] = s
	r.pos[s.AddrKey] = len(r.order)
	r.order = append(r.order, s.AddrKey)
	if s.Name != "" {
		r.byName[s.Name] = s.AddrKey
	}
}

// Remove evicts the session at addrKey, if any, repointing the round-robin
// cursor so it still lands on a live session (or 0 if the registry is now
// empty).
func (r *Registry) Remove(addrKey string) {
	s, ok := r.sessions[addrKey]
	if !ok {
		return
	}
	delete(r.sessions, addrKey)
	if r.byName[s.Name] == addrKey {
		delete(r.byName, s.Name)
	}

	i := r.pos[addrKey]
	last := len(r.order) - 1
	r.order[i] = r.order[last]
	r.pos[r.order[i]] = i
	r.order = r.order[:last]
	delete(r.pos, addrKey)

	if len(r.order) == 0 {
		r.cursor = 0
	} else if r.cursor > i || r.cursor >= len(r.order) {
		// The removed slot's replacement now lives at i. A cursor still in
		// range keeps its index (at i it now names the moved session; past
		// i it still names the same session); one that fell off the end
		// wraps to 0.
		r.cursor = r.cursor % len(r.order)
	}
}

// rename updates the name index when a session rebinds to a new name
// (admission case 2, name unchanged is the common path and a no-op here).
func (r *Registry) rename(s *ClientSession, newName string) {
	if s.Name != "" && r.byName[s.Name] == s.AddrKey {
		delete(r.byName, s.Name)
	}
	s.Name = newName
	if newName != "" {
		r.byName[newName] = s.AddrKey
	}
}

// AdmissionResult reports what Admit decided to do with an inbound
// heartbeat, for logging and metrics.
type AdmissionResult int

const (
	AdmissionDropped AdmissionResult = iota
	AdmissionAccepted
	AdmissionNewSession
	AdmissionEvicted
)

// Admit runs the §4.4 admission state machine for a heartbeat received
// from addr, applying steps 1-5 (admission/rebind decision, session reset,
// bookkeeping refresh, and the ready_to_play latch). Step 6 — propagating
// turnDirection onto the simulation's player list when PlayerNo != -1 — is
// left to the caller, which owns the Game. gameInProgress tells a freshly
// admitted session whether it should start watching immediately.
func (r *Registry) Admit(addr *net.UDPAddr, sessionID uint64, name string, turnDirection int8, nextEventNo uint32, now time.Time, gameInProgress bool) (*ClientSession, AdmissionResult) {
	addrKey := addr.String()
	existing, known := r.sessions[addrKey]

	newSession := false

	if !known {
		if r.Len() >= MaxClients {
			return nil, AdmissionDropped
		}
		if owner, taken := r.byName[name]; taken && owner != addrKey {
			return nil, AdmissionDropped
		}
		existing = &ClientSession{Addr: addr, AddrKey: addrKey}
		r.insert(existing)
		newSession = true
	} else if sessionID != existing.SessionID {
		// Rebind: a known peer starting a new logical session.
		if name != existing.Name {
			if owner, taken := r.byName[name]; taken && owner != addrKey {
				r.Remove(addrKey)
				return nil, AdmissionDropped
			}
		}
		newSession = true
	} else if name != existing.Name {
		// Same session, different name: malicious or stale, drop outright.
		return nil, AdmissionDropped
	}

	if newSession {
		existing.SessionID = sessionID
		r.rename(existing, name)
		existing.PlayerNo = -1
		existing.WatchingGame = gameInProgress
		existing.ReadyToPlay = false
		existing.GotNewGameEvent = true
	}

	existing.LastHeartbeat = now
	existing.NextEventNo = nextEventNo
	if !existing.ReadyToPlay && !gameInProgress && turnDirection != 0 {
		existing.ReadyToPlay = true
	}

	result := AdmissionAccepted
	if newSession {
		result = AdmissionNewSession
	}
	return existing, result
}

// SweepStale evicts every session whose last heartbeat is older than
// SessionTimeout, returning the evicted sessions for the caller to log.
func (r *Registry) SweepStale(now time.Time) []*ClientSession {
	var evicted []*ClientSession
	for _, addrKey := range append([]string(nil), r.order...) {
		s := r.sessions[addrKey]
		if now.Sub(s.LastHeartbeat) > SessionTimeout {
			r.Remove(addrKey)
			evicted = append(evicted, s)
		}
	}
	return evicted
}

// CursorSession returns the session the round-robin cursor currently
// points at, or nil if the registry is empty.
func (r *Registry) CursorSession() *ClientSession {
	if len(r.order) == 0 {
		return nil
	}
	return r.sessions[r.order[r.cursor]]
}

// AdvanceCursor moves the round-robin cursor to the next session.
func (r *Registry) AdvanceCursor() {
	if len(r.order) == 0 {
		r.cursor = 0
		return
	}
	r.cursor = (r.cursor + 1) % len(r.order)
}

// EvictCursor evicts the session currently under the cursor (the lazy
// eviction path in §4.5 step 3) and leaves the cursor pointing at whatever
// now occupies that slot.
func (r *Registry) EvictCursor() *ClientSession {
	s := r.CursorSession()
	if s == nil {
		return nil
	}
	r.Remove(s.AddrKey)
	return s
}

// ReadyPlayers returns, in no particular order, every session eligible to
// start a new game: non-empty name and ReadyToPlay set (§4.6).
func (r *Registry) ReadyPlayers() []*ClientSession {
	var ready []*ClientSession
	for _, addrKey := range r.order {
		s := r.sessions[addrKey]
		if s.Name != "" && s.ReadyToPlay {
			ready = append(ready, s)
		}
	}
	return ready
}

// All returns every active session, in stable order.
func (r *Registry) All() []*ClientSession {
	out := make([]*ClientSession, len(r.order))
	for i, addrKey := range r.order {
		out[i] = r.sessions[addrKey]
	}
	return out
}
