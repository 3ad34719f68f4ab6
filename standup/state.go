package standup

import (
	"sort"
	"sync"
)

// State is the session lifecycle position.
type State int

const (
	StateConnecting State = iota
	StateAwaitingWelcome
	StateJoining
	StateAwaitingNames
	StateStandupActive
	StateEnding
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingWelcome:
		return "awaiting_welcome"
	case StateJoining:
		return "joining"
	case StateAwaitingNames:
		return "awaiting_names"
	case StateStandupActive:
		return "standup_active"
	case StateEnding:
		return "ending"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of session state for observers.
type Snapshot struct {
	State        string   `json:"state"`
	Channel      string   `json:"channel"`
	Nickname     string   `json:"nickname"`
	Started      bool     `json:"started"`
	Participants []string `json:"participants"`
}

// Status holds the latest Snapshot published by a running session. It is
// safe for concurrent use.
type Status struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatus returns a Status reporting the connecting state.
func NewStatus() *Status {
	return &Status{snap: Snapshot{State: StateConnecting.String(), Participants: []string{}}}
}

// Publish replaces the stored snapshot.
func (s *Status) Publish(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Snapshot returns the latest published snapshot.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Participants = append([]string{}, s.snap.Participants...)
	return snap
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
