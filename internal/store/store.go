// Package store holds the latest link state for dashboards: connection
// phase, most recent telemetry with its path history, and the last
// detection batch. Updates fan out to subscribers without blocking.
package store

import (
	"encoding/json"
	"sync"

	"github.com/1ureka/roverlink/internal/protocol"
	"github.com/1ureka/roverlink/internal/session"
	"github.com/1ureka/roverlink/internal/util"
)

// DefaultPathLimit caps the number of retained path points.
const DefaultPathLimit = 1000

const subscriberBuffer = 64

// Event kinds.
const (
	KindStatus     = "status"
	KindTelemetry  = "telemetry"
	KindDetections = "detections"
)

// Point is one position on the traveled path.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Event is a single state change.
type Event struct {
	Kind       string               `json:"kind"`
	Status     *session.Phase       `json:"status,omitempty"`
	Telemetry  *protocol.Telemetry  `json:"telemetry,omitempty"`
	Detections []protocol.Detection `json:"detections,omitempty"`
}

// MarshalJSON always writes the detections array for a detections event, so
// an empty batch reads as "cleared" rather than "missing".
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind != KindDetections {
		type plain Event
		return json.Marshal(plain(e))
	}
	dets := e.Detections
	if dets == nil {
		dets = []protocol.Detection{}
	}
	return json.Marshal(struct {
		Kind       string               `json:"kind"`
		Detections []protocol.Detection `json:"detections"`
	}{e.Kind, dets})
}

// State is a copy of everything the store holds.
type State struct {
	Status     session.Phase        `json:"status"`
	Telemetry  *protocol.Telemetry  `json:"telemetry,omitempty"`
	Path       []Point              `json:"path"`
	Detections []protocol.Detection `json:"detections"`
}

// Store is safe for concurrent use. Its methods match session.Observers.
type Store struct {
	pathLimit int

	mu         sync.RWMutex
	status     session.Phase
	telemetry  *protocol.Telemetry
	path       []Point
	detections []protocol.Detection

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// New creates an empty store. pathLimit <= 0 selects DefaultPathLimit.
func New(pathLimit int) *Store {
	if pathLimit <= 0 {
		pathLimit = DefaultPathLimit
	}
	return &Store{
		pathLimit: pathLimit,
		subs:      make(map[int]chan Event),
	}
}

// Observers returns a session.Observers that writes into the store.
// Streams are not held here; pass a separate Stream observer if needed.
func (s *Store) Observers() session.Observers {
	return session.Observers{
		Status:     s.SetConnectionStatus,
		Telemetry:  s.UpdateTelemetry,
		Detections: s.UpdateDetections,
	}
}

func (s *Store) SetConnectionStatus(p session.Phase) {
	s.mu.Lock()
	s.status = p
	s.mu.Unlock()

	s.broadcast(Event{Kind: KindStatus, Status: &p})
}

// UpdateTelemetry replaces the latest reading and appends its position to
// the path. Readings at 0,0 are treated as "no fix" and not recorded.
func (s *Store) UpdateTelemetry(t protocol.Telemetry) {
	s.mu.Lock()
	s.telemetry = &t
	if t.Latitude != 0 || t.Longitude != 0 {
		s.path = append(s.path, Point{Latitude: t.Latitude, Longitude: t.Longitude})
		if over := len(s.path) - s.pathLimit; over > 0 {
			s.path = append(s.path[:0], s.path[over:]...)
		}
	}
	s.mu.Unlock()

	s.broadcast(Event{Kind: KindTelemetry, Telemetry: &t})
}

func (s *Store) UpdateDetections(d []protocol.Detection) {
	batch := append([]protocol.Detection{}, d...)

	s.mu.Lock()
	s.detections = batch
	s.mu.Unlock()

	s.broadcast(Event{Kind: KindDetections, Detections: batch})
}

// Snapshot copies the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Status:     s.status,
		Path:       append([]Point{}, s.path...),
		Detections: append([]protocol.Detection{}, s.detections...),
	}
	if s.telemetry != nil {
		t := *s.telemetry
		st.Telemetry = &t
	}
	return st
}

// Subscribe returns a channel of future events and a cancel func that
// closes it. Events are dropped for a subscriber whose buffer is full.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) broadcast(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			util.LogWarning("store subscriber %d is full, dropping %s event", id, ev.Kind)
		}
	}
}
