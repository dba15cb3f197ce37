package services

import (
	"slices"
	"sync"
	"time"

	"hostpulse/internal/models"
)

// EventType names what changed in the published state.
type EventType string

const (
	EventSnapshot    EventType = "snapshot"
	EventConnections EventType = "connections"
	EventAlert       EventType = "alert"
	EventStatus      EventType = "status"
)

// Event is pushed to subscribers whenever the scheduler publishes.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// ConnectionsPayload is the data of an EventConnections event.
type ConnectionsPayload struct {
	Connections models.ConnectionSet   `json:"connections"`
	Stats       models.ConnectionStats `json:"stats"`
}

// StatusPayload is the data of an EventStatus event.
type StatusPayload struct {
	Running bool `json:"running"`
}

// DefaultSubscriberBuffer is the channel size handed out by Subscribe.
const DefaultSubscriberBuffer = 64

// State is the published monitoring state. The scheduler's owner goroutine
// is its only writer; every getter returns a copy.
type State struct {
	mu          sync.RWMutex
	snapshot    *models.SystemSnapshot
	connections models.ConnectionSet
	stats       *models.ConnectionStats
	alerts      []models.Alert
	charts      models.ChartHistory
	bandwidth   []models.BandwidthSample
	running     bool

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

func NewState() *State {
	return &State{
		connections: models.ConnectionSet{Connections: []models.Connection{}},
		alerts:      []models.Alert{},
		charts: models.ChartHistory{
			CPU:     []models.MetricSnapshot{},
			Memory:  []models.MetricSnapshot{},
			Network: []models.MetricSnapshot{},
		},
		bandwidth: []models.BandwidthSample{},
		subs:      make(map[chan Event]struct{}),
	}
}

// Snapshot returns the latest resource reading.
func (s *State) Snapshot() (models.SystemSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return models.SystemSnapshot{}, false
	}
	return *s.snapshot, true
}

func (s *State) Connections() models.ConnectionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.connections
	out.Connections = slices.Clone(s.connections.Connections)
	return out
}

func (s *State) ConnectionStats() (models.ConnectionStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return models.ConnectionStats{}, false
	}
	out := *s.stats
	out.TopProcesses = slices.Clone(s.stats.TopProcesses)
	return out, true
}

func (s *State) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.alerts)
}

func (s *State) Histories() models.ChartHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ChartHistory{
		CPU:     slices.Clone(s.charts.CPU),
		Memory:  slices.Clone(s.charts.Memory),
		Network: slices.Clone(s.charts.Network),
	}
}

// BandwidthHistory returns the last n bandwidth samples, all when n <= 0.
func (s *State) BandwidthHistory(n int) []models.BandwidthSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.bandwidth
	if n > 0 && n < len(src) {
		src = src[len(src)-n:]
	}
	return slices.Clone(src)
}

func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// reading returns what the alert engine evaluates against.
func (s *State) reading() MetricReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var r MetricReading
	if s.snapshot != nil {
		snap := *s.snapshot
		r.Snapshot = &snap
	}
	if s.stats != nil {
		stats := *s.stats
		r.Connections = &stats
	}
	return r
}

func (s *State) previousStats() models.ConnectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return models.ConnectionStats{}
	}
	return *s.stats
}

func (s *State) publishSnapshot(snap models.SystemSnapshot, charts models.ChartHistory, bandwidth []models.BandwidthSample) {
	s.mu.Lock()
	s.snapshot = &snap
	s.charts = charts
	s.bandwidth = bandwidth
	s.mu.Unlock()
	s.broadcast(Event{Type: EventSnapshot, Timestamp: snap.Timestamp, Data: snap})
}

func (s *State) publishConnections(set models.ConnectionSet, stats models.ConnectionStats) {
	s.mu.Lock()
	s.connections = set
	s.stats = &stats
	s.mu.Unlock()
	s.broadcast(Event{
		Type:      EventConnections,
		Timestamp: set.CollectedAt,
		Data:      ConnectionsPayload{Connections: set, Stats: stats},
	})
}

// publishAlerts replaces the alert list and announces the new entries.
func (s *State) publishAlerts(all []models.Alert, fresh []models.Alert) {
	s.mu.Lock()
	s.alerts = all
	s.mu.Unlock()
	for _, a := range fresh {
		s.broadcast(Event{Type: EventAlert, Timestamp: a.Timestamp, Data: a})
	}
}

func (s *State) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
	s.broadcast(Event{Type: EventStatus, Timestamp: time.Now(), Data: StatusPayload{Running: running}})
}

// Subscribe returns a channel receiving every published event and a
// function that cancels the subscription. A subscriber that falls behind
// misses events rather than stalling the publisher.
func (s *State) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *State) broadcast(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
