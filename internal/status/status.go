// Package status keeps the snapshot of the station served over HTTP. The
// loop writes it once per cycle; handlers read it concurrently.
package status

import (
	"sync"
	"time"

	"tempstation/internal/threshold"
)

type Cycle struct {
	ID       string              `json:"id"`
	At       time.Time           `json:"at"`
	Took     string              `json:"took"`
	Verdicts []threshold.Verdict `json:"verdicts"`
	Errors   []string            `json:"errors,omitempty"`
}

type Snapshot struct {
	StationID  int       `json:"station_id"`
	HardwareID string    `json:"hardware_id"`
	Board      string    `json:"board"`
	Sensor     string    `json:"sensor"`
	Interval   string    `json:"interval"`
	Sinks      []string  `json:"sinks"`
	APIBreaker string    `json:"api_breaker,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Cycles     uint64    `json:"cycles"`
	LastCycle  *Cycle    `json:"last_cycle,omitempty"`
}

type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	breaker func() string
}

func NewTracker(base Snapshot, breaker func() string) *Tracker {
	if base.StartedAt.IsZero() {
		base.StartedAt = time.Now()
	}
	return &Tracker{snap: base, breaker: breaker}
}

// Record stores c as the last cycle.
func (t *Tracker) Record(c Cycle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Cycles++
	t.snap.LastCycle = &c
}

// Snapshot returns a copy safe to hand to other goroutines.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastCycle != nil {
		c := *s.LastCycle
		c.Verdicts = append([]threshold.Verdict(nil), c.Verdicts...)
		c.Errors = append([]string(nil), c.Errors...)
		s.LastCycle = &c
	}
	s.Sinks = append([]string(nil), s.Sinks...)
	t.mu.RUnlock()

	if t.breaker != nil {
		s.APIBreaker = t.breaker()
	}
	return s
}
