// Package session pairs start/end events for usage analytics and runs
// the per-join elapsed display counter.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type record struct {
	context  string
	start    time.Time
	ended    bool
	duration time.Duration
}

// Tracker correlates analytics sessions by opaque id. End is
// idempotent: teardown paths may race the explicit leave and both can
// call it safely.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*record
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*record), now: time.Now}
}

// NewTrackerWithClock injects the clock for tests.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{sessions: make(map[string]*record), now: now}
}

// Start begins wall-clock timing and returns the correlation id. The
// caller must keep the id somewhere durable enough that abrupt
// teardown can still end the session.
func (t *Tracker) Start(context string) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.sessions[id] = &record{context: context, start: t.now()}
	t.mu.Unlock()
	log.Debug().Str("module", "session").Str("id", id).Str("context", context).Msg("session started")
	return id
}

// End stops timing and records the duration rounded to whole seconds.
// Unknown ids and repeat calls are no-ops.
func (t *Tracker) End(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.sessions[id]
	if !ok {
		return 0, false
	}
	if rec.ended {
		return rec.duration, false
	}
	rec.ended = true
	rec.duration = t.now().Sub(rec.start).Round(time.Second)
	log.Info().Str("module", "session").Str("id", id).Str("context", rec.context).Dur("duration", rec.duration).Msg("session ended")
	return rec.duration, true
}

// Duration reports the recorded duration of an ended session.
func (t *Tracker) Duration(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.sessions[id]
	if !ok || !rec.ended {
		return 0, false
	}
	return rec.duration, true
}
