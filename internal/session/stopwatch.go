package session

import (
	"sync"
	"time"
)

// Stopwatch is the elapsed-time display counter: purely UI feedback,
// independent of the analytics session. It ticks once per second from
// the moment of join and resets to zero on rejoin.
type Stopwatch struct {
	mu      sync.Mutex
	seconds int
	onTick  func(seconds int)
	ticker  *time.Ticker
	done    chan struct{}
	stopped bool
}

func NewStopwatch(onTick func(seconds int)) *Stopwatch {
	s := &Stopwatch{
		onTick: onTick,
		ticker: time.NewTicker(time.Second),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stopwatch) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.mu.Lock()
			s.seconds++
			n := s.seconds
			fn := s.onTick
			s.mu.Unlock()
			if fn != nil {
				fn(n)
			}
		}
	}
}

// Reset zeroes the counter for a rejoin.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	s.seconds = 0
	s.mu.Unlock()
}

func (s *Stopwatch) Seconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seconds
}

// Stop halts ticking; safe to call more than once.
func (s *Stopwatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.ticker.Stop()
	close(s.done)
}
