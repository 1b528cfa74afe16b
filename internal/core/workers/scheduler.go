package workers

import (
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/clock"
	"github.com/rs/zerolog"
)

const Day = 24 * time.Hour

// DayScheduler calls its tick function at the next local midnight and every
// 24 hours after that.
type DayScheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	onTick  func(now time.Time)
	logger  zerolog.Logger
	oneShot clock.Timer
	repeat  clock.Timer
	gen     uint64
}

func NewDayScheduler(clk clock.Clock, onTick func(now time.Time), logger zerolog.Logger) *DayScheduler {
	return &DayScheduler{
		clock:  clk,
		onTick: onTick,
		logger: logger,
	}
}

// Start arms the midnight timer. Calling it again re-arms from scratch.
func (s *DayScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	gen := s.gen

	now := s.clock.Now()
	next := NextMidnight(now)
	s.oneShot = s.clock.AfterFunc(next.Sub(now), func() { s.fire(gen) })

	s.logger.Debug().Time("next", next).Msg("[SCHEDULER] Armed day boundary")
}

func (s *DayScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether a timer is armed.
func (s *DayScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oneShot != nil || s.repeat != nil
}

func (s *DayScheduler) stopLocked() {
	s.gen++
	if s.oneShot != nil {
		s.oneShot.Stop()
		s.oneShot = nil
	}
	if s.repeat != nil {
		s.repeat.Stop()
		s.repeat = nil
	}
}

func (s *DayScheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.oneShot = nil
	s.repeat = s.clock.AfterFunc(Day, func() { s.fire(gen) })
	s.mu.Unlock()

	s.onTick(s.clock.Now())
}

// NextMidnight returns the first local midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
