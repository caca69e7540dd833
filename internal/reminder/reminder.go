// Package reminder fires a callback once a day at a wall-clock time of day.
package reminder

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"
)

var ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM (24-hour, zero-padded)")

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// TimeOfDay is a 24-hour wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Parse accepts only zero-padded 24-hour "HH:MM".
func Parse(value string) (TimeOfDay, error) {
	if !timeOfDayPattern.MatchString(value) {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	h, _ := strconv.Atoi(value[:2])
	m, _ := strconv.Atoi(value[3:])
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// ParseTimeOfDay is Parse with a fallback for malformed input.
func ParseTimeOfDay(value string, fallback TimeOfDay) TimeOfDay {
	tod, err := Parse(value)
	if err != nil {
		slog.Warn("invalid reminder time, using fallback", "value", value, "fallback", fallback.String())
		return fallback
	}
	return tod
}

// NextDelay is the time from now until the next occurrence of tod: today if
// it is still ahead, otherwise tomorrow.
func NextDelay(now time.Time, tod TimeOfDay) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so schedules can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock uses the time package.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type schedule struct {
	clock Clock
	tod   TimeOfDay
	fn    func()

	mu        sync.Mutex
	timer     Timer
	cancelled bool
}

// Schedule arms a daily timer for value (or fallback when value is
// malformed). Each firing calls fn and re-arms for the next day. The returned
// cancel stops the pending timer and prevents any later firing; it is safe to
// call more than once and from inside fn. A callback already running when
// cancel is called is allowed to finish.
func Schedule(clock Clock, value string, fallback TimeOfDay, fn func()) (cancel func()) {
	s := &schedule{clock: clock, tod: ParseTimeOfDay(value, fallback), fn: fn}
	s.arm()
	return s.cancel
}

func (s *schedule) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	delay := NextDelay(s.clock.Now(), s.tod)
	s.timer = s.clock.AfterFunc(delay, s.fire)
	slog.Debug("reminder armed", "at", s.tod.String(), "delay", delay.String())
}

func (s *schedule) fire() {
	s.mu.Lock()
	cancelled := s.cancelled
	s.timer = nil
	s.mu.Unlock()
	if cancelled {
		return
	}
	s.fn()
	s.arm()
}

func (s *schedule) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
