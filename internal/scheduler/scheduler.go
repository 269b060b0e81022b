package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/pws-ingestion/internal/weather"
)

// State is the scheduler's position in its poll state machine.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateIdle         State = "idle"
	StatePolling      State = "polling"
	StatePaused       State = "paused"
)

// Poller is the narrow slice of the ingestion service the scheduler
// drives. TryPoll must not block on fetch completion.
type Poller interface {
	Running() bool
	TryPoll(dates ...string) bool
}

// Scheduler decides once per tick whether to fetch today, yesterday's
// final update, or nothing (outside the active-hours window), then
// re-arms itself. It never blocks on a fetch result.
type Scheduler struct {
	scheduler *gocron.Scheduler
	poller    Poller
	events    weather.Events
	interval  time.Duration

	// Active-hours window [start, end), compared as "HH:MM" strings.
	windowStart string
	windowEnd   string

	mu       sync.Mutex
	state    State
	lastDate string

	// now is a clock hook for tests.
	now func() time.Time
}

// New creates a Scheduler polling at the given interval within the
// [windowStart, windowEnd) active-hours window.
func New(poller Poller, events weather.Events, interval time.Duration, windowStart, windowEnd string) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.Local),
		poller:      poller,
		events:      events,
		interval:    interval,
		windowStart: windowStart,
		windowEnd:   windowEnd,
		state:       StateUnconfigured,
		now:         time.Now,
	}
}

// Start validates the window and begins ticking. The first tick fires
// immediately so a restart resumes ingestion without waiting a full
// interval; deduplication makes the re-poll harmless.
func (s *Scheduler) Start() error {
	if _, err := time.Parse("15:04", s.windowStart); err != nil {
		return fmt.Errorf("invalid active-hours start %q: %w", s.windowStart, err)
	}
	if _, err := time.Parse("15:04", s.windowEnd); err != nil {
		return fmt.Errorf("invalid active-hours end %q: %w", s.windowEnd, err)
	}
	if s.interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	// Seed the date cursor with yesterday so the first in-window tick
	// backfills yesterday's final data before polling today.
	s.mu.Lock()
	s.lastDate = s.now().AddDate(0, 0, -1).Format(weather.DateLayout)
	s.mu.Unlock()

	if _, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.Tick); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	log.Printf("scheduler: ticking every %s, active %s-%s", s.interval, s.windowStart, s.windowEnd)
	return nil
}

// Stop stops the scheduler and cancels any future ticks. In-flight
// fetches are unaffected.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// State returns the current state of the poll state machine.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tick runs one pass of the state machine. It is invoked by the
// underlying scheduler on its fixed cadence and re-arms unconditionally;
// a slow fetch only suppresses the dispatch of a new request.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.poller.Running() {
		s.state = StateUnconfigured
		return
	}

	now := s.now()
	if !s.withinWindow(now.Format("15:04")) {
		s.state = StatePaused
		s.events.StatusUpdate(fmt.Sprintf("Downloading data paused; resuming at %s.", s.windowStart))
		return
	}

	s.state = StatePolling
	today := now.Format(weather.DateLayout)
	if today != s.lastDate {
		// The date rolled over since the last poll: fetch yesterday's
		// final, now-complete data before polling the new day. Only the
		// immediately preceding date is backfilled automatically; older
		// gaps need a manual fetch.
		yesterday := now.AddDate(0, 0, -1).Format(weather.DateLayout)
		if s.poller.TryPoll(yesterday, today) {
			s.lastDate = today
		}
	} else {
		s.poller.TryPoll(today)
	}
	s.state = StateIdle
}

// withinWindow reports whether the "HH:MM" time lies in [start, end).
func (s *Scheduler) withinWindow(hhmm string) bool {
	return hhmm >= s.windowStart && hhmm < s.windowEnd
}
