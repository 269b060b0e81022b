package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// A station is expected to report every five minutes, so a complete day
// holds 24*12 observations.
const expectedDailyObservations = 24 * 12

// fetchTimeout bounds one provider round trip, including retries.
const fetchTimeout = 60 * time.Second

var (
	// ErrAlreadySet is returned when a write-once configuration value is
	// set a second time. Configuration is write-once to prevent mid-run
	// identity changes.
	ErrAlreadySet = errors.New("value has already been set")

	// ErrNotConfigured is returned when an operation requires setup that
	// has not happened yet.
	ErrNotConfigured = errors.New("not configured")

	// ErrInvalidCredential is returned for an API key that does not match
	// the provider's 32 character lowercase-alphanumeric format.
	ErrInvalidCredential = errors.New("credential does not have a valid format")
)

// Service orchestrates one poll cycle: fetch, normalize, deduplicate,
// persist, report. It is the single writer for both the deduplication
// index and the store; all mutation is serialized under its mutex even
// though fetches complete on their own goroutines.
type Service struct {
	fetcher Fetcher
	events  Events

	mu         sync.Mutex
	store      Store
	normalizer *Normalizer
	index      *DedupIndex

	stationID string
	apiKey    string

	indexLoaded bool
	running     bool
	startTime   time.Time

	// inflight gates the periodic poll path to one outstanding fetch.
	inflight atomic.Bool
}

// NewService creates a Service. The store is attached separately so the
// composition root can surface open failures before any polling starts.
func NewService(fetcher Fetcher, events Events) *Service {
	return &Service{
		fetcher:    fetcher,
		events:     events,
		normalizer: NewNormalizer(),
		index:      NewDedupIndex(),
	}
}

// SetStation sets the station identifier. Write-once.
func (s *Service) SetStation(stationID string) error {
	if stationID == "" {
		return fmt.Errorf("station ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stationID != "" {
		return fmt.Errorf("station ID: %w", ErrAlreadySet)
	}
	s.stationID = stationID
	return nil
}

// SetCredential sets the provider API key after validating its lexical
// format. Write-once.
func (s *Service) SetCredential(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("credential cannot be empty")
	}
	if err := validate.Var(apiKey, "len=32,alphanum,lowercase"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCredential, apiKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiKey != "" {
		return fmt.Errorf("credential: %w", ErrAlreadySet)
	}
	s.apiKey = apiKey
	return nil
}

// AttachStore attaches the opened store. Write-once.
func (s *Service) AttachStore(store Store) error {
	if store == nil {
		return fmt.Errorf("store cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return fmt.Errorf("store: %w", ErrAlreadySet)
	}
	s.store = store
	return nil
}

// LoadIndex rebuilds the deduplication index from a full store scan. This
// is the authoritative recovery path after any crash: storage is the
// durable record and the index is fully rederivable from it. It also
// computes the per-date completeness report.
func (s *Service) LoadIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return fmt.Errorf("store: %w", ErrNotConfigured)
	}
	if s.indexLoaded {
		return fmt.Errorf("index: %w", ErrAlreadySet)
	}

	counts := make(map[string]int)
	err := s.store.ScanKeys(func(stationID, observedAt string) error {
		s.index.MarkKnown(stationID, observedAt)
		if len(observedAt) >= len(DateLayout) {
			counts[observedAt[:len(DateLayout)]]++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan store: %w", err)
	}
	s.indexLoaded = true

	s.events.StatusUpdate(fmt.Sprintf("Database read; %d stations, %d records in total.",
		s.index.Stations(), s.index.Size()))
	if message := completenessMessage(counts); message != "" {
		s.events.StatusUpdate(message)
	}
	return nil
}

// Start flips the engine to running. It refuses until the station ID,
// credential, and an open store have all been configured.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("updates are already running")
	}
	if s.stationID == "" {
		return fmt.Errorf("station ID: %w", ErrNotConfigured)
	}
	if s.apiKey == "" {
		return fmt.Errorf("credential: %w", ErrNotConfigured)
	}
	if s.store == nil {
		return fmt.Errorf("store: %w", ErrNotConfigured)
	}

	s.running = true
	s.startTime = time.Now()
	s.events.StatusUpdate(fmt.Sprintf("Started updates from Weather Underground on %s",
		s.startTime.Format("02 Jan 2006, 15:04:05")))
	return nil
}

// Stop halts periodic ingestion. In-flight fetches are not cancelled;
// their results are still processed and remain idempotent.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("updates not running")
	}
	s.running = false
	s.events.StatusUpdate(fmt.Sprintf("Stopped updates from Weather Underground on %s",
		time.Now().Format("02 Jan 2006, 15:04:05")))
	return nil
}

// Running reports whether periodic ingestion is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Station returns the configured station identifier.
func (s *Service) Station() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stationID
}

// Uptime returns the time since Start as h:mm:ss.
func (s *Service) Uptime() string {
	s.mu.Lock()
	start := s.startTime
	running := s.running
	s.mu.Unlock()

	if !running {
		return "0:00:00"
	}
	secs := int64(time.Since(start).Seconds())
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// TryPoll dispatches one asynchronous poll covering the given dates in
// order, unless a previous periodic fetch is still outstanding. This is
// the scheduler's entry point; it never blocks on the fetch.
func (s *Service) TryPoll(dates ...string) bool {
	if len(dates) == 0 {
		return false
	}
	if !s.inflight.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer s.inflight.Store(false)
		for _, date := range dates {
			s.poll(date)
		}
	}()
	return true
}

// FetchDate requests a specific date outside the normal cadence, for
// backfill or repair. It bypasses the active-hours gate and the periodic
// in-flight guard but shares the same pipeline, so it stays idempotent
// against racing periodic polls.
func (s *Service) FetchDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: expected %s", date, DateLayout)
	}

	s.mu.Lock()
	configured := s.stationID != "" && s.apiKey != "" && s.store != nil
	s.mu.Unlock()
	if !configured {
		return fmt.Errorf("engine: %w", ErrNotConfigured)
	}

	go s.poll(date)
	return nil
}

// poll runs one full cycle for a date. Fetching happens outside the
// mutex; normalization, deduplication, and persistence happen inside it.
// Out-of-order completions are safe because persistence is idempotent
// per natural key.
func (s *Service) poll(date string) {
	s.mu.Lock()
	req := HistoryRequest{StationID: s.stationID, APIKey: s.apiKey, Date: date}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	raw, err := s.fetcher.FetchHistory(ctx, req)
	if err != nil {
		s.events.StatusUpdate(fmt.Sprintf("Fetch for %s failed: %v", date, err))
		return
	}

	s.mu.Lock()
	observations, err := s.normalizer.Parse(raw)
	if err != nil {
		s.mu.Unlock()
		s.events.StatusUpdate(fmt.Sprintf("Rejected batch for %s: %v", date, err))
		return
	}

	var (
		numNew           int
		minTime, maxTime string
		importedDate     = date
	)
	for _, obs := range observations {
		timeOfDay := obs.TimeOfDay()
		if minTime == "" || timeOfDay < minTime {
			minTime = timeOfDay
		}
		if maxTime == "" || timeOfDay > maxTime {
			maxTime = timeOfDay
		}
		importedDate = obs.Date()

		if s.index.IsKnown(obs.StationID, obs.ObservedAt) {
			continue
		}
		if err := s.store.Insert(obs); err != nil {
			// Dropped for this cycle only; the key never enters the
			// index, so the next poll of the same date retries it.
			log.Printf("ingest: failed to store observation %s %s: %v",
				obs.StationID, obs.ObservedAt, err)
			continue
		}
		s.index.MarkKnown(obs.StationID, obs.ObservedAt)
		numNew++
	}
	s.mu.Unlock()

	if numNew > 0 {
		s.events.DataReceived(importedDate)
	}
	if len(observations) == 0 {
		s.events.StatusUpdate(fmt.Sprintf(
			"Obtained update for %s from WU server (no observations)", date))
		return
	}
	s.events.StatusUpdate(fmt.Sprintf(
		"Obtained update for %s from WU server (%d observations, %d new, %s to %s)",
		importedDate, len(observations), numNew, minTime, maxTime))
}

// Observations is the read-back projection, delegating to the store.
func (s *Service) Observations(stationID, from, to string) ([]Observation, error) {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	if store == nil {
		return nil, fmt.Errorf("store: %w", ErrNotConfigured)
	}
	return store.GetRange(stationID, from, to)
}

// completenessMessage summarizes per-date observation counts. Dates with
// no rows are flagged as missing; dates with fewer than a full day of
// readings are flagged as incomplete, except the first and last date of
// the range, which are legitimately partial.
func completenessMessage(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}

	dates := make([]string, 0, len(counts))
	for date := range counts {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	minDate := dates[0]
	maxDate := dates[len(dates)-1]

	start, err := time.Parse(DateLayout, minDate)
	if err != nil {
		return fmt.Sprintf("Observations range from %s to %s.", minDate, maxDate)
	}
	end, err := time.Parse(DateLayout, maxDate)
	if err != nil {
		return fmt.Sprintf("Observations range from %s to %s.", minDate, maxDate)
	}

	var noData, incomplete []string
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(DateLayout)
		count, ok := counts[date]
		switch {
		case !ok || count == 0:
			noData = append(noData, date)
		case count < expectedDailyObservations && date != minDate && date != maxDate:
			incomplete = append(incomplete, date)
		}
	}

	message := fmt.Sprintf("Observations range from %s to %s.", minDate, maxDate)
	if len(incomplete) > 0 {
		message += fmt.Sprintf(" Incomplete data for dates %s.", strings.Join(incomplete, ", "))
	}
	if len(noData) > 0 {
		message += fmt.Sprintf(" No data for dates %s.", strings.Join(noData, ", "))
	}
	return message
}
