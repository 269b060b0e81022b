package weather

import (
	"context"
)

// HistoryRequest identifies one day of history for one station.
type HistoryRequest struct {
	StationID string
	APIKey    string
	Date      string // DateLayout
}

// Fetcher abstracts the provider network boundary. Implementations own
// timeout and retry behaviour; the engine treats an error and a timeout
// identically.
type Fetcher interface {
	Name() string
	FetchHistory(ctx context.Context, req HistoryRequest) ([]byte, error)
}

// Store is the contract the durable observation store must satisfy.
type Store interface {
	// Insert appends a single observation. Implementations should reject
	// or ignore a duplicate (station_id, date_time) key as a second line
	// of defense against index/store divergence after a crash.
	Insert(obs Observation) error

	// ScanKeys streams the natural key of every persisted observation,
	// used once at startup to rebuild the deduplication index.
	ScanKeys(fn func(stationID, observedAt string) error) error

	// GetRange returns persisted observations for a station between two
	// local timestamps (inclusive), ordered by observation time.
	GetRange(stationID, from, to string) ([]Observation, error)
}

// Events is the status surface exposed to collaborators (log views,
// downstream triggers). Implementations must be safe for concurrent use.
type Events interface {
	// StatusUpdate reports human-readable progress for one cycle.
	StatusUpdate(message string)

	// DataReceived signals that a date has newly-ingested observations.
	DataReceived(date string)
}
