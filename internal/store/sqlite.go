package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/pws-ingestion/internal/weather"
)

var (
	// ErrNotFound is returned when no observations match a query.
	ErrNotFound = errors.New("no observations for query")
)

// SQLiteStore is the durable observation store: one row per observation,
// one column per canonical field, unique on (station_id, date_time).
// Numeric values are stored as one-decimal fixed-precision text so the
// persisted form round-trips byte for byte.
type SQLiteStore struct {
	db *sql.DB

	insertStmt    string
	insertFields  []weather.Field
	selectColumns string
}

// Open opens (or creates) the database at path. Schema creation and
// "already exists" are not errors; a genuinely unreadable file is, and
// the caller is expected to treat that as fatal.
// Use ":memory:" for an in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty database path provided")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY from pooled connections.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	s.prepareStatements()

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate creates the observations table and its natural-key index.
func (s *SQLiteStore) migrate() error {
	var columnDefs []string
	columnDefs = append(columnDefs,
		weather.FieldStationID.Column()+" text not null",
		weather.FieldTimezone.Column()+" text",
		weather.FieldDateTime.Column()+" text not null",
	)
	for _, f := range weather.MetricFields() {
		columnDefs = append(columnDefs, f.Column()+" text")
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS observations (%s);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_observations_natural_key
		ON observations(station_id, date_time);

	CREATE INDEX IF NOT EXISTS idx_observations_date_time
		ON observations(date_time);
	`, strings.Join(columnDefs, ", "))

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// prepareStatements builds the column-ordered insert and select texts once.
func (s *SQLiteStore) prepareStatements() {
	fields := []weather.Field{
		weather.FieldStationID,
		weather.FieldTimezone,
		weather.FieldDateTime,
	}
	fields = append(fields, weather.MetricFields()...)

	names := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Column()
		placeholders[i] = "?"
	}

	s.insertFields = fields
	// INSERT OR IGNORE keeps a duplicate natural key from corrupting the
	// store if the in-memory index and the database ever diverge after a
	// crash between insert and index update.
	s.insertStmt = fmt.Sprintf("INSERT OR IGNORE INTO observations (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	s.selectColumns = strings.Join(names, ", ")
}

// Insert appends a single observation. Inserting an observation whose
// natural key already exists is a no-op, not an error.
func (s *SQLiteStore) Insert(obs weather.Observation) error {
	if obs.StationID == "" || obs.ObservedAt == "" {
		return fmt.Errorf("observation is missing station ID or observation time")
	}

	values := make([]any, len(s.insertFields))
	for i, f := range s.insertFields {
		switch f {
		case weather.FieldStationID:
			values[i] = obs.StationID
		case weather.FieldTimezone:
			values[i] = obs.Timezone
		case weather.FieldDateTime:
			values[i] = obs.ObservedAt
		default:
			if v, ok := obs.Metrics[f]; ok {
				values[i] = v
			} else {
				values[i] = nil
			}
		}
	}

	if _, err := s.db.Exec(s.insertStmt, values...); err != nil {
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

// ScanKeys streams the natural key of every persisted observation.
func (s *SQLiteStore) ScanKeys(fn func(stationID, observedAt string) error) error {
	rows, err := s.db.Query("SELECT station_id, date_time FROM observations")
	if err != nil {
		return fmt.Errorf("failed to scan observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stationID, observedAt string
		if err := rows.Scan(&stationID, &observedAt); err != nil {
			return fmt.Errorf("failed to scan observation key: %w", err)
		}
		if err := fn(stationID, observedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetRange returns observations for a station between two local
// timestamps (inclusive), ordered by observation time.
func (s *SQLiteStore) GetRange(stationID, from, to string) ([]weather.Observation, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM observations WHERE station_id = ? AND date_time >= ? AND date_time <= ? ORDER BY date_time",
		s.selectColumns)
	rows, err := s.db.Query(query, stationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []weather.Observation
	for rows.Next() {
		obs, err := s.scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, ErrNotFound
	}
	return observations, nil
}

func (s *SQLiteStore) scanObservation(rows *sql.Rows) (weather.Observation, error) {
	values := make([]sql.NullString, len(s.insertFields))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return weather.Observation{}, fmt.Errorf("failed to scan observation: %w", err)
	}

	obs := weather.Observation{Metrics: make(map[weather.Field]string)}
	for i, f := range s.insertFields {
		if !values[i].Valid {
			continue
		}
		switch f {
		case weather.FieldStationID:
			obs.StationID = values[i].String
		case weather.FieldTimezone:
			obs.Timezone = values[i].String
		case weather.FieldDateTime:
			obs.ObservedAt = values[i].String
		default:
			obs.Metrics[f] = values[i].String
		}
	}
	return obs, nil
}
