package weather

// DedupIndex tracks which (station, observation time) pairs are already
// persisted. It is a process-local cache of storage truth, rebuilt from a
// full store scan at startup, and grow-only afterwards.
//
// The index is not safe for concurrent use on its own; the ingestion
// Service serializes all access under its mutex.
type DedupIndex struct {
	known map[string]map[string]struct{}
}

// NewDedupIndex creates an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{
		known: make(map[string]map[string]struct{}),
	}
}

// IsKnown reports whether the observation has already been persisted.
func (d *DedupIndex) IsKnown(stationID, observedAt string) bool {
	times, ok := d.known[stationID]
	if !ok {
		return false
	}
	_, ok = times[observedAt]
	return ok
}

// MarkKnown records the observation as persisted. Callers must only mark
// a key after the store write succeeded; the index must never claim
// persistence that did not happen.
func (d *DedupIndex) MarkKnown(stationID, observedAt string) {
	times, ok := d.known[stationID]
	if !ok {
		times = make(map[string]struct{})
		d.known[stationID] = times
	}
	times[observedAt] = struct{}{}
}

// Stations returns the number of distinct stations in the index.
func (d *DedupIndex) Stations() int {
	return len(d.known)
}

// Size returns the total number of known observations.
func (d *DedupIndex) Size() int {
	total := 0
	for _, times := range d.known {
		total += len(times)
	}
	return total
}
