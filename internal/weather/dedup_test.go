package weather

import "testing"

func TestDedupIndex(t *testing.T) {
	index := NewDedupIndex()

	if index.IsKnown("XY123", "2025-05-01 18:39:49") {
		t.Fatal("empty index should not know any observation")
	}

	index.MarkKnown("XY123", "2025-05-01 18:39:49")
	if !index.IsKnown("XY123", "2025-05-01 18:39:49") {
		t.Fatal("marked observation should be known")
	}
	if index.IsKnown("XY123", "2025-05-01 18:44:49") {
		t.Fatal("different timestamp should not be known")
	}
	if index.IsKnown("XY999", "2025-05-01 18:39:49") {
		t.Fatal("different station should not be known")
	}

	// Marking again is a no-op.
	index.MarkKnown("XY123", "2025-05-01 18:39:49")
	index.MarkKnown("XY123", "2025-05-01 18:44:49")
	index.MarkKnown("XY999", "2025-05-01 18:39:49")

	if got := index.Stations(); got != 2 {
		t.Errorf("expected 2 stations, got %d", got)
	}
	if got := index.Size(); got != 3 {
		t.Errorf("expected 3 known observations, got %d", got)
	}
}
