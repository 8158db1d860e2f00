package domain

import (
	"fmt"
	"testing"
)

func TestAppendHistory_Unbounded(t *testing.T) {
	var history []HistoryEntry
	for i := 0; i < 10; i++ {
		history = AppendHistory(history, 0, HistoryEntry{ID: fmt.Sprintf("h%d", i)})
	}
	if len(history) != 10 {
		t.Errorf("len = %v, want 10", len(history))
	}
}

func TestAppendHistory_TrimsOldestFirst(t *testing.T) {
	var history []HistoryEntry
	for i := 0; i < 105; i++ {
		history = AppendHistory(history, 100, HistoryEntry{ID: fmt.Sprintf("h%d", i)})
	}

	if len(history) != 100 {
		t.Fatalf("len = %v, want 100", len(history))
	}
	if history[0].ID != "h5" {
		t.Errorf("oldest = %v, want h5", history[0].ID)
	}
	if history[99].ID != "h104" {
		t.Errorf("newest = %v, want h104", history[99].ID)
	}
}

func TestAppendHistory_BatchLargerThanLimit(t *testing.T) {
	entries := make([]HistoryEntry, 5)
	for i := range entries {
		entries[i] = HistoryEntry{ID: fmt.Sprintf("h%d", i)}
	}

	history := AppendHistory(nil, 3, entries...)
	if len(history) != 3 {
		t.Fatalf("len = %v, want 3", len(history))
	}
	if history[0].ID != "h2" || history[2].ID != "h4" {
		t.Errorf("history = %v, want h2..h4", history)
	}
}

func TestAppendHistory_DoesNotMutateInput(t *testing.T) {
	original := []HistoryEntry{{ID: "h0"}, {ID: "h1"}}
	_ = AppendHistory(original, 100, HistoryEntry{ID: "h2"})

	if len(original) != 2 {
		t.Errorf("original len = %v, want 2", len(original))
	}
}
