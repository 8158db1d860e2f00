package domain

import "time"

// ChangeType distinguishes the three shapes of history entries.
type ChangeType string

const (
	// ChangeSeverity records the moment a new problem identity appeared,
	// either on creation or on correlation.
	ChangeSeverity ChangeType = "severity"
	// ChangeStatus records a status transition with human-readable reason text.
	ChangeStatus ChangeType = "status"
	// ChangeAction records an explicit operator action. Housekeeping reads
	// these back to compute shelve-timeout deadlines.
	ChangeAction ChangeType = "action"
)

// HistoryEntry is an immutable record of one change to an alert.
// Entries are appended newest-last and evicted oldest-first once the
// configured history limit is exceeded.
type HistoryEntry struct {
	// ID is the id of the write that triggered this entry.
	ID string `json:"id"`

	Event    string     `json:"event"`
	Severity Severity   `json:"severity,omitempty"`
	Status   Status     `json:"status,omitempty"`
	Value    string     `json:"value,omitempty"`
	Text     string     `json:"text,omitempty"`
	Type     ChangeType `json:"type"`

	UpdateTime time.Time `json:"updateTime"`
}

// AppendHistory appends entries to history and trims to limit, dropping the
// oldest entries first. The relative order of surviving entries is preserved.
// A limit of zero or less means unbounded.
func AppendHistory(history []HistoryEntry, limit int, entries ...HistoryEntry) []HistoryEntry {
	merged := make([]HistoryEntry, 0, len(history)+len(entries))
	merged = append(merged, history...)
	merged = append(merged, entries...)

	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}
