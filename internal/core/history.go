package core

import (
	"sync"
	"time"
)

// RunAction names what a recorded run did.
type RunAction string

const (
	ActionImport       RunAction = "import"
	ActionImportConfig RunAction = "import_config"
)

// RunSeverity grades a finished run for the history views.
type RunSeverity string

const (
	SeverityLow    RunSeverity = "low"
	SeverityMedium RunSeverity = "medium"
	SeverityHigh   RunSeverity = "high"
)

// RunRecord is one finished run kept in the history.
type RunRecord struct {
	Action    RunAction     `json:"action"`
	Severity  RunSeverity   `json:"severity"`
	IPAddress string        `json:"ip_address,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
	Result    *ImportResult `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
}

// runSeverity is high for failed runs and medium when rows failed.
func runSeverity(res *ImportResult) RunSeverity {
	switch {
	case res.Status == StatusFailed:
		return SeverityHigh
	case res.Failed > 0 || res.Malformed > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RunHistory keeps the most recent runs in memory, oldest dropped first.
type RunHistory struct {
	mu   sync.RWMutex
	size int
	runs []RunRecord
}

// NewRunHistory returns a history holding at most size runs.
func NewRunHistory(size int) *RunHistory {
	if size <= 0 {
		size = 50
	}
	return &RunHistory{size: size}
}

// Add records a run.
func (h *RunHistory) Add(rec RunRecord) {
	if rec.Severity == "" {
		rec.Severity = runSeverity(rec.Result)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, rec)
	if over := len(h.runs) - h.size; over > 0 {
		h.runs = append(h.runs[:0:0], h.runs[over:]...)
	}
}

// List returns up to limit runs, newest first. A non-positive limit
// returns all of them.
func (h *RunHistory) List(limit int) []RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunRecord, 0, n)
	for i := len(h.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.runs[i])
	}
	return out
}

// Get returns the run with the given id.
func (h *RunHistory) Get(runID string) (RunRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.runs) - 1; i >= 0; i-- {
		if h.runs[i].Result.RunID == runID {
			return h.runs[i], true
		}
	}
	return RunRecord{}, false
}
