package model

import "time"

// PreloadReport summarises one preload run over a page
type PreloadReport struct {
	PageURL    string           `json:"page_url"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"duration"`
	Candidates []LinkCandidate  `json:"candidates"`
	Outcomes   []PreloadOutcome `json:"outcomes"`
	Cache      CacheStats       `json:"cache"`
}

// PreloadOutcome records what happened to a single candidate
type PreloadOutcome struct {
	URL      string        `json:"url"`
	Status   OutcomeStatus `json:"status"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// OutcomeStatus classifies a candidate's result
type OutcomeStatus string

const (
	OutcomePreloaded OutcomeStatus = "preloaded" // fetched and stored
	OutcomeCached    OutcomeStatus = "cached"    // already warm, not fetched
	OutcomeInFlight  OutcomeStatus = "in_flight" // duplicate of a URL being fetched
	OutcomeFailed    OutcomeStatus = "failed"    // fetch error, dropped
	OutcomeRejected  OutcomeStatus = "rejected"  // fetched but the cache refused the entry
)

// Counts tallies outcomes by status
func (r *PreloadReport) Counts() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// CacheStats is a read-only snapshot of a preload cache
type CacheStats struct {
	EntryCount         int     `json:"entry_count"`
	TotalSize          int64   `json:"total_size"`
	MaxSize            int64   `json:"max_size"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	Evictions          int64   `json:"evictions"`
	Expirations        int64   `json:"expirations"`
	Rejections         int64   `json:"rejections"`
}
