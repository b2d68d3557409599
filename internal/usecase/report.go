package usecase

import (
	"time"

	"wisenews_scraper/internal/domain"
)

// KeywordResult is what happened to one keyword during a run.
type KeywordResult struct {
	Keyword       string           `json:"keyword"`
	Collection    string           `json:"collection"`
	Found         int              `json:"found"`
	Skipped       int              `json:"skipped"`
	Stored        int              `json:"stored"`
	Duplicates    int              `json:"duplicates"`
	Emailed       int              `json:"emailed"`
	Published     int              `json:"published"`
	PublishErrors int              `json:"publish_errors"`
	Error         string           `json:"error,omitempty"`
	Articles      []domain.Article `json:"articles,omitempty"`
}

// Report summarises a run.
type Report struct {
	RunID      string          `json:"run_id"`
	Delivery   domain.Delivery `json:"delivery"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Keywords   []KeywordResult `json:"keywords"`
}

// Failed counts keywords that ended with an error.
func (r *Report) Failed() int {
	n := 0
	for _, k := range r.Keywords {
		if k.Error != "" {
			n++
		}
	}
	return n
}

// Totals sums the counters over every keyword.
func (r *Report) Totals() KeywordResult {
	var t KeywordResult
	for _, k := range r.Keywords {
		t.Found += k.Found
		t.Skipped += k.Skipped
		t.Stored += k.Stored
		t.Duplicates += k.Duplicates
		t.Emailed += k.Emailed
		t.Published += k.Published
		t.PublishErrors += k.PublishErrors
	}
	return t
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
