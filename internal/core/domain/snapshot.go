package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateSnapshot is a point-in-time copy of a poll's derived counts. It is
// what the read cache holds and what vote submission returns to the caller.
type AggregateSnapshot struct {
	PollID       uuid.UUID `json:"poll_id"`
	VoteCounts   []int64   `json:"vote_counts"`
	TotalVotes   int64     `json:"total_votes"`
	UniqueVoters int64     `json:"unique_voters"`
	ComputedAt   time.Time `json:"computed_at"`

	// Stale marks snapshots served past their freshness bound. Informational:
	// the counts are internally consistent, just possibly behind the ledger.
	Stale bool `json:"stale,omitempty"`
}

// StaleBy reports whether the snapshot is older than maxAge as of now.
func (s *AggregateSnapshot) StaleBy(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.ComputedAt) > maxAge
}

// PollSummary is the listing-view projection: poll metadata joined with its
// aggregate, as consumed by sorted/filtered listings and the top-polls view.
type PollSummary struct {
	ID         uuid.UUID  `json:"id"`
	Question   string     `json:"question"`
	Options    []string   `json:"options"`
	VoteCounts []int64    `json:"vote_counts"`
	TotalVotes int64      `json:"total_votes"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
