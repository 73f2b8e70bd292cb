package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinOptions = 2
	MaxOptions = 10
)

type Poll struct {
	ID            uuid.UUID  `json:"id"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Public        bool       `json:"public"`
	Active        bool       `json:"active"`
	AllowMultiple bool       `json:"allow_multiple"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`

	// Aggregate fields are derived from the vote ledger by the aggregation
	// worker and are never written on the submission path. VoteCounts always
	// has one entry per option.
	VoteCounts   []int64 `json:"vote_counts"`
	TotalVotes   int64   `json:"total_votes"`
	UniqueVoters int64   `json:"unique_voters"`
}

// Expired reports whether the poll's deadline has passed as of now.
func (p *Poll) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// ValidOption reports whether idx addresses one of the poll's options.
func (p *Poll) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(p.Options)
}

// ValidateOptions checks the option list rules: 2-10 entries, each non-empty
// after trimming and unique case-insensitively.
func ValidateOptions(options []string) error {
	if len(options) < MinOptions || len(options) > MaxOptions {
		return ErrInvalidOption
	}
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		trimmed := strings.TrimSpace(opt)
		if trimmed == "" {
			return ErrInvalidOption
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			return ErrInvalidOption
		}
		seen[key] = struct{}{}
	}
	return nil
}
