package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vote is a single ledger entry. Rows are immutable once written; the ledger
// is the source of truth from which all aggregate fields are derived.
type Vote struct {
	ID          uuid.UUID `json:"id"`
	PollID      uuid.UUID `json:"poll_id"`
	OptionIndex int       `json:"option_index"`
	VoterID     uuid.UUID `json:"voter_id"`
	CastAt      time.Time `json:"cast_at"`
}
