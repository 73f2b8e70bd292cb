package domain

import "errors"

var (
	ErrPollNotFound    = errors.New("poll not found")
	ErrPollInactive    = errors.New("poll is not active")
	ErrPollExpired     = errors.New("poll has expired")
	ErrInvalidPollID   = errors.New("invalid poll id")
	ErrInvalidOption   = errors.New("invalid option for this poll")
	ErrInvalidQuestion = errors.New("question is required")
	ErrDuplicateVote   = errors.New("voter has already voted on this poll")
	ErrDidNotVote      = errors.New("voter did not vote on this poll")
	ErrTransient       = errors.New("transient storage error")
)

// Retryable reports whether the caller may safely retry the operation that
// produced err. Validation and eligibility failures are final; only storage
// or queue unavailability is worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
