package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

type VoteHandler struct {
	service     ports.VoteService
	eligibility ports.EligibilityChecker
}

func NewVoteHandler(service ports.VoteService, eligibility ports.EligibilityChecker) *VoteHandler {
	return &VoteHandler{
		service:     service,
		eligibility: eligibility,
	}
}

type voteRequest struct {
	OptionIndex *int `json:"option_index"`
}

func (h *VoteHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionIndex == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	voterID, ok := r.Context().Value(VoterIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	input := ports.SubmitVoteInput{
		PollID:      pollID,
		OptionIndex: *req.OptionIndex,
		VoterID:     voterID,
	}

	snapshot, err := h.service.Submit(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPollNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidOption):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrDuplicateVote):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrPollInactive), errors.Is(err, domain.ErrPollExpired):
			http.Error(w, err.Error(), http.StatusGone)
		case errors.Is(err, domain.ErrTransient):
			http.Error(w, "temporarily unavailable, retry", http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, snapshot)
}

func (h *VoteHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	voterID, ok := r.Context().Value(VoterIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	if err := h.service.Retract(r.Context(), pollID, voterID); err != nil {
		switch {
		case errors.Is(err, domain.ErrPollNotFound), errors.Is(err, domain.ErrDidNotVote):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetEligibility is the pre-flight UX check; advisory only, the vote path
// re-validates.
func (h *VoteHandler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	voterID, ok := r.Context().Value(VoterIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	resp := map[string]any{"eligible": true}
	if err := h.eligibility.Check(r.Context(), pollID, voterID); err != nil {
		resp["eligible"] = false
		resp["reason"] = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}
