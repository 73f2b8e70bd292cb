package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewHandler(pollHandler *PollHandler, voteHandler *VoteHandler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	auth := AuthMiddleware(jwtSecret)

	r.Route("/api", func(r chi.Router) {
		r.Route("/polls", func(r chi.Router) {
			r.Get("/", pollHandler.ListPolls)
			r.Get("/{id}", pollHandler.GetPoll)
			r.Get("/{id}/aggregate", pollHandler.GetAggregate)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/", pollHandler.CreatePoll)
				r.Delete("/{id}", pollHandler.DeletePoll)
				r.Patch("/{id}/visibility", pollHandler.SetVisibility)

				r.Post("/{id}/votes", voteHandler.SubmitVote)
				r.Delete("/{id}/votes", voteHandler.RetractVote)
				r.Get("/{id}/eligibility", voteHandler.GetEligibility)
			})
		})
	})

	return r
}
