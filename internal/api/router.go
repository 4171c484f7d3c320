package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/scribe"
)

// NewRouter creates a chi router with all API routes mounted.
// Public intake routes are open; everything under /admin requires the shared
// Bearer credential when authEnabled is true.
// sseHandler, if non-nil, is mounted at GET /admin/events.
func NewRouter(svc *admissions.Service, guide scribe.Generator, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, guide)

	r := chi.NewRouter()

	// Intake, portal and waitlist.
	r.Get("/cycle", h.GetCycle)
	r.Post("/applications", h.SubmitApplication)
	r.Get("/portal", h.Portal)
	r.Post("/waitlist", h.JoinWaitlist)
	r.Post("/guide", h.Guide)

	r.Route("/admin", func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Get("/console", h.Console)
		r.Get("/applications", h.ListApplications)
		r.Get("/applications/{id}", h.GetApplication)
		r.Patch("/applications/{id}", h.DecideApplication)

		r.Post("/waitlist/notify", h.NotifyWaitlist)
		r.Delete("/waitlist", h.ClearWaitlist)

		r.Put("/cycle", h.SetCycle)
		r.Post("/cycle/toggle", h.ToggleCycle)

		r.Get("/dispatch", h.DispatchState)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
