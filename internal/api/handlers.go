package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/models"
	"github.com/starford/chancery/internal/scribe"
)

// Handler holds API route handlers.
type Handler struct {
	svc   *admissions.Service
	guide scribe.Generator
}

// NewHandler creates a new Handler. A nil guide answers every question with
// the fixed fallback.
func NewHandler(svc *admissions.Service, guide scribe.Generator) *Handler {
	if guide == nil {
		guide = scribe.Disabled{}
	}
	return &Handler{svc: svc, guide: guide}
}

// GetCycle handles GET /api/cycle.
//
//	@Summary		Report whether the admissions cycle is open
//	@Tags			public
//	@Produce		json
//	@Success		200	{object}	CycleResponse
//	@Router			/cycle [get]
func (h *Handler) GetCycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CycleResponse{CycleOpen: h.svc.CycleOpen()})
}

// SubmitApplication handles POST /api/applications.
//
//	@Summary		Submit an application
//	@Tags			public
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubmitApplicationRequest	true	"Intake form"
//	@Success		201		{object}	PortalView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/applications [post]
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req SubmitApplicationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	app, err := h.svc.Submit(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, "submit application", err)
		return
	}
	writeJSON(w, http.StatusCreated, newPortalView(app))
}

// Portal handles GET /api/portal.
//
//	@Summary		Look up an application by email
//	@Tags			public
//	@Produce		json
//	@Param			email	query		string	true	"Applicant email"
//	@Success		200		{object}	PortalView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/portal [get]
func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'email' is required"))
		return
	}
	app, err := h.svc.Lookup(email)
	if err != nil {
		writeServiceError(w, "portal lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, newPortalView(app))
}

// JoinWaitlist handles POST /api/waitlist.
//
//	@Summary		Join the waitlist
//	@Tags			public
//	@Accept			json
//	@Produce		json
//	@Param			body	body		JoinWaitlistRequest	true	"Email"
//	@Success		201		{object}	JoinWaitlistResponse
//	@Success		200		{object}	JoinWaitlistResponse	"Already on the waitlist"
//	@Failure		400		{object}	errResponse
//	@Router			/waitlist [post]
func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req JoinWaitlistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, joined, err := h.svc.JoinWaitlist(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, "join waitlist", err)
		return
	}
	status := http.StatusOK
	if joined {
		status = http.StatusCreated
	}
	writeJSON(w, status, JoinWaitlistResponse{Entry: entry, Joined: joined})
}

// Guide handles POST /api/guide.
//
//	@Summary		Ask the guide a question
//	@Tags			public
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GuideRequest	true	"Question"
//	@Success		200		{object}	GuideResponse
//	@Failure		400		{object}	errResponse
//	@Router			/guide [post]
func (h *Handler) Guide(w http.ResponseWriter, r *http.Request) {
	var req GuideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Prompt, validation.Required, validation.Length(1, 2000)),
	); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	text, err := h.guide.Generate(r.Context(), req.Prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			slog.Warn("guide unavailable", slog.String("error", err.Error()))
		}
		text = scribe.FallbackGuide
	}
	writeJSON(w, http.StatusOK, GuideResponse{Text: strings.TrimSpace(text)})
}

// Console handles GET /api/admin/console.
//
//	@Summary		Everything the administrative console shows
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	admissions.Console
//	@Security		BearerAuth
//	@Router			/admin/console [get]
func (h *Handler) Console(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Console())
}

// ListApplications handles GET /api/admin/applications.
//
//	@Summary		List applications, newest first
//	@Tags			admin
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(New, Reviewed, Approved, Declined)
//	@Success		200		{object}	ApplicationListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/applications [get]
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	var status models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown status "+raw))
			return
		}
		status = st
	}
	apps := h.svc.List(status)
	writeJSON(w, http.StatusOK, ApplicationListResponse{Applications: apps, Total: len(apps)})
}

// GetApplication handles GET /api/admin/applications/{id}.
//
//	@Summary		Get one application with internal notes
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		string	true	"Application id"
//	@Success		200	{object}	models.Application
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/applications/{id} [get]
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get application", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// DecideApplication handles PATCH /api/admin/applications/{id}.
//
//	@Summary		Record a decision; Approved and Declined dispatch a communique
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Application id"
//	@Param			body	body		DecisionRequest	true	"Decision"
//	@Success		200		{object}	models.Application
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/applications/{id} [patch]
func (h *Handler) DecideApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req DecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, ok := models.ParseStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown status "+req.Status))
		return
	}
	app, err := h.svc.Decide(r.Context(), id, admissions.DecideInput{Status: status, Notes: req.InternalNotes})
	if err != nil {
		writeServiceError(w, "decide application", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// NotifyWaitlist handles POST /api/admin/waitlist/notify.
//
//	@Summary		Summon every waitlisted seeker
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	dispatch.BulkResult
//	@Failure		409	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/waitlist/notify [post]
func (h *Handler) NotifyWaitlist(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.NotifyWaitlist(r.Context())
	if err != nil {
		writeServiceError(w, "notify waitlist", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ClearWaitlist handles DELETE /api/admin/waitlist.
//
//	@Summary		Remove every waitlist entry
//	@Tags			admin
//	@Success		204	"Waitlist cleared"
//	@Security		BearerAuth
//	@Router			/admin/waitlist [delete]
func (h *Handler) ClearWaitlist(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearWaitlist(r.Context()); err != nil {
		writeServiceError(w, "clear waitlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCycle handles PUT /api/admin/cycle.
//
//	@Summary		Open or close the admissions cycle
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CycleRequest	true	"Cycle flag"
//	@Success		200		{object}	CycleResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/cycle [put]
func (h *Handler) SetCycle(w http.ResponseWriter, r *http.Request) {
	var req CycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CycleOpen == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("cycleOpen is required"))
		return
	}
	if err := h.svc.SetCycle(r.Context(), *req.CycleOpen); err != nil {
		writeServiceError(w, "set cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, CycleResponse{CycleOpen: *req.CycleOpen})
}

// ToggleCycle handles POST /api/admin/cycle/toggle.
//
//	@Summary		Flip the admissions cycle
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	CycleResponse
//	@Security		BearerAuth
//	@Router			/admin/cycle/toggle [post]
func (h *Handler) ToggleCycle(w http.ResponseWriter, r *http.Request) {
	open, err := h.svc.ToggleCycle(r.Context())
	if err != nil {
		writeServiceError(w, "toggle cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, CycleResponse{CycleOpen: open})
}

// DispatchState handles GET /api/admin/dispatch.
//
//	@Summary		Current dispatch progress and terminal log
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	dispatch.State
//	@Security		BearerAuth
//	@Router			/admin/dispatch [get]
func (h *Handler) DispatchState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.DispatchState())
}
