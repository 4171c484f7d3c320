package api

import (
	"time"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/models"
)

// SubmitApplicationRequest is the intake form body.
type SubmitApplicationRequest struct {
	FullName   string `json:"fullName" example:"Ada Obi" validate:"required"`
	Email      string `json:"email" example:"seeker@example.org" validate:"required"`
	Phone      string `json:"phone" example:"+234 800 000"`
	Program    string `json:"program" example:"Nexus" validate:"required"`
	Experience string `json:"experience" example:"Youth ministry"`
	Statement  string `json:"statement" example:"I seek formation." validate:"required"`
}

func (r SubmitApplicationRequest) input() admissions.SubmitInput {
	return admissions.SubmitInput{
		FullName:   r.FullName,
		Email:      r.Email,
		Phone:      r.Phone,
		Program:    r.Program,
		Experience: r.Experience,
		Statement:  r.Statement,
	}
}

// DecisionRequest is the body of an administrator decision.
type DecisionRequest struct {
	Status        string  `json:"status" example:"Approved" validate:"required"`
	InternalNotes *string `json:"internalNotes,omitempty" example:"Strong pastoral background"`
}

// JoinWaitlistRequest is the body for joining the waitlist.
type JoinWaitlistRequest struct {
	Email string `json:"email" example:"seeker@example.org" validate:"required"`
}

// JoinWaitlistResponse reports the entry and whether it was newly added.
type JoinWaitlistResponse struct {
	Entry  models.WaitlistEntry `json:"entry" validate:"required"`
	Joined bool                 `json:"joined" validate:"required"`
}

// CycleRequest sets the admissions cycle flag.
type CycleRequest struct {
	CycleOpen *bool `json:"cycleOpen" validate:"required"`
}

// CycleResponse reports the admissions cycle flag.
type CycleResponse struct {
	CycleOpen bool `json:"cycleOpen" validate:"required"`
}

// GuideRequest is a question for the guide.
type GuideRequest struct {
	Prompt string `json:"prompt" example:"What is the Praxis pathway?" validate:"required"`
}

// GuideResponse is the guide's answer.
type GuideResponse struct {
	Text string `json:"text" validate:"required"`
}

// ApplicationListResponse wraps a console listing.
type ApplicationListResponse struct {
	Applications []models.Application `json:"applications" validate:"required"`
	Total        int                  `json:"total" example:"12" validate:"required"`
}

// PortalView is what an applicant sees about their own application.
// Internal notes are never included.
type PortalView struct {
	ID                string                 `json:"id" validate:"required"`
	FullName          string                 `json:"fullName" validate:"required"`
	Email             string                 `json:"email" validate:"required"`
	Program           models.Program         `json:"program" example:"Nexus" validate:"required"`
	Status            models.Status          `json:"status" example:"New" validate:"required"`
	SubmittedAt       time.Time              `json:"submittedAt" validate:"required"`
	CommuniqueHistory []models.Communique    `json:"communiqueHistory" validate:"required"`
	Stature           *models.StatureMetrics `json:"stature,omitempty"`
}

func newPortalView(a models.Application) PortalView {
	return PortalView{
		ID:                a.ID,
		FullName:          a.FullName,
		Email:             a.Email,
		Program:           a.Program,
		Status:            a.Status,
		SubmittedAt:       a.SubmittedAt,
		CommuniqueHistory: a.CommuniqueHistory,
		Stature:           a.Stature,
	}
}
