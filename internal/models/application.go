// Package models defines the domain types for Chancery.
package models

import (
	"strings"
	"time"
)

// Status is the disposition of an application.
type Status string

const (
	StatusNew      Status = "New"
	StatusReviewed Status = "Reviewed"
	StatusApproved Status = "Approved"
	StatusDeclined Status = "Declined"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNew, StatusReviewed, StatusApproved, StatusDeclined}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusReviewed, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Terminal reports whether s ends automatic notification for an application.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// ParseStatus matches s against the known statuses, ignoring case.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Program is one of the four enrollment pathways.
type Program string

const (
	ProgramNexus      Program = "Nexus"
	ProgramPraxis     Program = "Praxis"
	ProgramEkballo    Program = "Ekballo Lab"
	ProgramFellowship Program = "Fellowship"
)

// Programs lists every pathway.
var Programs = []Program{ProgramNexus, ProgramPraxis, ProgramEkballo, ProgramFellowship}

var programTracks = map[Program]string{
	ProgramNexus:      "Foundations",
	ProgramPraxis:     "Formation",
	ProgramEkballo:    "Deployment",
	ProgramFellowship: "Covering",
}

// Track returns the descriptive track name of the pathway (e.g. "Foundations").
func (p Program) Track() string {
	return programTracks[p]
}

// Valid reports whether p is a canonical pathway name.
func (p Program) Valid() bool {
	_, ok := programTracks[p]
	return ok
}

// ParseProgram accepts either the canonical pathway name or its track name,
// case-insensitively, and returns the canonical Program.
func ParseProgram(s string) (Program, bool) {
	s = strings.TrimSpace(s)
	for p, track := range programTracks {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, track) {
			return p, true
		}
	}
	return "", false
}

// StatureMetrics is the four-axis profile attached to approved applicants.
type StatureMetrics struct {
	Doctrine  int `json:"doctrine"`
	Weight    int `json:"weight"`
	Character int `json:"character"`
	Vision    int `json:"vision"`
}

// Application is one applicant's record.
type Application struct {
	ID                string          `json:"id"`
	FullName          string          `json:"fullName"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Program           Program         `json:"program"`
	Experience        string          `json:"experience"`
	Statement         string          `json:"statement"`
	Status            Status          `json:"status"`
	SubmittedAt       time.Time       `json:"submittedAt"`
	InternalNotes     string          `json:"internalNotes,omitempty"`
	CommuniqueHistory []Communique    `json:"communiqueHistory"`
	Stature           *StatureMetrics `json:"stature,omitempty"`
}

// Clone returns a deep copy of a.
func (a Application) Clone() Application {
	out := a
	out.CommuniqueHistory = append([]Communique(nil), a.CommuniqueHistory...)
	if out.CommuniqueHistory == nil {
		out.CommuniqueHistory = []Communique{}
	}
	if a.Stature != nil {
		s := *a.Stature
		out.Stature = &s
	}
	return out
}

// WaitlistEntry is one address waiting for the next admissions cycle.
type WaitlistEntry struct {
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
}

// EmailEqual compares two addresses the way every registry in Chancery does.
func EmailEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
