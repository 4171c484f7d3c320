package models

import "time"

// CommuniqueType classifies an institutional message.
type CommuniqueType string

const (
	CommuniqueSystem    CommuniqueType = "System"
	CommuniqueApproval  CommuniqueType = "Approval"
	CommuniqueRejection CommuniqueType = "Rejection"
	CommuniqueInquiry   CommuniqueType = "Inquiry"
)

// Communique is an immutable audit record of one institutional message.
type Communique struct {
	ID        string         `json:"id"`
	Type      CommuniqueType `json:"type"`
	Subject   string         `json:"subject"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// PrependCommunique returns a new history with c at its head. history is not modified.
func PrependCommunique(history []Communique, c Communique) []Communique {
	out := make([]Communique, 0, len(history)+1)
	out = append(out, c)
	return append(out, history...)
}
