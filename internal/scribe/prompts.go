package scribe

import (
	"fmt"

	"github.com/starford/chancery/internal/models"
)

// Fixed texts used when the generator fails or returns nothing.
const (
	FallbackDecision       = "Alignment result pending further institutional review."
	FallbackSummons        = "The gates of the Hub are now open. Your season of formation has arrived. Proceed to the registry."
	FallbackAcknowledgment = "Your alignment request has been successfully recorded within the Chancery archives. Prepare for the labor ahead."
	FallbackGuide          = "The Apostolic Guide encountered a momentary discernment challenge. Please inquire again."
)

// GuideInstruction is the system instruction sent with every generation request.
const GuideInstruction = `You are the Apostolic Guide for SFATH (Spirit Filled Apostolic Training Hub).
Your tone is sacred, serious, encouraging, authoritative yet humble.
SFATH's mission is "Raising a global company of Spirit-filled apostles for Kingdom advancement. Restoring apostolic order across the nations."
The training pathways are:
1. **Nexus (Foundations)** - Twelve-week immersion into the core tenets.
2. **Praxis (Formation)** - Nine-month journey of spiritual discipline.
3. **Ekballo Lab (Deployment)** - Six-month intensive for strategic mission.
4. **Fellowship (Covering)** - Ongoing institutional alignment.
Direct interested students to enrollment/admissions. Keep responses concise but spiritually weighted.
Speak in high institutional language. Use terms like "Alignment", "Governance", "Chancery", "Vault", "Pathways".
Use **bolding** (double asterisks) for important terms like Pathway names.`

// ApprovalPrompt drafts an acceptance letter.
func ApprovalPrompt(fullName string, program models.Program, experience string) string {
	return fmt.Sprintf(`Draft a formal acceptance email for SFATH Hub.
Applicant: %s
Program: %s
Background: %s
Tone: High-institutional, sacred, welcoming, visionary. Max 100 words.`, fullName, program, experience)
}

// DeclinePrompt drafts a rejection letter from name and pathway only.
func DeclinePrompt(fullName string, program models.Program) string {
	return fmt.Sprintf(`Draft a respectful but firm institutional rejection letter for SFATH.
Applicant: %s
Program: %s
Tone: Serious, spiritually encouraging but final. Max 80 words.`, fullName, program)
}

// SummonsPrompt announces the opening of an admissions cycle to the waitlist.
func SummonsPrompt(year int) string {
	return fmt.Sprintf(`Draft a prestigious and sacred "Apostolic Summons" notification for seekers on the SFATH waitlist.
Context: The Admissions Cycle for %d is now officially OPEN.
Call to Action: Visit the Digital Hub to begin your formation pathway (Nexus).
Tone: High-institutional, spiritually urgent, visionary, and welcoming.
Length: Max 100 words.`, year)
}

// AcknowledgmentPrompt drafts the "Decree of Receipt" recorded at submission.
func AcknowledgmentPrompt(fullName string, program models.Program) string {
	return fmt.Sprintf(`Draft a prestigious, spiritually weighty "Decree of Receipt" for an applicant.
Name: %s
Pathway: %s
Context: They have just submitted their application to SFATH.
Tone: Institutional, sacred, encouraging, visionary.
Length: 3-4 sentences.`, fullName, program)
}
