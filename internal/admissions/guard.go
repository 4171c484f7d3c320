package admissions

import (
	"fmt"

	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/models"
)

// DuplicateError rejects a second application for the same email and pathway.
type DuplicateError struct {
	Email   string
	Program models.Program
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("An institutional alignment request for the %s pathway has already been recorded for this credential (%s).",
		e.Program, e.Email)
}

func (e *DuplicateError) Unwrap() error { return apperr.ErrDuplicate }

// IsDuplicate reports whether apps already holds an application with the same
// email, compared case-insensitively, for exactly the same program.
func IsDuplicate(apps []models.Application, email string, program models.Program) bool {
	for _, a := range apps {
		if a.Program == program && models.EmailEqual(a.Email, email) {
			return true
		}
	}
	return false
}
