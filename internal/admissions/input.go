package admissions

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/models"
)

// SubmitInput is an intake form submission.
type SubmitInput struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Program    string `json:"program"`
	Experience string `json:"experience"`
	Statement  string `json:"statement"`

	// Acknowledgment overrides the System communique text when non-empty.
	// It is set only by in-process callers and never decoded from a request.
	Acknowledgment string `json:"-"`
}

func (in *SubmitInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Program = strings.TrimSpace(in.Program)
	in.Experience = strings.TrimSpace(in.Experience)
	in.Statement = strings.TrimSpace(in.Statement)
}

// Validate checks the required fields.
func (in SubmitInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Phone, validation.Length(0, 50)),
		validation.Field(&in.Program, validation.Required, validation.By(validProgram)),
		validation.Field(&in.Experience, validation.Length(0, 5000)),
		validation.Field(&in.Statement, validation.Required, validation.Length(1, 10000)),
	)
}

func validProgram(v any) error {
	s, _ := v.(string)
	if _, ok := models.ParseProgram(s); !ok {
		return errors.New("must be one of Nexus, Praxis, Ekballo Lab, Fellowship")
	}
	return nil
}

// UpdateInput changes an application. Nil fields are left as they are.
type UpdateInput struct {
	Status     models.Status
	Notes      *string
	Communique *models.Communique
	Stature    *models.StatureMetrics
}

// DecideInput is an administrator decision from the console.
type DecideInput struct {
	Status models.Status `json:"status"`
	Notes  *string       `json:"internalNotes,omitempty"`
}

func invalid(err error) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
}

func validateEmail(email string) error {
	return validation.Validate(email, validation.Required, is.EmailFormat)
}
