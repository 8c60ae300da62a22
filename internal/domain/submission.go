package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxMessageLength is the cap on message length, in characters.
// Keep in sync with the max tag on Submission.Message.
const MaxMessageLength = 5000

// DefaultHoneypotField is the hidden form input bots tend to fill in.
const DefaultHoneypotField = "website"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Submission is one contact-form post. It lives for a single request.
type Submission struct {
	Name    string `validate:"required"`
	Email   string `validate:"required,email"`
	Phone   string
	Message string `validate:"required,max=5000"`

	// Website holds the honeypot value. Humans never see the input.
	Website string
}

// NewSubmission builds a Submission from parsed form fields, trimming every value.
func NewSubmission(fields map[string]string, honeypotField string) Submission {
	if honeypotField == "" {
		honeypotField = DefaultHoneypotField
	}
	get := func(key string) string {
		return strings.TrimSpace(fields[key])
	}
	return Submission{
		Name:    get("name"),
		Email:   get("email"),
		Phone:   get("phone"),
		Message: get("message"),
		Website: get(honeypotField),
	}
}

// IsBot reports whether the honeypot field was filled in.
func (s Submission) IsBot() bool {
	return s.Website != ""
}

// Validate checks required fields first, then the message length, then the
// email format. The returned error is an EINVALID domain error whose message
// is safe to show to the submitter.
func (s Submission) Validate() error {
	const op = "submission.validate"

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Internal(err, op, "validator failed")
	}

	tags := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		tags[fe.Tag()] = true
	}

	switch {
	case tags["required"]:
		return Invalid(op, "Please fill in your name, email, and message.")
	case tags["max"]:
		return Invalid(op, fmt.Sprintf("Your message is too long (maximum %d characters).", MaxMessageLength))
	case tags["email"]:
		return Invalid(op, "Please provide a valid email address.")
	default:
		return Invalid(op, "Please check the form and try again.")
	}
}
