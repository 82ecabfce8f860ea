// Package contact validates contact form submissions. Submissions are never
// delivered anywhere.
package contact

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MinMessageLength is the shortest accepted message after trimming.
const MinMessageLength = 10

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Form is a contact form submission.
type Form struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Subject string `form:"subject" json:"subject"`
	Message string `form:"message" json:"message"`
}

// Normalize trims surrounding whitespace from every field.
func (f *Form) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)
}

// Validate checks the trimmed form. The returned error is a
// validation.Errors keyed by the json field name.
func (f Form) Validate() error {
	f.Normalize()
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required.Error("Name is required")),
		validation.Field(&f.Email,
			validation.Required.Error("Email is required"),
			validation.Match(emailPattern).Error("Please enter a valid email"),
		),
		validation.Field(&f.Subject, validation.Required.Error("Subject is required")),
		validation.Field(&f.Message,
			validation.Required.Error("Message is required"),
			validation.RuneLength(MinMessageLength, 0).Error("Message should be at least 10 characters"),
		),
	)
}

// FieldErrors flattens a validation error into field → message.
// It returns nil when err carries no field errors.
func FieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for field, e := range verrs {
		if e != nil {
			out[field] = e.Error()
		}
	}
	return out
}
