package model

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail performs the same shape check as an HTML email input.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// FieldError is one failed field check.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects local form errors before anything is sent.
type ValidationError struct {
	Fields []FieldError
}

// Add records a failed check.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no checks failed.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

// Messages renders each failure as "field message".
func (v *ValidationError) Messages() []string {
	out := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		out = append(out, f.Field+" "+f.Message)
	}
	return out
}

func (v *ValidationError) Error() string {
	return "invalid input: " + strings.Join(v.Messages(), ", ")
}

// Is lets callers match with errors.Is(err, ErrInvalidInput).
func (v *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
