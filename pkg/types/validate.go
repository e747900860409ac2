package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// Field length limits, in characters.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
)

// ValidateDraft checks a create request. It returns criterio.FieldErrors
// listing every offending field, or nil.
func ValidateDraft(d Draft) error {
	var errs criterio.FieldErrorsBuilder
	errs = appendTitle(errs, d.Title)
	errs = appendDescription(errs, d.Description)
	switch {
	case d.Priority == "":
		errs = errs.Append("priority", errors.New("is required"))
	case !d.Priority.Valid():
		errs = errs.Append("priority", invalidEnum(string(d.Priority), "high, medium, low"))
	}
	return errs.ToError()
}

// ValidatePatch checks an update request with the same field rules as
// ValidateDraft, applied only to the fields that are present.
func ValidatePatch(p Patch) error {
	var errs criterio.FieldErrorsBuilder
	if strings.TrimSpace(p.ID) == "" {
		errs = errs.Append("id", errors.New("is required"))
	}
	if p.Title != nil {
		errs = appendTitle(errs, *p.Title)
	}
	if p.Description != nil {
		errs = appendDescription(errs, *p.Description)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		errs = errs.Append("priority", invalidEnum(string(*p.Priority), "high, medium, low"))
	}
	if p.Status != nil && !p.Status.Valid() {
		errs = errs.Append("status", invalidEnum(string(*p.Status), "pending, completed"))
	}
	return errs.ToError()
}

// ValidateTodo checks a stored record read back from a backend: the draft
// field rules plus a known status, both timestamps set, and completedAt
// present exactly when the status is completed.
func ValidateTodo(t Todo) error {
	var errs criterio.FieldErrorsBuilder
	if strings.TrimSpace(t.ID) == "" {
		errs = errs.Append("id", errors.New("is required"))
	}
	errs = appendTitle(errs, t.Title)
	errs = appendDescription(errs, t.Description)
	if !t.Priority.Valid() {
		errs = errs.Append("priority", invalidEnum(string(t.Priority), "high, medium, low"))
	}
	if !t.Status.Valid() {
		errs = errs.Append("status", invalidEnum(string(t.Status), "pending, completed"))
	}
	if t.CreatedAt.IsZero() {
		errs = errs.Append("createdAt", errors.New("is required"))
	}
	if t.UpdatedAt.IsZero() {
		errs = errs.Append("updatedAt", errors.New("is required"))
	}
	if (t.Status == StatusCompleted) != (t.CompletedAt != nil) {
		errs = errs.Append("completedAt", errors.New("must be set exactly when status is completed"))
	}
	return errs.ToError()
}

func appendTitle(errs criterio.FieldErrorsBuilder, title string) criterio.FieldErrorsBuilder {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return errs.Append("title", errors.New("is required"))
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxTitleLength {
		return errs.Append("title", fmt.Errorf("must be at most %d characters (got %d)", MaxTitleLength, n))
	}
	return errs
}

func appendDescription(errs criterio.FieldErrorsBuilder, desc string) criterio.FieldErrorsBuilder {
	if n := utf8.RuneCountInString(desc); n > MaxDescriptionLength {
		return errs.Append("description", fmt.Errorf("must be at most %d characters (got %d)", MaxDescriptionLength, n))
	}
	return errs
}

func invalidEnum(got, valid string) error {
	return fmt.Errorf("invalid value %q (valid: %s)", got, valid)
}

// Invalid wraps field errors from ValidateDraft or ValidatePatch so that the
// result matches ErrValidationFailed and still unwraps to criterio.FieldErrors.
func Invalid(fieldErrs error) error {
	return fmt.Errorf("%w: %w", ErrValidationFailed, fieldErrs)
}

// FieldErrorsOf extracts the field-level errors carried by err, if any.
func FieldErrorsOf(err error) criterio.FieldErrors {
	var fe criterio.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}
