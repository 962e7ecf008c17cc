// Package validate checks submitted application fields. It performs no I/O.
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
)

// Field names as they appear in the submission form.
const (
	FieldFullName       = "full_name"
	FieldAddress        = "address"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldAdditionalInfo = "additional_info"
)

var checker = validator.New()

// ApplicantForm holds the free-text part of an application.
type ApplicantForm struct {
	FullName       string
	Address        string
	Phone          string
	Email          string
	AdditionalInfo string
}

// Clean returns a copy with surrounding whitespace and HTML markup removed
// from every field.
func (f ApplicantForm) Clean() ApplicantForm {
	return ApplicantForm{
		FullName:       StripTags(f.FullName),
		Address:        StripTags(f.Address),
		Phone:          StripTags(f.Phone),
		Email:          strings.TrimSpace(f.Email),
		AdditionalInfo: StripTags(f.AdditionalInfo),
	}
}

// Validate checks required fields in form order and stops at the first one
// that is empty, then checks the email grammar. It returns nil or an
// *apperr.ValidationError.
func (f ApplicantForm) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{FieldFullName, f.FullName},
		{FieldAddress, f.Address},
		{FieldPhone, f.Phone},
		{FieldEmail, f.Email},
		{FieldAdditionalInfo, f.AdditionalInfo},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return apperr.Required(field.name)
		}
	}
	if !IsEmail(f.Email) {
		return apperr.Invalid(FieldEmail, "Invalid email format")
	}
	return nil
}

// IsEmail reports whether s is a syntactically valid address.
func IsEmail(s string) bool {
	return checker.Var(s, "required,email") == nil
}
