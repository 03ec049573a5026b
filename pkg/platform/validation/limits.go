package validation

import (
	"fmt"

	dErrors "hudson/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the default cap on request bodies (64 KB).
	MaxBodySize = 64 * 1024
)

// String length limits, in bytes. Checked before anything parses the value.
const (
	// MaxIdentifierLength bounds a rate limit identifier (an IP or "ip|route").
	MaxIdentifierLength = 255

	// MaxEmailLength is the longest address SMTP allows.
	MaxEmailLength = 254

	MaxNameLength    = 100
	MaxCompanyLength = 200
	MaxPhoneLength   = 40
	MaxMessageLength = 5000
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckStringLengths runs CheckStringLength over name/value pairs and
// returns the first failure.
func CheckStringLengths(checks ...StringLimit) error {
	for _, c := range checks {
		if err := CheckStringLength(c.Field, c.Value, c.Max); err != nil {
			return err
		}
	}
	return nil
}

// StringLimit is one field for CheckStringLengths.
type StringLimit struct {
	Field string
	Value string
	Max   int
}
