package whatsapp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone marks a recipient address that fails validation.
var ErrInvalidPhone = errors.New("invalid phone number")

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// NormalizePhone strips whitespace and every non-digit character, including
// a leading plus sign. The normalized form is both the send target and the
// local thread key, so both sides always agree.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone checks that a normalized number has 10 to 15 digits.
func ValidatePhone(normalized string) error {
	if len(normalized) < minPhoneDigits || len(normalized) > maxPhoneDigits {
		return fmt.Errorf("%w: %q must have %d-%d digits", ErrInvalidPhone, normalized, minPhoneDigits, maxPhoneDigits)
	}
	return nil
}
