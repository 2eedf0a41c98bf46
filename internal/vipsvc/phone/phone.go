// Package phone normalizes Italian mobile numbers into the 10-digit key
// used across the registration flow. check-phone and register must hash
// a submitted number to the same key, so both go through Validate.
package phone

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("phone must be a 10-digit italian number")

// Normalize strips one optional leading "+39" or "39" country prefix and
// drops every non-digit character.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "+39") {
		s = s[len("+39"):]
	} else if strings.HasPrefix(s, "39") {
		s = s[len("39"):]
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate returns the normalized digits, or ErrInvalid when anything
// other than exactly 10 digits remains.
func Validate(raw string) (string, error) {
	digits := Normalize(raw)
	if len(digits) != 10 {
		return "", ErrInvalid
	}
	return digits, nil
}
