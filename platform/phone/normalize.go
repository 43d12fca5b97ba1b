// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "IN"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Same reports whether two raw phone values refer to the same number after
// E.164 normalization. Referral phone matching must not care about spacing,
// "+91" prefixes or punctuation in stored parent numbers.
func Same(a, b string) bool {
	na := NormalizeE164(a)
	nb := NormalizeE164(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}
