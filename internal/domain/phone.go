// internal/domain/phone.go
package domain

import "strings"

// NormalizePhone canonicalizes a Kenyan mobile number to 254XXXXXXXXX.
// Accepted shapes after stripping non-digits: 7XXXXXXXX, 07XXXXXXXX, 254XXXXXXXXX.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 9 && strings.HasPrefix(digits, "7"):
		return "254" + digits, true
	case len(digits) == 10 && strings.HasPrefix(digits, "07"):
		return "254" + digits[1:], true
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		return digits, true
	}
	return "", false
}
