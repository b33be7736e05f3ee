// Package mac validates and canonicalizes device MAC addresses.
//
// Accepted input forms are colon, dash, or dot separated pairs and the bare
// 12-hex-digit form, case-insensitive. The canonical form is lowercase with no
// separators, e.g. "aabbccddeeff".
package mac

import (
	"fmt"
	"strings"
)

// Normalize canonicalizes a MAC address string. It returns an error when the
// input does not reduce to exactly 12 hexadecimal digits.
func Normalize(s string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	if len(cleaned) != 12 {
		return "", fmt.Errorf("invalid MAC address %q: expected 12 hex digits, got %d", s, len(cleaned))
	}

	cleaned = strings.ToLower(cleaned)
	for _, r := range cleaned {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("invalid MAC address %q: non-hex character %q", s, r)
		}
	}

	return cleaned, nil
}

// Valid reports whether s is an acceptable MAC address in any supported form.
func Valid(s string) bool {
	_, err := Normalize(s)
	return err == nil
}
