// Package redact provides helpers for keeping sensitive values out of log
// output: credentials, and the customer phone numbers this bot handles on
// every message.
//
// Redaction is best-effort: it operates on string representations and relies
// on callers to pass the right values.  It is NOT a substitute for keeping
// secrets out of log call-sites in the first place.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED].  Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
//
// Example:
//
//	safe := redact.String(logLine, accessToken)
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Phone masks the middle digits of a phone number for log output, e.g.
// "263772123456" becomes "26377.....56".  Identifiers too short to mask
// meaningfully, and non-numeric addresses such as Matrix room IDs, are
// returned unchanged.
func Phone(number string) string {
	if len(number) < 8 || !allDigits(number) {
		return number
	}
	return number[:5] + strings.Repeat(".", len(number)-7) + number[len(number)-2:]
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
