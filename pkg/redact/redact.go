// Package redact scrubs PII from turn text before it leaves the gateway.
// Redaction runs on the write path only: stored text is already clean, so
// reads pass through untouched. The pipeline is pure and deterministic,
// which keeps it trivially safe to call from worker goroutines.
package redact

import (
	"regexp"
)

// Replacement placeholders. Placeholders are fixed strings so a second pass
// over already-redacted text is a no-op.
const (
	PlaceholderEmail   = "[EMAIL]"
	PlaceholderPhone   = "[PHONE]"
	PlaceholderAddress = "[ADDRESS]"
)

// Category names as reported in counts and metrics labels.
const (
	CategoryEmail   = "email"
	CategoryPhone   = "phone"
	CategoryAddress = "address"
)

// Config toggles individual passes. Address matching is heuristic and prone
// to false positives ("221 reasons to..."), so it ships disabled.
type Config struct {
	Email   bool
	Phone   bool
	Address bool
}

// DefaultConfig enables the high-confidence passes only.
func DefaultConfig() Config {
	return Config{Email: true, Phone: true, Address: false}
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Two phone shapes: bare international (+ and 8-15 digits), and grouped
	// national formats with separators, e.g. "555-123-4567", "(555) 123 4567",
	// "+1 555 123 4567". The grouped form requires at least one separator so
	// plain integers like order numbers survive.
	phonePattern = regexp.MustCompile(`\+\d{8,15}|(?:\+?\d{1,3}[\s.\-])?(?:\(\d{1,4}\)[\s.\-]?)?\d{3,4}[\s.\-]\d{3,4}(?:[\s.\-]\d{3,4})?`)

	addressPattern = regexp.MustCompile(`(?i)\b\d{1,5}\s+(?:[A-Za-z]+\s+){0,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl|Terrace|Ter)\.?\b`)
)

type pass struct {
	category    string
	pattern     *regexp.Regexp
	placeholder string
}

// Redact applies the enabled passes to text and returns the scrubbed text
// plus a per-category match count. The counts map always carries all three
// categories so metric emission never has to special-case absent keys.
// Order matters: emails go first so the phone pass never chews on the digits
// inside an address or a mail header.
func Redact(text string, config Config) (string, map[string]int) {
	counts := map[string]int{
		CategoryEmail:   0,
		CategoryPhone:   0,
		CategoryAddress: 0,
	}

	passes := []pass{}
	if config.Email {
		passes = append(passes, pass{CategoryEmail, emailPattern, PlaceholderEmail})
	}
	if config.Phone {
		passes = append(passes, pass{CategoryPhone, phonePattern, PlaceholderPhone})
	}
	if config.Address {
		passes = append(passes, pass{CategoryAddress, addressPattern, PlaceholderAddress})
	}

	for _, p := range passes {
		text = p.pattern.ReplaceAllStringFunc(text, func(string) string {
			counts[p.category]++
			return p.placeholder
		})
	}

	return text, counts
}

// Total sums a counts map as returned by Redact.
func Total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
