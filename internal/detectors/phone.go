package detectors

import "regexp"

// usPhonePatterns are tried in this declared order; matches from different
// patterns may legitimately overlap (e.g. the bare 10-digit form can
// coincide with a CREDIT_CARD match) — deduplication happens downstream by
// (detector, byte_offset), not here.
var usPhonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
	regexp.MustCompile(`\(\d{3}\) \d{3}-\d{4}`),
	regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`),
	regexp.MustCompile(`\b\d{10}\b`),
	regexp.MustCompile(`\b1-\d{3}-\d{3}-\d{4}\b`),
}

var usPhoneDetector = &Detector{
	Name:     "US_PHONE",
	patterns: usPhonePatterns,
	gateKeywords: []string{
		"phone", "tel", "telephone", "mobile", "cell",
	},
	mask: func(raw string) string {
		return "***-***-" + lastN(digitsOnly(raw), 4)
	},
}
