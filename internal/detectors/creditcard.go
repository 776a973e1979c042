package detectors

import "regexp"

// creditCardPattern matches a run of 13-19 digits with at most one space or
// dash between consecutive digits. The validator re-checks the 13-19 digit
// count on the separator-stripped form as well.
var creditCardPattern = regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)

var creditCardDetector = &Detector{
	Name:     "CREDIT_CARD",
	patterns: []*regexp.Regexp{creditCardPattern},
	gateKeywords: []string{
		"card", "credit", "visa", "mastercard", "amex", "discover", "payment",
	},
	validate: func(raw string) bool {
		digits := digitsOnly(raw)
		if len(digits) < 13 || len(digits) > 19 {
			return false
		}
		return luhnValid(digits)
	},
	mask: func(raw string) string {
		digits := digitsOnly(raw)
		return "****-****-****-" + lastN(digits, 4)
	},
}
