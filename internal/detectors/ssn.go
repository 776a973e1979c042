package detectors

import "regexp"

var ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

var ssnDetector = &Detector{
	Name:     "SSN",
	patterns: []*regexp.Regexp{ssnPattern},
	gateKeywords: []string{
		"ssn", "social security", "social-security", "ss#", "ss #",
	},
	mask: func(raw string) string {
		return "***-**-" + lastN(raw, 4)
	},
}
