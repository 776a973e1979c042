package detectors

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

var emailDetector = &Detector{
	Name:     "EMAIL",
	patterns: []*regexp.Regexp{emailPattern},
	// No gate: email addresses self-identify via the @ sign.
	mask: func(raw string) string {
		at := strings.IndexByte(raw, '@')
		if at < 0 {
			return raw
		}
		local, domain := raw[:at], raw[at+1:]
		prefix := local
		if len(prefix) > 2 {
			prefix = prefix[:2]
		}
		return prefix + "***@" + domain
	},
}
