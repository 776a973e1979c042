package detectors

import (
	"regexp"
	"strings"
)

var awsAccessKeyPattern = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)

var awsAccessKeyDetector = &Detector{
	Name:     "AWS_ACCESS_KEY",
	patterns: []*regexp.Regexp{awsAccessKeyPattern},
	// Pattern self-identifies; no context keywords required.
	mask: func(raw string) string {
		return "AKIA" + strings.Repeat("*", 16)
	},
}

var awsSecretKeyPattern = regexp.MustCompile(`\b[A-Za-z0-9/+=]{40}\b`)

var awsSecretKeyDetector = &Detector{
	Name:     "AWS_SECRET_KEY",
	patterns: []*regexp.Regexp{awsSecretKeyPattern},
	gateKeywords: []string{
		"secret", "aws_secret", "secret_access_key",
	},
	mask: func(raw string) string {
		return strings.Repeat("*", 36) + lastN(raw, 4)
	},
}
