// Package detectors implements pure, deterministic text -> finding
// functions for the sensitive-data patterns in scope: national
// identifiers, payment cards, cloud credentials, emails and phone numbers.
//
// A Detector is a (pattern, optional context gate, optional validator,
// masker) tuple, following the static-table shape of a regex catalogue
// rather than a string-keyed map, so the catalogue reads like a schema.
package detectors

import (
	"regexp"
	"strings"

	"github.com/rawblock/sentryscan/pkg/models"
)

// match is a single regex hit before gating/validation/masking.
type match struct {
	start int
	end   int
	raw   string
}

// Detector describes one sensitive-data pattern family.
type Detector struct {
	Name string

	// patterns are tried in declared order; within one pattern, matches are
	// emitted in left-to-right byte order. Most detectors have exactly one
	// pattern; US_PHONE has several.
	patterns []*regexp.Regexp

	// gateKeywords, when non-empty, requires one of these substrings
	// (case-insensitive) to appear in the ±100-byte window around the
	// match before it is admitted. Empty means the detector always admits.
	gateKeywords []string

	// validate, when set, is an additional pure predicate over the raw
	// matched text (e.g. the Luhn checksum). A failing validator discards
	// the candidate before the gate is evaluated.
	validate func(raw string) bool

	// mask renders the fixed-shape redaction of a matched substring.
	mask func(raw string) string
}

// contextRadius is the half-width, in bytes, of the window used both for
// the context gate and for the stored context snippet.
const contextRadius = 100

// maxSnippetLen bounds the stored context snippet length.
const maxSnippetLen = 500

// All is the static, ordered detector catalogue. Order matters: detectors
// run in this sequence and within a detector matches are byte-order.
var All = []*Detector{
	ssnDetector,
	creditCardDetector,
	awsAccessKeyDetector,
	awsSecretKeyDetector,
	emailDetector,
	usPhoneDetector,
}

// Scan applies every detector in the catalogue to text, in order, and
// returns the ordered sequence of findings. Pure and deterministic given
// the same text: running Scan twice on the same input yields an identical
// sequence.
func Scan(text, jobID, bucket, key, entityTag string) []models.Finding {
	if len(text) == 0 {
		return nil
	}

	var findings []models.Finding
	for _, d := range All {
		for _, m := range d.findMatches(text) {
			if d.validate != nil && !d.validate(m.raw) {
				continue
			}
			if !d.admitted(text, m.start) {
				continue
			}
			findings = append(findings, models.Finding{
				JobID:       jobID,
				Bucket:      bucket,
				Key:         key,
				EntityTag:   entityTag,
				Detector:    d.Name,
				MaskedMatch: d.mask(m.raw),
				Context:     contextSnippet(text, m.start),
				ByteOffset:  m.start,
			})
		}
	}
	return findings
}

// findMatches runs every pattern for a detector over text and concatenates
// results in declared pattern order (overlap between patterns, e.g. among the
// US_PHONE patterns, is permitted by design — downstream dedup is by
// (detector, byte_offset)).
func (d *Detector) findMatches(text string) []match {
	var out []match
	for _, p := range d.patterns {
		locs := p.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			out = append(out, match{start: loc[0], end: loc[1], raw: text[loc[0]:loc[1]]})
		}
	}
	return out
}

// admitted evaluates the context gate for a match at byte offset o.
func (d *Detector) admitted(text string, o int) bool {
	if len(d.gateKeywords) == 0 {
		return true
	}
	window := strings.ToLower(windowAround(text, o))
	for _, kw := range d.gateKeywords {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}

// windowAround returns text[max(0,o-contextRadius) : min(len,o+contextRadius)].
func windowAround(text string, o int) string {
	start := o - contextRadius
	if start < 0 {
		start = 0
	}
	end := o + contextRadius
	if end > len(text) {
		end = len(text)
	}
	if start > len(text) {
		start = len(text)
	}
	if start > end {
		start = end
	}
	return text[start:end]
}

// contextSnippet builds the stored ±100-byte window: newlines replaced by
// single spaces, trimmed, truncated to maxSnippetLen bytes.
func contextSnippet(text string, o int) string {
	w := windowAround(text, o)
	w = strings.ReplaceAll(w, "\n", " ")
	w = strings.ReplaceAll(w, "\r", " ")
	w = strings.TrimSpace(w)
	if len(w) > maxSnippetLen {
		w = w[:maxSnippetLen]
	}
	return w
}

// digitsOnly strips every non-digit byte from s.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lastN returns the last n characters of s, or all of s if shorter.
func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
