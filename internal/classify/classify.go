// Package classify matches extracted document text against the provider
// rule snapshot and pulls out the order identifier.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jvidalg/albasort/internal/rules"
)

// Confidence reflects how much of the classification succeeded. High
// requires both a provider and an identifier.
type Confidence string

const (
	High Confidence = "high"
	Low  Confidence = "low"
)

// Result is the outcome of classifying one page or fragment. Provider
// and Identifier are empty when absent; Note explains why.
type Result struct {
	Provider   string     `json:"provider,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	Confidence Confidence `json:"confidence"`
	Note       string     `json:"note,omitempty"`
}

// Classify scans providers in declaration order and selects the first
// one with any case-insensitive signature hit; earlier-declared
// providers win when several match. Within a provider any signature hit
// is sufficient. The extraction pattern then runs against the
// original-case text with case-insensitive multiline semantics; a
// malformed pattern degrades this provider's extraction instead of
// failing the call.
func Classify(text string, snap rules.Snapshot) Result {
	res := Result{Confidence: Low}

	lower := strings.ToLower(text)
	var matched *rules.Provider
	for i := range snap {
		for _, sig := range snap[i].Signatures {
			if sig == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(sig)) {
				matched = &snap[i]
				break
			}
		}
		if matched != nil {
			break
		}
	}

	if matched == nil {
		res.Note = "no known provider signature detected"
		return res
	}
	res.Provider = matched.Key

	re, err := regexp.Compile("(?im)" + matched.ExtractionPattern)
	if err != nil {
		res.Note = fmt.Sprintf("provider %s identified, pattern invalid: %v", matched.Key, err)
		return res
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		res.Note = fmt.Sprintf("provider %s identified, pattern did not match", matched.Key)
		return res
	}
	if len(m) < 2 {
		res.Note = fmt.Sprintf("provider %s identified, pattern has no capture group", matched.Key)
		return res
	}

	res.Identifier = strings.TrimSpace(m[1])
	res.Confidence = High
	return res
}
