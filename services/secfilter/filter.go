// Package secfilter classifies outbound chat messages before they are
// dispatched to an external AI provider. Filtering is pure CPU work
// over the message text: no I/O, no shared state, deterministic and
// idempotent, so it is safe to run concurrently on every request.
package secfilter

import (
	"net/url"
	"regexp"
	"strings"
)

// Flag identifies the category that triggered a block.
type Flag string

const (
	FlagPII           Flag = "PII"
	FlagFinancial     Flag = "FINANCIAL"
	FlagSensitive     Flag = "SENSITIVE"
	FlagSensitiveCode Flag = "SENSITIVE_CODE"
	FlagSensitiveURL  Flag = "SENSITIVE_URL"
	FlagDataLeakage   Flag = "DATA_LEAKAGE"
)

// Result is the outcome of filtering one outbound message. It is
// transient: only its flags end up on an audit record. The matched
// substring is never part of the result, so callers cannot echo it.
type Result struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Flags   []Flag `json:"flags"`
}

var (
	// PII patterns. The bare 6-12 digit run is intentional
	// over-blocking: a bare invoice or account number is treated as
	// PII rather than risking a leaked identifier.
	piiPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),                       // SSN grouping
		regexp.MustCompile(`\b[0-9]{3} [0-9]{2} [0-9]{4}\b`),                       // SSN with spaces
		regexp.MustCompile(`\b[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}\b`),  // card-like 16 digits
		regexp.MustCompile(`\(?\b[0-9]{3}\)?[-. ][0-9]{3}[-. ][0-9]{4}\b`),         // US phone
		regexp.MustCompile(`\+[0-9]{1,3}[- ]?[0-9]{6,12}\b`),                       // international phone
		regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), // email
		regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`),                    // IPv4
		regexp.MustCompile(`\b[0-9]{6,12}\b`),                                      // generic digit run
	}

	// Financial vocabulary, matched case-insensitively as substrings.
	financialTerms = []string{
		"revenue",
		"profit",
		"salary",
		"budget",
		"ebitda",
		"balance sheet",
		"income statement",
		"cash flow",
		"earnings",
		"gross margin",
		"payroll",
		"forecast",
	}

	// Confidentiality vocabulary, matched case-insensitively as
	// substrings.
	confidentialTerms = []string{
		"confidential",
		"proprietary",
		"nda",
		"non-disclosure",
		"password",
		"api key",
		"secret key",
		"customer data",
		"trade secret",
		"internal use only",
		"do not share",
	}

	// key = "value" assignments for a closed set of secret-bearing keys.
	sensitiveCodePattern = regexp.MustCompile(`(?i)\b(password|api_key|apikey|secret|token|private_key|connection_string|database_url)\b\s*[:=]\s*["'][^"']+["']`)

	// URL extraction for the internal-network heuristics.
	urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

	internalHostTerms = []string{
		"internal",
		"private",
		"staging",
		"dev",
		"test",
		"admin",
		".local",
		"localhost",
	}

	internalHostPrefixes = []string{
		"127.",
		"192.168.",
		"10.",
	}

	// Structured leakage: a quoted secret-ish field name in a JSON or
	// array fragment, or a message line that is nothing but a
	// key: value / key = value pair.
	leakageFieldPattern = regexp.MustCompile(`(?i)["'](password|passwd|pwd|secret|api_?key|token|access_token|private_key|credentials?)["']\s*[:,\]]`)
	leakagePairPattern  = regexp.MustCompile(`(?m)^\s*[A-Za-z_][A-Za-z0-9_\-]*\s*[:=]\s*\S+\s*$`)
)

// category is one filter rule: a flag, its reason label, and a matcher.
type category struct {
	flag   Flag
	reason string
	match  func(string) bool
}

// categories are evaluated in this exact order, stopping at the first
// match. PII is most severe; the ordering is policy and tests depend
// on it.
var categories = []category{
	{FlagPII, "pii", matchPII},
	{FlagFinancial, "financial", matchFinancial},
	{FlagSensitive, "confidentiality", matchConfidential},
	{FlagSensitiveCode, "sensitive_code", matchSensitiveCode},
	{FlagSensitiveURL, "sensitive_url", matchSensitiveURL},
	{FlagDataLeakage, "data_leakage", matchDataLeakage},
}

// Filter classifies one outbound message. Safe on arbitrary-length
// untrusted input.
func Filter(message string) Result {
	for _, c := range categories {
		if c.match(message) {
			return Result{
				Blocked: true,
				Reason:  c.reason,
				Flags:   []Flag{c.flag},
			}
		}
	}
	return Result{Flags: []Flag{}}
}

func matchPII(message string) bool {
	for _, p := range piiPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

func matchFinancial(message string) bool {
	return containsAny(strings.ToLower(message), financialTerms)
}

func matchConfidential(message string) bool {
	return containsAny(strings.ToLower(message), confidentialTerms)
}

func matchSensitiveCode(message string) bool {
	return sensitiveCodePattern.MatchString(message)
}

func matchSensitiveURL(message string) bool {
	for _, raw := range urlPattern.FindAllString(message, -1) {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		target := strings.ToLower(u.Host + u.Path)
		if containsAny(target, internalHostTerms) {
			return true
		}
		host := strings.ToLower(u.Hostname())
		for _, prefix := range internalHostPrefixes {
			if strings.HasPrefix(host, prefix) {
				return true
			}
		}
	}
	return false
}

func matchDataLeakage(message string) bool {
	if leakageFieldPattern.MatchString(message) {
		return true
	}
	return leakagePairPattern.MatchString(message)
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// FlagStrings converts flags for audit record attachment.
func FlagStrings(flags []Flag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
