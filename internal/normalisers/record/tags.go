package record

import (
	"regexp"
	"strings"
)

// revisionPattern matches headlines/bodies that revise an earlier
// announcement. Case-insensitive.
var revisionPattern = regexp.MustCompile(`(?i)\b(revised|revision|rectified|corrigendum|amend(ed|ment)|updat(ed|e) to)\b`)

// tagRule pairs a classification label with its matching pattern.
type tagRule struct {
	tag     string
	pattern *regexp.Regexp
}

// tagRules is the fixed classification table, evaluated in order over
// headline+body. First match order is the tag order.
var tagRules = []tagRule{
	{"financial-results", regexp.MustCompile(`(?i)\b(financial results?|quarterly results?|annual results?|unaudited|audited results?)\b`)},
	{"dividend", regexp.MustCompile(`(?i)\bdividends?\b`)},
	{"board-meeting", regexp.MustCompile(`(?i)\bboard meeting\b`)},
	{"general-meeting", regexp.MustCompile(`(?i)\b(annual general meeting|extraordinary general meeting|agm|egm|postal ballot)\b`)},
	{"merger-acquisition", regexp.MustCompile(`(?i)\b(merger|amalgamation|acquisition|demerger|scheme of arrangement)\b`)},
	{"buyback", regexp.MustCompile(`(?i)\bbuy[- ]?back\b`)},
	{"fund-raising", regexp.MustCompile(`(?i)\b(rights issue|preferential (issue|allotment)|qip|fund raising|debenture)\b`)},
	{"management-change", regexp.MustCompile(`(?i)\b(resignation|appointment|cessation) of\b`)},
	{"credit-rating", regexp.MustCompile(`(?i)\bcredit rating\b`)},
	{"pledge", regexp.MustCompile(`(?i)\b(pledge[d]?|encumbrance)\b`)},
	{"insider-trading", regexp.MustCompile(`(?i)\b(insider trading|sast|substantial acquisition)\b`)},
	{"press-release", regexp.MustCompile(`(?i)\bpress release\b`)},
}

// IsRevision reports whether the text indicates a revision of an
// earlier announcement.
func IsRevision(text string) bool {
	return revisionPattern.MatchString(text)
}

// DetectTags returns classification labels for the text in first-match
// order, deduplicated.
func DetectTags(text string) []string {
	var tags []string
	seen := make(map[string]bool, len(tagRules))
	for _, rule := range tagRules {
		if seen[rule.tag] {
			continue
		}
		if rule.pattern.MatchString(text) {
			tags = append(tags, rule.tag)
			seen[rule.tag] = true
		}
	}
	return tags
}

// joinText concatenates headline and body for keyword matching.
func joinText(headline, body string) string {
	if headline == "" {
		return body
	}
	if body == "" {
		return headline
	}
	return headline + "\n" + body
}

// normaliseWhitespace collapses runs of whitespace into single spaces.
func normaliseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
