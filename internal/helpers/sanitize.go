package helpers

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy

	reportPolicyOnce sync.Once
	reportPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy strips every element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// ReportHTMLPolicy allows the subset of HTML a research report preview is
// made of: headings, paragraphs, emphasis, lists, rules and outbound links.
func ReportHTMLPolicy() *bluemonday.Policy {
	reportPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("h1", "h2", "h3", "p", "em", "strong", "ul", "ol", "li", "hr", "br", "div", "section")
		p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("ul", "div", "section", "p")
		p.AllowStandardURLs()
		p.AllowURLSchemes("http", "https")
		p.AllowAttrs("href").OnElements("a")
		p.RequireParseableURLs(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		p.RequireNoFollowOnFullyQualifiedLinks(true)
		reportPolicy = p
	})
	return reportPolicy
}

// SanitizeHTMLStrict returns s as plain text with all markup removed.
func SanitizeHTMLStrict(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(StrictHTMLPolicy().Sanitize(s))
}

// SanitizeReportHTML cleans a rendered report fragment.
func SanitizeReportHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return ReportHTMLPolicy().Sanitize(s)
}
