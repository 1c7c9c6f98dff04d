package document

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/researchbot/internal/helpers"
	"github.com/mohammad-safakhou/researchbot/models"
)

const (
	reportTitle    = "Company Research Report"
	generatedStamp = "January 02, 2006 at 03:04 PM"
)

var (
	headingLine = regexp.MustCompile(`^\*\*([^*]+)\*\*:?$`)
	bulletLine  = regexp.MustCompile(`^[•\-*]\s+`)
	inlineBold  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// Preview renders the session document as sanitized HTML. Every source of
// every topic is listed.
func (e *Exporter) Preview(ctx context.Context, sessionID string) (string, error) {
	doc, err := e.Document(ctx, sessionID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<h1>" + reportTitle + "</h1>\n")
	b.WriteString("<p><em>Generated: " + doc.CreatedAt.Format(generatedStamp) + "</em></p>\n<hr/>\n")
	for i, t := range doc.Topics {
		b.WriteString("<h2>" + strconv.Itoa(i+1) + ". " + html.EscapeString(t.Topic) + "</h2>\n")
		b.WriteString("<p><strong>Query:</strong> " + html.EscapeString(t.Query) + "</p>\n")
		b.WriteString(markdownHTML(helpers.RemoveCitations(t.Content)))
		if len(t.Sources) > 0 {
			b.WriteString("<h3>Sources</h3>\n<ul class=\"source-list\">\n")
			for _, s := range t.Sources {
				b.WriteString("<li><a href=\"" + html.EscapeString(s.URL) + "\">" + html.EscapeString(sourceTitle(s)) + "</a></li>\n")
			}
			b.WriteString("</ul>\n")
		}
		b.WriteString("<hr/>\n")
	}
	return helpers.SanitizeReportHTML(b.String()), nil
}

// markdownHTML converts the answer subset of markdown: bold lines become
// headings, bullet runs become lists and other lines paragraphs.
func markdownHTML(md string) string {
	var b strings.Builder
	inList := false
	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			closeList()
		case headingLine.MatchString(line):
			closeList()
			b.WriteString("<h2>" + html.EscapeString(headingLine.FindStringSubmatch(line)[1]) + "</h2>\n")
		case bulletLine.MatchString(line) || strings.HasPrefix(line, "•"):
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			item := strings.TrimSpace(strings.TrimPrefix(bulletLine.ReplaceAllString(line, ""), "•"))
			b.WriteString("<li>" + inlineMarkup(item) + "</li>\n")
		default:
			closeList()
			b.WriteString("<p>" + inlineMarkup(line) + "</p>\n")
		}
	}
	closeList()
	return b.String()
}

func inlineMarkup(s string) string {
	return inlineBold.ReplaceAllString(html.EscapeString(s), "<strong>$1</strong>")
}

func sourceTitle(s models.Source) string {
	if strings.TrimSpace(s.Title) != "" {
		return s.Title
	}
	return s.URL
}
