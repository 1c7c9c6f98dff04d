package document

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/mohammad-safakhou/researchbot/internal/helpers"
)

// DOCX renders the session document as a Word file.
func (e *Exporter) DOCX(ctx context.Context, sessionID string) ([]byte, error) {
	doc, err := e.Document(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rd, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("new docx: %w", err)
	}
	if _, err := rd.AddHeading(reportTitle, 0); err != nil {
		return nil, err
	}
	rd.AddParagraph("").AddText("Generated: " + doc.CreatedAt.Format(generatedStamp)).Italic(true)

	for i, t := range doc.Topics {
		if i > 0 {
			rd.AddPageBreak()
		}
		if _, err := rd.AddHeading(strconv.Itoa(i+1)+". "+t.Topic, 1); err != nil {
			return nil, err
		}
		q := rd.AddParagraph("")
		q.AddText("Query: ").Bold(true)
		q.AddText(t.Query)

		if err := writeMarkdown(rd, helpers.RemoveCitations(t.Content)); err != nil {
			return nil, err
		}
		if len(t.Sources) == 0 {
			continue
		}
		if _, err := rd.AddHeading("Sources", 2); err != nil {
			return nil, err
		}
		for j, s := range t.Sources {
			line := strconv.Itoa(j+1) + ". " + sourceTitle(s)
			if s.URL != "" && s.URL != sourceTitle(s) {
				line += " (" + s.URL + ")"
			}
			rd.AddParagraph(line)
		}
	}

	var buf bytes.Buffer
	if err := rd.Write(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMarkdown(rd *docx.RootDoc, md string) error {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case headingLine.MatchString(line):
			if _, err := rd.AddHeading(headingLine.FindStringSubmatch(line)[1], 2); err != nil {
				return err
			}
		case bulletLine.MatchString(line) || strings.HasPrefix(line, "•"):
			item := strings.TrimSpace(strings.TrimPrefix(bulletLine.ReplaceAllString(line, ""), "•"))
			boldRuns(rd.AddParagraph(""), "• "+item)
		default:
			boldRuns(rd.AddParagraph(""), line)
		}
	}
	return nil
}

// boldRuns splits s on **markers**, alternating plain and bold runs.
func boldRuns(p *docx.Paragraph, s string) {
	parts := strings.Split(s, "**")
	if len(parts)%2 == 0 {
		p.AddText(strings.ReplaceAll(s, "**", ""))
		return
	}
	for i, part := range parts {
		if part == "" {
			continue
		}
		p.AddText(part).Bold(i%2 == 1)
	}
}
