package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchbot/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestExporter(t *testing.T) (*Exporter, *FileRepository, *fakeClock) {
	t.Helper()
	repo, err := NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)}
	return NewExporter(repo, Quiet(), WithClock(clock.now)), repo, clock
}

func sources(n int) []models.Source {
	out := make([]models.Source, n)
	for i := range out {
		out[i] = models.Source{
			ID:    i + 1,
			Title: "Source title " + string(rune('A'+i)),
			URL:   "https://example.com/" + string(rune('a'+i)),
		}
	}
	return out
}

const sampleAnswer = "**Overview**\nTesla builds electric cars [Source 1].\n• Founded in 2003 [Source 2]\n• Based in **Austin**"

func TestTopicOf(t *testing.T) {
	cases := map[string]string{
		"Tell me about Tesla": "Tell me about Tesla",
		"one two three four five six seven eight nine ten": "one two three four five six seven eight...",
		"  spaced   out  ": "spaced out",
	}
	for in, want := range cases {
		if got := TopicOf(in); got != want {
			t.Fatalf("TopicOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSimilarTopics(t *testing.T) {
	if !SimilarTopics("Tell me about Tesla", "tell me about tesla") {
		t.Fatalf("identical topics should match")
	}
	// 2 shared of 4 distinct words.
	if !SimilarTopics("Tesla revenue growth", "Tesla revenue outlook") {
		t.Fatalf("expected jaccard >= 0.5 to match")
	}
	if SimilarTopics("Tesla revenue", "Apple iPhone sales") {
		t.Fatalf("disjoint topics matched")
	}
	if SimilarTopics("", "") {
		t.Fatalf("empty topics matched")
	}
}

func TestRecordMergesTopics(t *testing.T) {
	e, _, clock := newTestExporter(t)
	ctx := context.Background()

	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "Tell me about Tesla", Answer: "first", Sources: sources(2)}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	clock.t = clock.t.Add(time.Hour)
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "tell me about tesla", Answer: "second"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	doc, err := e.Document(ctx, "s1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if len(doc.Topics) != 1 || doc.Topics[0].Content != "first" {
		t.Fatalf("similar normal turn should be a no-op, got %+v", doc.Topics)
	}

	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "Tell me about Tesla", Answer: "deeper", Sources: sources(4), DeepDive: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "Who is the CEO of Apple?", Answer: "Tim Cook"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	doc, _ = e.Document(ctx, "s1")
	if len(doc.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(doc.Topics))
	}
	first := doc.Topics[0]
	if first.Content != "deeper" || len(first.Sources) != 4 {
		t.Fatalf("deep dive should replace content and sources, got %+v", first)
	}
	if !first.UpdatedAt.After(first.CreatedAt) {
		t.Fatalf("deep dive should bump updated_at")
	}
	if doc.Topics[1].Topic != "Who is the CEO of Apple?" {
		t.Fatalf("unexpected second topic %q", doc.Topics[1].Topic)
	}
}

func TestRecordRejectsEmptySession(t *testing.T) {
	e, _, _ := newTestExporter(t)
	if err := e.Record(context.Background(), models.DocumentEntry{Query: "q"}); err == nil {
		t.Fatalf("expected error for empty session id")
	}
}

func TestDocumentMissing(t *testing.T) {
	e, _, _ := newTestExporter(t)
	if _, err := e.Document(context.Background(), "nobody"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if _, err := e.Preview(context.Background(), "nobody"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument from Preview, got %v", err)
	}
	if _, err := e.DOCX(context.Background(), "nobody"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument from DOCX, got %v", err)
	}
}

func TestFileRepositoryRejectsTraversal(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	if _, err := repo.Get(context.Background(), "../etc/passwd"); err == nil || errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestPruneRemovesIdleDocuments(t *testing.T) {
	e, repo, clock := newTestExporter(t)
	ctx := context.Background()
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "old", Query: "Tesla", Answer: "a"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	clock.t = clock.t.Add(48 * time.Hour)
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "fresh", Query: "Apple", Answer: "b"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, err := e.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned document, got %d", n)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("old document should be gone, got %v", err)
	}
	if _, err := repo.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh document should survive: %v", err)
	}
}

func TestPreviewListsEverySource(t *testing.T) {
	e, _, _ := newTestExporter(t)
	ctx := context.Background()
	srcs := sources(8)
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "Tell me about Tesla", Answer: sampleAnswer, Sources: srcs}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out, err := e.Preview(ctx, "s1")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	for _, want := range []string{
		"<h1>Company Research Report</h1>",
		"March 04, 2026 at 03:30 PM",
		"<h2>1. Tell me about Tesla</h2>",
		"<h2>Overview</h2>",
		"<li>Based in <strong>Austin</strong></li>",
		"<h3>Sources</h3>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("preview missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[Source") {
		t.Fatalf("citations should be removed:\n%s", out)
	}
	for _, s := range srcs {
		if !strings.Contains(out, s.Title) || !strings.Contains(out, s.URL) {
			t.Fatalf("preview missing source %+v", s)
		}
	}
}

func TestPreviewSanitizesContent(t *testing.T) {
	e, _, _ := newTestExporter(t)
	ctx := context.Background()
	entry := models.DocumentEntry{
		SessionID: "s1",
		Query:     "Tesla <script>alert(1)</script>",
		Answer:    "plain answer",
		Sources:   []models.Source{{Title: "bad", URL: "javascript:alert(1)"}},
	}
	if err := e.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out, err := e.Preview(ctx, "s1")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if strings.Contains(out, "<script>") || strings.Contains(out, "javascript:") {
		t.Fatalf("unsafe markup survived:\n%s", out)
	}
}

func TestDOCXPackage(t *testing.T) {
	e, _, _ := newTestExporter(t)
	ctx := context.Background()
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "Tell me about Tesla", Answer: sampleAnswer, Sources: sources(6)}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := e.Record(ctx, models.DocumentEntry{SessionID: "s1", Query: "Who is the CEO of Apple?", Answer: "Tim Cook & team"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	data, err := e.DOCX(ctx, "s1")
	if err != nil {
		t.Fatalf("DOCX: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	parts := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		parts[f.Name] = string(b)
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml", "word/_rels/document.xml.rels"} {
		if _, ok := parts[name]; !ok {
			t.Fatalf("missing part %s", name)
		}
	}
	body := parts["word/document.xml"]
	for _, want := range []string{
		"Company Research Report",
		"1. Tell me about Tesla",
		"2. Who is the CEO of Apple?",
		"• Founded in 2003",
		"Tim Cook &amp; team",
		`w:type="page"`,
		"https://example.com/f",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("document.xml missing %q", want)
		}
	}
	if strings.Contains(body, "[Source") {
		t.Fatalf("citations should be removed from docx")
	}
}

func TestSearchRanksTopics(t *testing.T) {
	e, _, _ := newTestExporter(t)
	ctx := context.Background()
	entries := []models.DocumentEntry{
		{SessionID: "s1", Query: "Tell me about Tesla", Answer: "Tesla builds electric cars and batteries."},
		{SessionID: "s1", Query: "Who is the CEO of Apple?", Answer: "Tim Cook leads Apple."},
	}
	for _, en := range entries {
		if err := e.Record(ctx, en); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	hits, err := e.Search(ctx, "s1", "batteries", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Index != 1 || hits[0].Topic != "Tell me about Tesla" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	hits, err = e.Search(ctx, "s1", "   ", 5)
	if err != nil || len(hits) != 0 {
		t.Fatalf("blank query should return no hits, got %v %v", hits, err)
	}
}
