package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/config"
	"document-qa/internal/fetcher"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

// keywordEmbedder puts texts mentioning cats on one axis and everything else on another.
type keywordEmbedder struct {
	calls int
}

func (e *keywordEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(strings.ToLower(t), "cat") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

type recordingModel struct {
	requests [][]llms.MessageContent
}

func (m *recordingModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.requests = append(m.requests, messages)
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "answer"}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type stubFetcher struct {
	doc *models.Document
	err error
}

func (f stubFetcher) Fetch(context.Context, string) (*models.Document, error) {
	return f.doc, f.err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newSession(t *testing.T, topK int, opts ...Option) (*Session, *keywordEmbedder, *recordingModel) {
	t.Helper()
	cfg := config.Default()
	cfg.Retrieval.TopK = topK
	emb := &keywordEmbedder{}
	model := &recordingModel{}
	s, err := NewSession(cfg, &llmservice.Client{Embedder: emb, Chat: model}, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, emb, model
}

func messageText(m llms.MessageContent) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestIngestFiles(t *testing.T) {
	s, emb, _ := newSession(t, 0)
	a := writeFile(t, "cats.txt", "Cats sleep a lot. They also purr.")
	b := writeFile(t, "dogs.md", "# Dogs\n\nDogs bark.")

	docs, err := s.IngestFiles(context.Background(), a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].Source != "cats.txt" || docs[1].Source != "dogs.md" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	for _, d := range docs {
		if d.ID == "" || len(d.Chunks) == 0 {
			t.Fatalf("document %s missing id or chunks", d.Source)
		}
		for _, c := range d.Chunks {
			if c.DocumentID != d.ID || len(c.Embedding) == 0 {
				t.Fatalf("chunk not linked or not embedded: %+v", c)
			}
		}
	}
	if emb.calls != 2 {
		t.Fatalf("expected one embedding request per small document, got %d", emb.calls)
	}
	if got := s.Documents(); len(got) != 2 || got[0] != docs[0] {
		t.Fatalf("session documents out of order")
	}
}

func TestIngestFiles_Errors(t *testing.T) {
	s, emb, _ := newSession(t, 0)
	good := writeFile(t, "good.txt", "Some text.")
	blank := writeFile(t, "blank.txt", "  \n\t")

	docs, err := s.IngestFiles(context.Background(), good, blank)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if len(docs) != 1 || len(s.Documents()) != 1 {
		t.Fatalf("expected the first document to be kept")
	}
	if emb.calls != 1 {
		t.Fatalf("blank document must not be embedded")
	}

	_, err = s.IngestFiles(context.Background(), writeFile(t, "image.png", "x"))
	if !errors.Is(err, parser.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestIngestURL_InvalidURLIsExplicit(t *testing.T) {
	verr := &fetcher.ValidationError{URL: "http://10.0.0.1", Reason: "address is not publicly routable"}
	s, emb, _ := newSession(t, 0, WithFetcher(stubFetcher{err: verr}))

	doc, err := s.IngestURL(context.Background(), "http://10.0.0.1")
	if !errors.Is(err, fetcher.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if doc != nil || len(s.Documents()) != 0 || emb.calls != 0 {
		t.Fatalf("invalid url must not create a document")
	}
}

func TestIngestURL_WithDefaultFetcherRejectsPrivateHosts(t *testing.T) {
	s, _, _ := newSession(t, 0)
	if _, err := s.IngestURL(context.Background(), "http://localhost:8080/secret"); !errors.Is(err, fetcher.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestIngestURL(t *testing.T) {
	s, _, _ := newSession(t, 0, WithFetcher(stubFetcher{doc: &models.Document{
		Source:  "https://example.com/page",
		Content: "Example page text.",
	}}))
	doc, err := s.IngestURL(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID == "" || doc.Source != "https://example.com/page" || len(doc.Chunks) != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestAsk_WithoutRetrievalSendsOnlyTurns(t *testing.T) {
	s, emb, model := newSession(t, 0)
	if _, err := s.IngestFiles(context.Background(), writeFile(t, "a.txt", "Cats purr.")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	calls := emb.calls

	if _, err := s.Ask(context.Background(), "What is X?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	answer, err := s.Ask(context.Background(), "And Y?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer.Content != "answer" || answer.Query != "And Y?" || len(answer.Sources) != 0 {
		t.Fatalf("unexpected answer %+v", answer)
	}
	last := model.requests[1]
	want := []string{"What is X?", "answer", "And Y?"}
	if len(last) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(last))
	}
	for i, w := range want {
		if messageText(last[i]) != w {
			t.Fatalf("message %d = %q, want %q", i, messageText(last[i]), w)
		}
	}
	if emb.calls != calls {
		t.Fatalf("questions must not be embedded when retrieval is disabled")
	}
	if len(s.History()) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(s.History()))
	}
}

func TestAsk_WithRetrieval(t *testing.T) {
	s, _, model := newSession(t, 1)
	ctx := context.Background()
	if _, err := s.IngestFiles(ctx,
		writeFile(t, "cats.txt", "Cats are great."),
		writeFile(t, "dogs.txt", "Dogs bark loudly."),
	); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	answer, err := s.Ask(ctx, "Tell me about cats")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "cats.txt" {
		t.Fatalf("unexpected sources %v", answer.Sources)
	}
	req := model.requests[0]
	if len(req) != 2 || req[0].Role != llms.ChatMessageTypeSystem {
		t.Fatalf("expected excerpt system message then question, got %d messages", len(req))
	}
	excerpt := messageText(req[0])
	if !strings.Contains(excerpt, "Cats are great.") || strings.Contains(excerpt, "Dogs") {
		t.Fatalf("unexpected excerpts %q", excerpt)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	s, _, model := newSession(t, 0)
	if _, err := s.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if len(model.requests) != 0 {
		t.Fatalf("no request expected for empty question")
	}
}

func TestReset(t *testing.T) {
	s, _, model := newSession(t, 2)
	ctx := context.Background()
	s.IngestFiles(ctx, writeFile(t, "cats.txt", "Cats are great."))
	s.Ask(ctx, "cats?")

	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(s.Documents()) != 0 || len(s.History()) != 0 {
		t.Fatalf("session not cleared")
	}
	if _, err := s.Ask(ctx, "cats?"); err != nil {
		t.Fatalf("ask after reset: %v", err)
	}
	if last := model.requests[len(model.requests)-1]; len(last) != 1 {
		t.Fatalf("expected no excerpts or history after reset, got %d messages", len(last))
	}
}
