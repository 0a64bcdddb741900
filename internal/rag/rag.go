package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"document-qa/internal/chromemdb"
	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/conversation"
	"document-qa/internal/embedding"
	"document-qa/internal/fetcher"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/tokenizer"
)

var (
	ErrEmptyDocument = errors.New("no text could be extracted")
	ErrEmptyQuestion = errors.New("question is empty")
)

const collectionName = "session_chunks"

// URLFetcher turns a URL into a document with its text extracted.
type URLFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.Document, error)
}

// Session holds the documents, chunk vectors and conversation of one user. Operations
// are serialized: each one runs to completion before the next starts.
type Session struct {
	mu        sync.Mutex
	parser    parser.Parser
	fetcher   URLFetcher
	splitter  chunker.Splitter
	chunker   *chunker.Chunker
	batcher   *embedding.Batcher
	assembler *conversation.Assembler
	index     *chromemdb.Index
	topK      int
	documents []*models.Document
}

type Option func(*Session)

func WithParser(p parser.Parser) Option {
	return func(s *Session) { s.parser = p }
}

func WithFetcher(f URLFetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithSplitter replaces the punkt sentence splitter.
func WithSplitter(sp chunker.Splitter) Option {
	return func(s *Session) { s.splitter = sp }
}

// NewSession wires the extraction, chunking, embedding and chat components from cfg.
func NewSession(cfg *config.Config, llm *llmservice.Client, opts ...Option) (*Session, error) {
	s := &Session{
		assembler: conversation.NewAssembler(llm.Chat, cfg.Chat.SystemPrompt),
		topK:      cfg.Retrieval.TopK,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.parser == nil {
		s.parser = parser.New()
	}
	if s.fetcher == nil {
		s.fetcher = fetcher.New(s.parser,
			fetcher.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout()}),
			fetcher.WithDownloadDir(cfg.Fetch.DownloadDir),
			fetcher.WithReadChunkSize(cfg.Fetch.ReadChunkSize),
		)
	}
	if s.splitter == nil {
		sp, err := chunker.NewPunktSplitter()
		if err != nil {
			return nil, err
		}
		s.splitter = sp
	}

	counter, err := tokenizer.New(cfg.Chunking.Encoding)
	if err != nil {
		return nil, err
	}
	s.chunker = chunker.New(s.splitter, counter, cfg.Chunking.TokenBudget)
	s.batcher = embedding.NewBatcher(llm.Embedder, counter, s.chunker, cfg.Embedding.ContextWindow)

	if s.topK > 0 {
		if s.index, err = chromemdb.NewIndex(collectionName); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IngestFiles extracts, chunks and embeds each file in order. It stops at the first
// failure and returns the documents ingested before it.
func (s *Session) IngestFiles(ctx context.Context, paths ...string) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []*models.Document
	for _, path := range paths {
		text, err := s.parser.ExtractFile(path)
		if err != nil {
			return added, err
		}
		doc := &models.Document{Source: filepath.Base(path), Path: path, Content: text}
		if err := s.add(ctx, doc); err != nil {
			return added, err
		}
		added = append(added, doc)
	}
	return added, nil
}

// IngestURL fetches rawURL and ingests its text. A URL rejected as non-public returns a
// *fetcher.ValidationError and leaves the session unchanged.
func (s *Session) IngestURL(ctx context.Context, rawURL string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var verr *fetcher.ValidationError
		if errors.As(err, &verr) {
			log.Warn().Str("url", rawURL).Str("reason", verr.Reason).Msg("Skipping url")
		}
		return nil, err
	}
	if err := s.add(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Session) add(ctx context.Context, doc *models.Document) error {
	if strings.TrimSpace(doc.Content) == "" {
		log.Warn().Str("source", doc.Source).Msg("Skipping blank document")
		return fmt.Errorf("%s: %w", doc.Source, ErrEmptyDocument)
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	doc.ID = id
	doc.Chunks = s.chunker.Chunks(id, doc.Content)

	vectors, err := s.batcher.EmbedChunks(ctx, doc.Texts())
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.Source, err)
	}
	for i := range doc.Chunks {
		doc.Chunks[i].Embedding = vectors[i]
	}

	if s.index != nil {
		if err := s.index.Add(ctx, doc.Source, doc.Chunks); err != nil {
			return err
		}
	}
	s.documents = append(s.documents, doc)
	log.Info().Str("source", doc.Source).Int("chunks", len(doc.Chunks)).Msg("Ingested document")
	return nil
}

// Ask answers question in the context of the conversation so far. With retrieval
// enabled the closest chunks are included as document excerpts.
func (s *Session) Ask(ctx context.Context, question string) (*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	excerpts, sources, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	content, err := s.assembler.Ask(ctx, question, excerpts)
	if err != nil {
		return nil, err
	}
	return &models.Answer{Query: question, Sources: sources, Content: content}, nil
}

func (s *Session) retrieve(ctx context.Context, question string) (string, []string, error) {
	if s.index == nil || s.index.Count() == 0 {
		return "", nil, nil
	}
	_, vectors, err := s.batcher.EmbedText(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := s.index.Search(ctx, embedding.Mean(vectors), s.topK)
	if err != nil {
		return "", nil, err
	}

	texts := make([]string, 0, len(matches))
	var sources []string
	seen := map[string]bool{}
	for _, m := range matches {
		texts = append(texts, m.Content)
		if !seen[m.Source] {
			seen[m.Source] = true
			sources = append(sources, m.Source)
		}
	}
	log.Debug().Int("matches", len(matches)).Strs("sources", sources).Msg("Retrieved excerpts")
	return fmt.Sprintf(models.ContextPromptTemplate, strings.Join(texts, models.ContextSeparator)), sources, nil
}

// Documents returns the ingested documents in ingestion order.
func (s *Session) Documents() []*models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Document, len(s.documents))
	copy(out, s.documents)
	return out
}

func (s *Session) History() []models.Turn {
	return s.assembler.History().Turns()
}

// Chunker exposes the session's chunker, e.g. for a dry run without embedding.
func (s *Session) Chunker() *chunker.Chunker { return s.chunker }

// Reset discards all documents, vectors and conversation turns.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = nil
	s.assembler.History().Reset()
	if s.index != nil {
		return s.index.Reset()
	}
	return nil
}
