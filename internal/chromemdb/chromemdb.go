package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

const (
	metaDocumentID = "document_id"
	metaSource     = "source"
	metaIndex      = "chunk_index"
)

// Match is a chunk returned by a similarity search.
type Match struct {
	DocumentID string
	Source     string
	Index      int
	Content    string
	Similarity float32
}

// Index is an in-memory chromem-go collection of chunk embeddings.
type Index struct {
	mu         sync.RWMutex
	db         *chromem.DB
	name       string
	collection *chromem.Collection
}

func NewIndex(collectionName string) (*Index, error) {
	idx := &Index{db: chromem.NewDB(), name: collectionName}
	if err := idx.open(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Index) open() error {
	// embeddings are always supplied, so the collection's embedding func is never called
	c, err := i.db.GetOrCreateCollection(i.name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	i.collection = c
	return nil
}

// Add stores the embedded chunks of one document. Every chunk must carry its vector.
func (i *Index) Add(ctx context.Context, source string, chunks []models.Chunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d of %s has no embedding", c.Index, c.DocumentID)
		}
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s-%d", c.DocumentID, c.Index),
			Content: c.Content,
			Metadata: map[string]string{
				metaDocumentID: c.DocumentID,
				metaSource:     source,
				metaIndex:      strconv.Itoa(c.Index),
			},
			Embedding: c.Embedding,
		})
	}
	if len(docs) == 0 {
		return nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("source", source).Int("chunks", len(docs)).Msg("Indexed chunks")
	return nil
}

// Search returns up to k chunks ordered by descending similarity to embedding.
func (i *Index) Search(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	k = min(k, i.collection.Count())
	if k <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	results, err := i.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]Match, len(results))
	for n, r := range results {
		idx, _ := strconv.Atoi(r.Metadata[metaIndex])
		matches[n] = Match{
			DocumentID: r.Metadata[metaDocumentID],
			Source:     r.Metadata[metaSource],
			Index:      idx,
			Content:    r.Content,
			Similarity: r.Similarity,
		}
	}
	return matches, nil
}

func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.collection.Count()
}

// Reset drops the collection and starts an empty one.
func (i *Index) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.db.DeleteCollection(i.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return i.open()
}
