package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chunker"
	"document-qa/internal/tokenizer"
)

var ErrCountMismatch = errors.New("embedding count does not match input count")

// Batcher embeds chunk sequences in requests sized to the embedding model's context window.
type Batcher struct {
	client        embeddings.EmbedderClient
	counter       tokenizer.Counter
	chunker       *chunker.Chunker
	contextWindow int
}

func NewBatcher(client embeddings.EmbedderClient, counter tokenizer.Counter, ch *chunker.Chunker, contextWindow int) *Batcher {
	return &Batcher{
		client:        client,
		counter:       counter,
		chunker:       ch,
		contextWindow: contextWindow,
	}
}

// BatchSize is the number of chunks sent per request: the context window divided by
// the chunk budget, never less than one.
func (b *Batcher) BatchSize() int {
	n := b.contextWindow / b.chunker.Budget()
	if n < 1 {
		return 1
	}
	return n
}

// EmbedText embeds text as a single input when it fits the context window. Longer
// text is chunked first. The returned texts are the inputs the vectors belong to.
func (b *Batcher) EmbedText(ctx context.Context, text string) ([]string, [][]float32, error) {
	texts := []string{text}
	if n := b.counter.Count(text); n > b.contextWindow {
		texts = b.chunker.Split(text)
		log.Debug().Int("tokens", n).Int("chunks", len(texts)).Msg("Text exceeds context window, chunking before embedding")
	}
	vectors, err := b.EmbedChunks(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	return texts, vectors, nil
}

// EmbedChunks returns one vector per chunk, in input order.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	size := b.BatchSize()
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batch := chunks[start:end]

		log.Debug().Int("from", start).Int("to", end).Int("total", len(chunks)).Msg("Embedding batch")
		got, err := b.client.CreateEmbedding(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(got) != len(batch) {
			return nil, fmt.Errorf("%w: sent %d, received %d", ErrCountMismatch, len(batch), len(got))
		}
		vectors = append(vectors, got...)
	}
	return vectors, nil
}

// Mean averages vectors component-wise. It is used to turn a question that had to be
// chunked back into a single query vector.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) == 1 {
		return vectors[0]
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}
