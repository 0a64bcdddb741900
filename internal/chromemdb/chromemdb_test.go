package chromemdb

import (
	"context"
	"testing"

	"document-qa/internal/models"
)

func chunk(doc string, index int, content string, emb ...float32) models.Chunk {
	return models.Chunk{DocumentID: doc, Index: index, Content: content, Embedding: emb}
}

func TestIndex_SearchOrdersBySimilarity(t *testing.T) {
	idx, err := NewIndex("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	err = idx.Add(ctx, "a.txt", []models.Chunk{
		chunk("doc-a", 0, "about cats", 1, 0, 0),
		chunk("doc-a", 1, "about dogs", 0, 1, 0),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := idx.Add(ctx, "b.txt", []models.Chunk{chunk("doc-b", 0, "about birds", 0, 0, 1)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if idx.Count() != 3 {
		t.Fatalf("expected 3 chunks, got %d", idx.Count())
	}

	matches, err := idx.Search(ctx, []float32{0.1, 0.9, 0.2}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	m := matches[0]
	if m.Content != "about dogs" || m.DocumentID != "doc-a" || m.Source != "a.txt" || m.Index != 1 {
		t.Fatalf("unexpected best match %+v", m)
	}
	if matches[1].Content != "about birds" {
		t.Fatalf("unexpected second match %+v", matches[1])
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Fatalf("matches not ordered by similarity")
	}
}

func TestIndex_SearchClampsToCount(t *testing.T) {
	idx, _ := NewIndex("test")
	ctx := context.Background()

	matches, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil || matches != nil {
		t.Fatalf("empty index should return no matches, got %v, %v", matches, err)
	}

	idx.Add(ctx, "a", []models.Chunk{chunk("d", 0, "only", 1, 0)})
	matches, err = idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one match, got %v, %v", matches, err)
	}
}

func TestIndex_AddRequiresEmbeddings(t *testing.T) {
	idx, _ := NewIndex("test")
	if err := idx.Add(context.Background(), "a", []models.Chunk{{DocumentID: "d", Content: "x"}}); err == nil {
		t.Fatalf("expected error for chunk without embedding")
	}
}

func TestIndex_Reset(t *testing.T) {
	idx, _ := NewIndex("test")
	ctx := context.Background()
	idx.Add(ctx, "a", []models.Chunk{chunk("d", 0, "text", 1, 0)})
	if err := idx.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if idx.Count() != 0 {
		t.Fatalf("expected empty index after reset, got %d", idx.Count())
	}
	if err := idx.Add(ctx, "a", []models.Chunk{chunk("d", 0, "text", 1, 0)}); err != nil {
		t.Fatalf("add after reset: %v", err)
	}
}
