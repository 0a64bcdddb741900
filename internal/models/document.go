package models

// Document is a named source (file name or URL) and the text extracted from it.
type Document struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Path    string  `json:"path,omitempty"` // local file the text was extracted from, if any
	Content string  `json:"-"`
	Chunks  []Chunk `json:"chunks"`
}

// Chunk represents a token-bounded run of sentences from one document
type Chunk struct {
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	Tokens     int       `json:"tokens"`
	Embedding  []float32 `json:"-"`
}

// Texts returns the chunk contents of a document in order.
func (d *Document) Texts() []string {
	texts := make([]string, len(d.Chunks))
	for i, c := range d.Chunks {
		texts[i] = c.Content
	}
	return texts
}

// Answer is the assistant's reply to one question. Sources lists the documents whose
// excerpts were included in the prompt, if retrieval is enabled.
type Answer struct {
	Query   string   `json:"query"`
	Sources []string `json:"sources,omitempty"`
	Content string   `json:"content"`
}
