package chunker

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Splitter breaks text into an ordered sequence of sentences.
type Splitter interface {
	Split(text string) []string
}

// PunktSplitter uses the pre-trained English punkt model, which knows about
// abbreviations, initials and ellipses.
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewPunktSplitter() (*PunktSplitter, error) {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence model: %w", err)
	}
	return &PunktSplitter{tokenizer: t}, nil
}

// Split returns trimmed, non-empty sentences in their original order.
func (p *PunktSplitter) Split(text string) []string {
	var out []string
	for _, s := range p.tokenizer.Tokenize(text) {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
