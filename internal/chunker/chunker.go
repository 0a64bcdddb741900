package chunker

import (
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
	"document-qa/internal/tokenizer"
)

// Chunker greedily groups sentences into chunks that fit a token budget.
type Chunker struct {
	splitter Splitter
	counter  tokenizer.Counter
	budget   int
}

func New(splitter Splitter, counter tokenizer.Counter, budget int) *Chunker {
	return &Chunker{splitter: splitter, counter: counter, budget: budget}
}

func (c *Chunker) Budget() int { return c.budget }

// Split returns the chunk texts for text. Every chunk fits the budget except a chunk
// made of a single sentence that on its own is over budget; such sentences are not
// subdivided. Empty text yields one empty chunk.
func (c *Chunker) Split(text string) []string {
	spans := c.split(text)
	chunks := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = s.text
	}
	return chunks
}

// Chunks is Split with token counts and positions attached.
func (c *Chunker) Chunks(documentID, text string) []models.Chunk {
	spans := c.split(text)
	chunks := make([]models.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = models.Chunk{
			DocumentID: documentID,
			Index:      i,
			Content:    s.text,
			Tokens:     s.tokens,
		}
	}
	return chunks
}

type span struct {
	text   string
	tokens int
}

func (c *Chunker) split(text string) []span {
	var (
		spans       []span
		current     []string
		sum         int // tokens of the sentences in current
		tokensSoFar int // sum plus one separator per sentence
	)
	flush := func() {
		spans = append(spans, span{text: strings.Join(current, " "), tokens: sum})
		current = nil
		sum = 0
		tokensSoFar = 0
	}

	for _, sentence := range c.splitter.Split(text) {
		n := c.counter.Count(sentence)
		if tokensSoFar > 0 && tokensSoFar+n > c.budget {
			flush()
		}
		if tokensSoFar == 0 && n > c.budget {
			log.Debug().Int("tokens", n).Int("budget", c.budget).Msg("Sentence exceeds token budget, emitting as its own chunk")
			spans = append(spans, span{text: sentence, tokens: n})
			continue
		}
		current = append(current, sentence)
		sum += n
		tokensSoFar += n + 1
	}
	if len(current) > 0 || len(spans) == 0 {
		flush()
	}
	return spans
}
