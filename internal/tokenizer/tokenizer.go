// Package tokenizer counts language-model tokens with a fixed BPE vocabulary.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter reports how many tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens with an OpenAI BPE encoding such as cl100k_base.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

var loaderOnce sync.Once

// New loads the named encoding from the embedded BPE ranks, so no network access is needed.
func New(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &Tiktoken{encoding: enc, name: encoding}, nil
}

// Count encodes text with special-token parsing disabled: control sequences such as
// "<|endoftext|>" are counted as ordinary text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

func (t *Tiktoken) Name() string { return t.name }
