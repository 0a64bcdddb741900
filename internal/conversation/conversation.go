// Package conversation keeps the question/answer history and turns it into chat requests.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/models"
)

var (
	ErrNoChoices    = errors.New("chat completion returned no choices")
	ErrTurnMismatch = errors.New("answers must number exactly one fewer than questions")
)

// History is an append-only, ordered list of turns.
type History struct {
	mu    sync.RWMutex
	turns []models.Turn
}

func (h *History) Append(turns ...models.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Turns returns a copy of the history in chronological order.
func (h *History) Turns() []models.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Interleave converts parallel question and answer lists into turns. The last
// question is the one still waiting for an answer.
func Interleave(questions, answers []string) ([]models.Turn, error) {
	if len(questions) == 0 || len(answers) != len(questions)-1 {
		return nil, fmt.Errorf("%w: %d questions, %d answers", ErrTurnMismatch, len(questions), len(answers))
	}
	turns := make([]models.Turn, 0, len(questions)+len(answers))
	for i, q := range questions {
		turns = append(turns, models.Turn{Role: models.RoleUser, Text: q})
		if i < len(answers) {
			turns = append(turns, models.Turn{Role: models.RoleAssistant, Text: answers[i]})
		}
	}
	return turns, nil
}

// BuildMessages returns the chat request for question following history. Each entry
// of system becomes a leading system message; empty entries are skipped.
func BuildMessages(history []models.Turn, question string, system ...string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(system)+len(history)+1)
	for _, s := range system {
		if s != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, s))
		}
	}
	for _, t := range history {
		messages = append(messages, llms.TextParts(messageType(t.Role), t.Text))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))
}

func messageType(r models.Role) llms.ChatMessageType {
	if r == models.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}

// Assembler sends the running conversation to a chat model.
type Assembler struct {
	model        llms.Model
	systemPrompt string
	history      *History
}

func NewAssembler(model llms.Model, systemPrompt string) *Assembler {
	return &Assembler{model: model, systemPrompt: systemPrompt, history: &History{}}
}

func (a *Assembler) History() *History { return a.history }

// Ask submits the history plus question and returns the first completion. On success
// both the question and the answer are appended to the history; on failure the
// history is left untouched. excerpts, when set, is sent as an extra system message.
func (a *Assembler) Ask(ctx context.Context, question, excerpts string) (string, error) {
	messages := BuildMessages(a.history.Turns(), question, a.systemPrompt, excerpts)
	log.Debug().Int("messages", len(messages)).Msg("Requesting chat completion")

	resp, err := a.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	answer := resp.Choices[0].Content

	a.history.Append(
		models.Turn{Role: models.RoleUser, Text: question},
		models.Turn{Role: models.RoleAssistant, Text: answer},
	)
	return answer, nil
}
