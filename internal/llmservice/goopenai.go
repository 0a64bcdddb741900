package llmservice

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
)

// GoOpenAI serves embeddings and chat completions through the go-openai client while
// exposing the langchaingo interfaces the rest of the module is written against.
type GoOpenAI struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

var _ llms.Model = (*GoOpenAI)(nil)

func NewGoOpenAI(baseURL, apiKey, model, embeddingModel string) *GoOpenAI {
	cfg := openai.DefaultConfig(strings.TrimPrefix(apiKey, "Bearer "))
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GoOpenAI{
		client:         openai.NewClientWithConfig(cfg),
		model:          model,
		embeddingModel: embeddingModel,
	}
}

// CreateEmbedding returns one vector per input, ordered by the response's item index.
func (g *GoOpenAI) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(g.embeddingModel),
	})
	if err != nil {
		return nil, err
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (g *GoOpenAI) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{Model: g.model}
	for _, opt := range options {
		opt(&opts)
	}

	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    roleOf(m.Role),
			Content: textOf(m.Parts),
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response generated")
	}

	choices := make([]*llms.ContentChoice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func (g *GoOpenAI) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

func roleOf(t llms.ChatMessageType) string {
	switch t {
	case llms.ChatMessageTypeSystem:
		return openai.ChatMessageRoleSystem
	case llms.ChatMessageTypeAI:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func textOf(parts []llms.ContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if t, ok := p.(llms.TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}
