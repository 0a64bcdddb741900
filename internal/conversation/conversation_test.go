package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/models"
)

type fakeModel struct {
	got    []llms.MessageContent
	answer string
	empty  bool
	err    error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: f.answer},
		{Content: "second choice"},
	}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	if len(m.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(m.Parts))
	}
	tc, ok := m.Parts[0].(llms.TextContent)
	if !ok {
		t.Fatalf("expected text part, got %T", m.Parts[0])
	}
	return tc.Text
}

func TestInterleaveAndBuild(t *testing.T) {
	turns, err := Interleave([]string{"What is X?", "And Y?"}, []string{"X is a thing."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the last question is the pending one
	messages := BuildMessages(turns[:len(turns)-1], turns[len(turns)-1].Text)

	want := []struct {
		role llms.ChatMessageType
		text string
	}{
		{llms.ChatMessageTypeHuman, "What is X?"},
		{llms.ChatMessageTypeAI, "X is a thing."},
		{llms.ChatMessageTypeHuman, "And Y?"},
	}
	if len(messages) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(messages))
	}
	for i, w := range want {
		if messages[i].Role != w.role || textOf(t, messages[i]) != w.text {
			t.Fatalf("message %d = %s %q, want %s %q", i, messages[i].Role, textOf(t, messages[i]), w.role, w.text)
		}
	}
}

func TestInterleave_Mismatch(t *testing.T) {
	cases := []struct {
		questions, answers []string
	}{
		{nil, nil},
		{[]string{"a"}, []string{"b"}},
		{[]string{"a", "b", "c"}, []string{"x"}},
	}
	for _, c := range cases {
		if _, err := Interleave(c.questions, c.answers); !errors.Is(err, ErrTurnMismatch) {
			t.Fatalf("Interleave(%q, %q): expected ErrTurnMismatch, got %v", c.questions, c.answers, err)
		}
	}
}

func TestBuildMessages_SystemMessages(t *testing.T) {
	messages := BuildMessages(nil, "Q?", "be brief", "", "excerpts")
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Role != llms.ChatMessageTypeSystem || textOf(t, messages[0]) != "be brief" {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if messages[1].Role != llms.ChatMessageTypeSystem || textOf(t, messages[1]) != "excerpts" {
		t.Fatalf("unexpected second message %+v", messages[1])
	}
	if messages[2].Role != llms.ChatMessageTypeHuman {
		t.Fatalf("question must be last and from the user")
	}
}

func TestAssembler_AskAppendsHistory(t *testing.T) {
	model := &fakeModel{answer: "X is a thing."}
	a := NewAssembler(model, "")

	answer, err := a.Ask(context.Background(), "What is X?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "X is a thing." {
		t.Fatalf("expected first choice, got %q", answer)
	}

	model.answer = "Y is another."
	if _, err := a.Ask(context.Background(), "And Y?", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.got) != 3 || textOf(t, model.got[1]) != "X is a thing." || textOf(t, model.got[2]) != "And Y?" {
		t.Fatalf("second request did not carry history: %+v", model.got)
	}

	turns := a.History().Turns()
	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	if len(turns) != len(wantRoles) {
		t.Fatalf("expected %d turns, got %d", len(wantRoles), len(turns))
	}
	for i, r := range wantRoles {
		if turns[i].Role != r {
			t.Fatalf("turn %d has role %s, want %s", i, turns[i].Role, r)
		}
	}
}

func TestAssembler_FailureLeavesHistory(t *testing.T) {
	boom := errors.New("quota exceeded")
	a := NewAssembler(&fakeModel{err: boom}, "system")
	if _, err := a.Ask(context.Background(), "Q?", ""); !errors.Is(err, boom) {
		t.Fatalf("expected api error, got %v", err)
	}
	if a.History().Len() != 0 {
		t.Fatalf("history must be unchanged on error")
	}

	a = NewAssembler(&fakeModel{empty: true}, "")
	if _, err := a.Ask(context.Background(), "Q?", ""); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
	if a.History().Len() != 0 {
		t.Fatalf("history must be unchanged when no choices are returned")
	}
}

func TestHistory_TurnsIsACopy(t *testing.T) {
	var h History
	h.Append(models.Turn{Role: models.RoleUser, Text: "a"})
	turns := h.Turns()
	turns[0].Text = "changed"
	if h.Turns()[0].Text != "a" {
		t.Fatalf("Turns must not expose internal storage")
	}
	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("expected empty history after reset")
	}
}
