package models

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the conversation history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

const (
	ContextSeparator = "\n---\n"
)

var (
	ContextPromptTemplate = `Use the following excerpts from the user's documents when they are relevant to the question.
<documents>
%s
</documents>`
)
