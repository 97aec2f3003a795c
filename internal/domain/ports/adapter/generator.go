package adapter

import "context"

// Turn is one prior exchange replayed so interactive sessions keep
// multi-turn context.
type Turn struct {
	Role    string // "user" | "assistant"
	Content string
}

// GenerateRequest carries everything the content collaborator needs. Prompt
// construction from the category is the collaborator's concern, not ours.
type GenerateRequest struct {
	Category string
	Input    string
	UserData string
	History  []Turn
}

// ContentGenerator is the opaque generation collaborator. A failure here
// must never roll back already-committed payment or session state; callers
// retry independently.
type ContentGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (content string, err error)
}
